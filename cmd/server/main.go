package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/moneymate-th/transaction-ai-service/api"
	"github.com/moneymate-th/transaction-ai-service/internal/auth"
	"github.com/moneymate-th/transaction-ai-service/internal/db"
	"github.com/moneymate-th/transaction-ai-service/internal/models"
	"github.com/moneymate-th/transaction-ai-service/internal/storage"
)

func main() {
	// Initialize JWT
	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}

	// Initialize database connection pool
	if err := db.Init(); err != nil {
		log.Printf("Warning: Database not available: %v", err)
		log.Println("Running in extract-only mode (no persistence)")
	} else {
		defer db.Close()
	}

	// Initialize MinIO storage
	if err := storage.Init(); err != nil {
		log.Printf("Warning: MinIO storage not available: %v", err)
		log.Println("Slip images will not be stored")
	} else {
		log.Println("MinIO storage initialized")
	}

	// Load configuration
	config, err := loadConfig(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create API handler
	handler := api.NewHandler(config)
	router := handler.SetupRoutes()

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Transaction AI Service v%s on %s", api.Version, addr)
	log.Printf("AI providers: %d configured", len(config.AI.Providers))
	log.Printf("Database: %v", db.Pool != nil)
	log.Printf("Storage: %v", storage.Client != nil)
	log.Printf("Endpoints:")
	log.Printf("  POST http://%s/api/login               - Authenticate", addr)
	log.Printf("  POST http://%s/api/extract/text        - Analyze free text (requires JWT)", addr)
	log.Printf("  POST http://%s/api/extract/slip        - Read one bank slip (requires JWT)", addr)
	log.Printf("  POST http://%s/api/extract/slips       - Batch slip import (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/transactions        - List transactions (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/stats               - Monthly stats (requires JWT)", addr)
	log.Printf("  GET  http://%s/health                  - Health check", addr)

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yaml"
}

func loadConfig(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if timeout := os.Getenv("AI_TIMEOUT"); timeout != "" {
		config.AI.Timeout = timeout
	}
	for i := range config.AI.Providers {
		p := &config.AI.Providers[i]
		switch p.Name {
		case "gemini":
			if key := os.Getenv("GEMINI_API_KEY"); key != "" {
				p.APIKey = key
			}
			if model := os.Getenv("GEMINI_MODEL"); model != "" {
				p.Model = model
			}
		case "groq":
			if key := os.Getenv("GROQ_API_KEY"); key != "" {
				p.APIKey = key
			}
			if model := os.Getenv("GROQ_MODEL"); model != "" {
				p.Model = model
			}
			if baseURL := os.Getenv("GROQ_BASE_URL"); baseURL != "" {
				p.BaseURL = baseURL
			}
		}
	}

	if config.Port == 0 {
		config.Port = 8080
	}

	return &config, nil
}
