// Package category maps free-text category labels returned by the AI onto a
// user's own category list.
package category

import (
	"strings"

	"github.com/moneymate-th/transaction-ai-service/internal/models"
)

// DefaultFallbackName is the catch-all bucket every user starts with.
const DefaultFallbackName = "อื่นๆ"

// Resolve returns the id of the category matching the AI-provided label, or
// "" when nothing fits. Matching never crosses transaction types, and ties
// within a precedence tier go to the first candidate in list order:
//
//  1. exact case-insensitive name match
//  2. category name contained within the label
//  3. the fallback category of the same type
func Resolve(label, txType string, categories []models.Category, fallbackName string) string {
	if fallbackName == "" {
		fallbackName = DefaultFallbackName
	}
	label = strings.TrimSpace(label)
	lower := strings.ToLower(label)

	if label != "" {
		for _, c := range categories {
			if c.Type == txType && strings.ToLower(c.Name) == lower {
				return c.ID
			}
		}
		for _, c := range categories {
			if c.Type != txType {
				continue
			}
			if strings.Contains(label, c.Name) {
				return c.ID
			}
		}
	}

	for _, c := range categories {
		if c.Type == txType && c.Name == fallbackName {
			return c.ID
		}
	}
	return ""
}
