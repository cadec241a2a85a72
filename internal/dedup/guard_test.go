package dedup

import "testing"

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		name  string
		ref   string
		notes []string
		want  bool
	}{
		{"ref present in a note", "REF123", []string{"transfer to John (Ref: REF123)"}, true},
		{"ref absent", "REF999", []string{"transfer to John (Ref: REF123)"}, false},
		{"empty ref never duplicate", "", []string{"anything", "REF123"}, false},
		{"empty notes", "REF123", nil, false},
		{"exact substring only", "REF12", []string{"(Ref: REF123)"}, true},
		{"thai note", "2026021812345", []string{"โอนให้แม่ (Ref: 2026021812345)"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicate(tt.ref, tt.notes); got != tt.want {
				t.Errorf("IsDuplicate(%q, %v) = %v, want %v", tt.ref, tt.notes, got, tt.want)
			}
		})
	}
}
