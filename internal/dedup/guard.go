// Package dedup guards against importing the same bank slip twice.
package dedup

import "strings"

// IsDuplicate reports whether a slip reference number was already recorded in
// any existing transaction note. Empty references are never duplicates: slips
// too blurry to yield a reference must still be importable.
func IsDuplicate(referenceNumber string, existingNotes []string) bool {
	if referenceNumber == "" {
		return false
	}
	for _, note := range existingNotes {
		if strings.Contains(note, referenceNumber) {
			return true
		}
	}
	return false
}
