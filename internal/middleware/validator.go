package middleware

import (
	"strings"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

// ValidFileID reports whether id looks like an issued file id. Anything else
// can never be in the result cache.
func ValidFileID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// SanitizeString removes control characters and surrounding space.
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
