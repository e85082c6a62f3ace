package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, drops control characters and caps it at maxLen
// runes. Billing names and addresses are often non-ASCII, so the cap never
// splits a character.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}
