package validators

import "strings"

// SanitizeString trims surrounding whitespace and caps the byte length of
// free-text request fields such as customer names and document URLs. A
// maxLen of zero means unbounded.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}
