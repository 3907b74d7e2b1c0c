package printing

import (
	"encoding/json"
	"strings"
)

// ParseEndpoints normalizes the printer endpoint configuration value into an
// ordered endpoint list. Three forms are accepted:
//
//	single URL        http://printer-1:9100
//	comma-separated   http://printer-1:9100,http://printer-2:9100
//	bracketed list    ["http://printer-1:9100", "http://printer-2:9100"]
//
// Trailing slashes are stripped. Anything unparseable yields an empty list so
// dispatch fails fast instead of posting to a garbage URL.
func ParseEndpoints(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		if !strings.HasSuffix(raw, "]") {
			return nil
		}
		var parsed []string
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			return cleanEndpoints(parsed)
		}
		// Bracketed but not valid JSON: tolerate unquoted entries.
		inner := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
		return cleanEndpoints(strings.Split(inner, ","))
	}

	return cleanEndpoints(strings.Split(raw, ","))
}

func cleanEndpoints(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		entry = strings.Trim(entry, `"'`)
		entry = strings.TrimRight(entry, "/")
		if entry == "" {
			continue
		}
		if !strings.HasPrefix(entry, "http://") && !strings.HasPrefix(entry, "https://") {
			return nil
		}
		out = append(out, entry)
	}
	return out
}
