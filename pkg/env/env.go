// Package env reads process environment values with fallbacks. Structured
// configuration lives in pkg/config; this exists for the few knobs needed
// before config is loaded, such as the log format.
package env

import "os"

// Get returns the value for key, or fallback when the variable is unset or
// empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
