package env

import (
	"os"
	"strings"
)

const prefix = "REPRICER_"

// Get reads REPRICER_<key>, then the bare key, then falls back.
func Get(key, fallback string) string {
	for _, name := range []string{prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
