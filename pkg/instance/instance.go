package instance

import (
	"os"
	"strings"
)

const EnvInstanceID = "REPRICER_INSTANCE_ID"

// GetID names this process in logs and lock owner tokens: the configured id, then the hostname.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(EnvInstanceID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
