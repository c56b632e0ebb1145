package utils

import "os"

// EnvOr reads an environment variable, falling back when it is unset or
// empty.
func EnvOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}

	return fallback
}
