package env

import "os"

// prefix matches the envconfig namespace used across the platform, so
// ad-hoc lookups honor the same variable names as structured config.
const prefix = "LAUNDRYOPS_"

// Get returns the first non-empty value among the LAUNDRYOPS_-prefixed
// variant of key, the bare key, and the fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(prefix + key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
