package client

import (
	"time"
)

// Config holds seed fetch client configuration
type Config struct {
	// Directory for the HTTP cache, in-memory when empty
	CacheDir string
	// Per request timeout
	Timeout time.Duration
	// Maximum attempts for a remote seed, including the first
	MaxTries uint
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		Timeout:  30 * time.Second,
		MaxTries: 5,
	}
}
