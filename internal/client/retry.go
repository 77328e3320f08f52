package client

import (
	"time"

	"quicklaunch/internal/config"
)

// RetryConfig holds retry configuration for gateway operations.
type RetryConfig struct {
	MaxRetries int           // Retries after the first attempt
	RetryDelay time.Duration // Fixed delay between attempts
}

// DefaultRetryConfig returns the default policy: three retries, 1.5s apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: config.DefaultMaxRetries,
		RetryDelay: config.DefaultRetryDelay,
	}
}

// RetryConfigFrom builds a retry policy from the API configuration.
func RetryConfigFrom(cfg config.RetryConfig) RetryConfig {
	rc := RetryConfig{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}
	if rc.MaxRetries < 0 {
		rc.MaxRetries = 0
	}
	if rc.RetryDelay <= 0 {
		rc.RetryDelay = config.DefaultRetryDelay
	}
	return rc
}

// MaxAttempts returns the total number of attempts allowed.
func (c RetryConfig) MaxAttempts() int {
	return c.MaxRetries + 1
}
