package config

import "time"

// Default configuration values.
const (
	DefaultModel   = "gemini-1.5-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	TransportHTTP  = "http"
	TransportGenai = "genai"

	// Retry settings
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1500 * time.Millisecond
	DefaultHTTPTimeout = 60 * time.Second

	// Discovery
	DefaultAppPattern = "**/*.app"
	DefaultDebounceMs = 500
	DefaultMaxWatches = 256

	// Chat
	DefaultTypeInterval = 30 * time.Millisecond
	DefaultGreeting     = "Hi! Describe a task or need and I'll recommend apps for you. For example: 'I need a good free image editor'."

	// AI search cache
	DefaultCacheCapacity = 64
	DefaultCacheTTL      = 10 * time.Minute

	// Rate limiting
	DefaultRequestsPerMinute = 60
	DefaultBurstSize         = 5

	// Persisted state
	SearchPathsFile = "search_paths.yaml"
)
