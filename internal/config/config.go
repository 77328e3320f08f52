package config

import "time"

// Config represents the launcher configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Chat      ChatConfig      `yaml:"chat"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`

	// DataDir holds the persisted search paths and log files.
	// Defaults to the directory containing the config file.
	DataDir string `yaml:"data_dir,omitempty"`

	// Runtime version information
	Version string `yaml:"-"`
}

// APIConfig holds settings for the remote language-model endpoint.
type APIConfig struct {
	APIKey string `yaml:"api_key,omitempty"`

	// Model used for both search and chat requests.
	Model string `yaml:"model"`

	// BaseURL overrides the default Generative Language endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// Transport selects the request path: "http" (plain REST) or "genai" (SDK).
	Transport string `yaml:"transport"`

	// Retry configuration for API calls
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig holds retry settings for API calls.
type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`  // Retries after the first attempt (default: 3)
	RetryDelay  time.Duration `yaml:"retry_delay"`  // Fixed delay between attempts (default: 1.5s)
	HTTPTimeout time.Duration `yaml:"http_timeout"` // Per-attempt HTTP timeout (default: 60s)
}

// DiscoveryConfig controls application discovery.
type DiscoveryConfig struct {
	// Dirs replaces the platform application directories when set.
	Dirs []string `yaml:"dirs,omitempty"`

	// Pattern is the doublestar glob matched relative to each directory.
	Pattern string `yaml:"pattern"`

	// Watch enables rescans when a search directory changes.
	Watch      bool `yaml:"watch"`
	DebounceMs int  `yaml:"debounce_ms"`
	MaxWatches int  `yaml:"max_watches"`
}

// ChatConfig holds chat session settings.
type ChatConfig struct {
	TypeInterval time.Duration `yaml:"type_interval"`
	Greeting     string        `yaml:"greeting"`
}

// CacheConfig holds AI search result cache settings.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	BurstSize         int  `yaml:"burst_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Model:     DefaultModel,
			Transport: TransportHTTP,
			Retry: RetryConfig{
				MaxRetries:  DefaultMaxRetries,
				RetryDelay:  DefaultRetryDelay,
				HTTPTimeout: DefaultHTTPTimeout,
			},
		},
		Discovery: DiscoveryConfig{
			Pattern:    DefaultAppPattern,
			Watch:      false,
			DebounceMs: DefaultDebounceMs,
			MaxWatches: DefaultMaxWatches,
		},
		Chat: ChatConfig{
			TypeInterval: DefaultTypeInterval,
			Greeting:     DefaultGreeting,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: DefaultCacheCapacity,
			TTL:      DefaultCacheTTL,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: DefaultRequestsPerMinute,
			BurstSize:         DefaultBurstSize,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  false,
		},
	}
}
