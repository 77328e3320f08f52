package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"quicklaunch/internal/fileutil"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from the default config file and environment variables.
func Load() (*Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFrom loads configuration from path (optional) and environment variables.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			// Config file is optional, don't fail if it doesn't exist
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
		if cfg.DataDir == "" {
			cfg.DataDir = filepath.Dir(path)
		}
	}

	// Override with environment variables
	loadFromEnv(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// getConfigPath returns the path to the config file.
func getConfigPath() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "quicklaunch", "config.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	if runtime.GOOS == "darwin" {
		appSupport := filepath.Join(homeDir, "Library", "Application Support", "quicklaunch", "config.yaml")
		if _, err := os.Stat(appSupport); err == nil {
			return appSupport
		}
		dotConfig := filepath.Join(homeDir, ".config", "quicklaunch", "config.yaml")
		if _, err := os.Stat(dotConfig); err == nil {
			return dotConfig
		}
		return appSupport
	}

	return filepath.Join(homeDir, ".config", "quicklaunch", "config.yaml")
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Expand environment variables in the config file
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
// Priority: QUICKLAUNCH_API_KEY > GEMINI_API_KEY > GOOGLE_API_KEY
func loadFromEnv(cfg *Config) {
	for _, name := range []string{"QUICKLAUNCH_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			cfg.API.APIKey = key
			break
		}
	}

	if model := os.Getenv("QUICKLAUNCH_MODEL"); model != "" {
		cfg.API.Model = model
	}

	if transport := os.Getenv("QUICKLAUNCH_TRANSPORT"); transport != "" {
		cfg.API.Transport = transport
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	if cfg.API.Model == "" {
		cfg.API.Model = DefaultModel
	}
	if cfg.API.Transport == "" {
		cfg.API.Transport = TransportHTTP
	}
	if cfg.API.Retry.RetryDelay == 0 {
		cfg.API.Retry.RetryDelay = DefaultRetryDelay
	}
	if cfg.API.Retry.HTTPTimeout == 0 {
		cfg.API.Retry.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.Discovery.Pattern == "" {
		cfg.Discovery.Pattern = DefaultAppPattern
	}
	if cfg.Chat.TypeInterval == 0 {
		cfg.Chat.TypeInterval = DefaultTypeInterval
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.API.APIKey == "" {
		return ErrMissingAuth
	}
	switch c.API.Transport {
	case TransportHTTP, TransportGenai:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.API.Transport)
	}
	if c.API.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	return nil
}

// Error types for configuration validation.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

const (
	ErrMissingAuth      ConfigError = "missing authentication: set GEMINI_API_KEY or QUICKLAUNCH_API_KEY, or api.api_key in the config file"
	ErrUnknownTransport ConfigError = "unknown api.transport"
)

// GetConfigPath returns the path to the config file (exported for external use).
func GetConfigPath() string {
	return getConfigPath()
}

// SearchPathsPath returns the file holding the persisted custom search paths.
func (c *Config) SearchPathsPath() string {
	dir := c.DataDir
	if dir == "" {
		dir = filepath.Dir(getConfigPath())
	}
	return filepath.Join(dir, SearchPathsFile)
}

// LogDir returns the directory used for file logging.
func (c *Config) LogDir() string {
	dir := c.DataDir
	if dir == "" {
		dir = filepath.Dir(getConfigPath())
	}
	return filepath.Join(dir, "logs")
}

// Save saves the configuration to the config file.
func (c *Config) Save() error {
	return c.SaveTo(getConfigPath())
}

// SaveTo writes the configuration to path atomically.
func (c *Config) SaveTo(configPath string) error {
	if configPath == "" {
		return fmt.Errorf("could not determine config path")
	}

	// Ensure config directory exists (0700 - config may contain API keys)
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fileutil.AtomicWrite(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
