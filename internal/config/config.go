// ABOUTME: Configuration loading and parsing for coven-directory
// ABOUTME: YAML with env var expansion, envconfig overrides, duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the complete coven-directory configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" split_words:"true"`
}

// DatabaseConfig holds database configuration. No envconfig alt names here
// or below: alt names fall back to the unprefixed environment, so a tag like
// PATH would read the shell's $PATH when the prefixed key is unset.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	APIBase    string `yaml:"api_base" split_words:"true"`
	APIKey     string `yaml:"api_key" split_words:"true"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`

	Timeout       time.Duration `yaml:"-" ignored:"true"`
	RetryInterval time.Duration `yaml:"-" ignored:"true"`
	RetryBatch    int           `yaml:"retry_batch" split_words:"true"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw       string `yaml:"timeout" split_words:"true"`
	RetryIntervalRaw string `yaml:"retry_interval" split_words:"true"`
}

// SearchConfig holds hybrid ranking and cache configuration
type SearchConfig struct {
	LexicalWeight  float64 `yaml:"lexical_weight" split_words:"true"`
	SemanticWeight float64 `yaml:"semantic_weight" split_words:"true"`
	CacheSize      int     `yaml:"cache_size" split_words:"true"`

	CacheTTL time.Duration `yaml:"-" ignored:"true"`

	// Raw string value for YAML unmarshaling
	CacheTTLRaw string `yaml:"cache_ttl" split_words:"true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded in the file
// body, and COVEN_DIRECTORY_* environment variables override individual
// fields afterwards. Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides layers COVEN_DIRECTORY_* environment variables over the
// file values, one prefix per section.
func applyEnvOverrides(cfg *Config) error {
	for prefix, section := range map[string]any{
		"COVEN_DIRECTORY_SERVER":    &cfg.Server,
		"COVEN_DIRECTORY_DATABASE":  &cfg.Database,
		"COVEN_DIRECTORY_EMBEDDING": &cfg.Embedding,
		"COVEN_DIRECTORY_SEARCH":    &cfg.Search,
		"COVEN_DIRECTORY_LOGGING":   &cfg.Logging,
	} {
		if err := envconfig.Process(prefix, section); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8420"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.TimeoutRaw == "" {
		c.Embedding.TimeoutRaw = "10s"
	}
	if c.Embedding.RetryIntervalRaw == "" {
		c.Embedding.RetryIntervalRaw = "1m"
	}
	if c.Search.LexicalWeight == 0 && c.Search.SemanticWeight == 0 {
		c.Search.LexicalWeight = 0.5
		c.Search.SemanticWeight = 0.5
	}
	if c.Search.CacheTTLRaw == "" {
		c.Search.CacheTTLRaw = "30s"
	}
	if c.Search.CacheSize == 0 {
		c.Search.CacheSize = 256
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Search.LexicalWeight < 0 || c.Search.SemanticWeight < 0 {
		return fmt.Errorf("search weights must not be negative")
	}
	if c.Search.LexicalWeight+c.Search.SemanticWeight == 0 {
		return fmt.Errorf("at least one search weight must be positive")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Embedding.TimeoutRaw != "" {
		cfg.Embedding.Timeout, err = time.ParseDuration(cfg.Embedding.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing embedding.timeout %q: %w", cfg.Embedding.TimeoutRaw, err)
		}
	}

	if cfg.Embedding.RetryIntervalRaw != "" {
		cfg.Embedding.RetryInterval, err = time.ParseDuration(cfg.Embedding.RetryIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing embedding.retry_interval %q: %w", cfg.Embedding.RetryIntervalRaw, err)
		}
	}

	if cfg.Search.CacheTTLRaw != "" {
		cfg.Search.CacheTTL, err = time.ParseDuration(cfg.Search.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing search.cache_ttl %q: %w", cfg.Search.CacheTTLRaw, err)
		}
	}

	return nil
}
