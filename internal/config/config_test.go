// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, overrides, durations

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8420"

database:
  path: "./test.db"

embedding:
  api_base: "https://embeddings.internal/v1"
  model: "test-model"
  dimensions: 512
  timeout: "5s"
  retry_interval: "2m"

search:
  lexical_weight: 0.7
  semantic_weight: 0.3
  cache_ttl: "45s"
  cache_size: 64

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8420" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8420")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Embedding.Model != "test-model" {
		t.Errorf("Embedding.Model = %q, want %q", cfg.Embedding.Model, "test-model")
	}
	if cfg.Embedding.Dimensions != 512 {
		t.Errorf("Embedding.Dimensions = %d, want 512", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.Timeout != 5*time.Second {
		t.Errorf("Embedding.Timeout = %v, want 5s", cfg.Embedding.Timeout)
	}
	if cfg.Embedding.RetryInterval != 2*time.Minute {
		t.Errorf("Embedding.RetryInterval = %v, want 2m", cfg.Embedding.RetryInterval)
	}
	if cfg.Search.LexicalWeight != 0.7 || cfg.Search.SemanticWeight != 0.3 {
		t.Errorf("Search weights = %v/%v, want 0.7/0.3", cfg.Search.LexicalWeight, cfg.Search.SemanticWeight)
	}
	if cfg.Search.CacheTTL != 45*time.Second {
		t.Errorf("Search.CacheTTL = %v, want 45s", cfg.Search.CacheTTL)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %q/%q, want debug/json", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != ":8420" {
		t.Errorf("Server.HTTPAddr = %q, want default :8420", cfg.Server.HTTPAddr)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Embedding.Model = %q, want default", cfg.Embedding.Model)
	}
	if cfg.Embedding.Timeout != 10*time.Second {
		t.Errorf("Embedding.Timeout = %v, want default 10s", cfg.Embedding.Timeout)
	}
	if cfg.Search.LexicalWeight != 0.5 || cfg.Search.SemanticWeight != 0.5 {
		t.Errorf("Search weights = %v/%v, want 0.5/0.5", cfg.Search.LexicalWeight, cfg.Search.SemanticWeight)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default info", cfg.Logging.Level)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "secret-key-123")

	configPath := writeConfig(t, `
database:
  path: "./test.db"
embedding:
  api_key: "${TEST_EMBED_KEY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Embedding.APIKey != "secret-key-123" {
		t.Errorf("Embedding.APIKey = %q, want expanded env value", cfg.Embedding.APIKey)
	}
}

func TestLoad_UnsetEnvVarExpandsEmpty(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
embedding:
  api_key: "${DEFINITELY_NOT_SET_VAR_42}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Embedding.APIKey != "" {
		t.Errorf("Embedding.APIKey = %q, want empty", cfg.Embedding.APIKey)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COVEN_DIRECTORY_SERVER_HTTP_ADDR", ":9000")
	t.Setenv("COVEN_DIRECTORY_SEARCH_LEXICAL_WEIGHT", "0.9")
	t.Setenv("COVEN_DIRECTORY_SEARCH_SEMANTIC_WEIGHT", "0.1")
	t.Setenv("COVEN_DIRECTORY_EMBEDDING_TIMEOUT_RAW", "3s")

	configPath := writeConfig(t, `
server:
  http_addr: ":8420"
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != ":9000" {
		t.Errorf("Server.HTTPAddr = %q, env override should win", cfg.Server.HTTPAddr)
	}
	if cfg.Search.LexicalWeight != 0.9 {
		t.Errorf("Search.LexicalWeight = %v, want 0.9", cfg.Search.LexicalWeight)
	}
	if cfg.Embedding.Timeout != 3*time.Second {
		t.Errorf("Embedding.Timeout = %v, want 3s", cfg.Embedding.Timeout)
	}
}

func TestLoad_UnprefixedEnvIgnored(t *testing.T) {
	// Only COVEN_DIRECTORY_* keys may override; ambient shell variables that
	// happen to share a field name (PATH above all) must not leak in.
	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("MODEL", "not-a-real-model")
	t.Setenv("LEVEL", "debug")

	configPath := writeConfig(t, `
database:
  path: "./test.db"
embedding:
  model: "text-embedding-3-small"
logging:
  level: "warn"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, $PATH leaked into config", cfg.Database.Path)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Embedding.Model = %q, $MODEL leaked into config", cfg.Embedding.Model)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, $LEVEL leaked into config", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "server: [not: valid: yaml")
	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() should fail for invalid YAML")
	}
}

func TestLoad_MissingDatabasePath(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: ":8420"
`)
	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "database.path") {
		t.Fatalf("Load() error = %v, want database.path validation failure", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
embedding:
  timeout: "not-a-duration"
`)
	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "embedding.timeout") {
		t.Fatalf("Load() error = %v, want duration parse failure", err)
	}
}

func TestLoad_NegativeWeightRejected(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
search:
  lexical_weight: -0.5
  semantic_weight: 1.5
`)
	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() should reject negative weights")
	}
}
