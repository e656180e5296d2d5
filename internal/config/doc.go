// Package config handles configuration loading for coven-directory.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion, then COVEN_DIRECTORY_* environment variables override individual
// fields. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	embedding:
//	  api_key: "${OPENAI_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Overrides
//
// Each section maps to an env prefix, so a deployment can override a single
// field without touching the file:
//
//	COVEN_DIRECTORY_SERVER_HTTP_ADDR=":9000"
//	COVEN_DIRECTORY_SEARCH_LEXICAL_WEIGHT="0.7"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	embedding:
//	  timeout: "10s"
//	  retry_interval: "1m"
//	search:
//	  cache_ttl: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8420"
//
// Database:
//
//	database:
//	  path: "/var/lib/coven/directory.db"
//
// Embedding provider:
//
//	embedding:
//	  api_base: "https://api.openai.com/v1"
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "text-embedding-3-small"
//	  dimensions: 1536
//	  timeout: "10s"
//	  retry_interval: "1m"
//
// Search ranking:
//
//	search:
//	  lexical_weight: 0.5
//	  semantic_weight: 0.5
//	  cache_ttl: "30s"
//	  cache_size: 256
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Database path presence
//   - Duration format validity
//   - Search weights (non-negative, not both zero)
//
// # Usage
//
//	cfg, err := config.Load("/etc/coven/directory.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
