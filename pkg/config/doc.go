// Package config provides configuration management for the gateway.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("kirogate.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("kirogate.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention KIROGATE_SECTION_FIELD.
// For example:
//
//   - KIROGATE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - KIROGATE_AUTH_API_KEYS overrides auth.api_keys (comma separated)
//   - KIROGATE_POOL_STRATEGY overrides pool.strategy
//   - KIROGATE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// Watcher re-reads the file after it changes. The server pushes the
// reloadable subset (pool strategy and cooldowns, client API keys, log level)
// into the running components; everything else takes effect on restart.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//
//	auth:
//	  api_keys: ["sk-my-key"]
//
//	admin:
//	  token: "change-me"
//
//	pool:
//	  strategy: smart-score
//	  cooldown:
//	    quota: 30m
//
//	database:
//	  driver: sqlite
//	  path: data/kiro.db
package config
