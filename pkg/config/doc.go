// Package config holds the run configuration of the etl command.
//
// # Loading
//
// LoadRunConfig layers three sources, later ones winning:
//
//  1. NewRunConfig defaults
//  2. the configuration file (YAML, TOML or JSON, chosen by extension)
//  3. ETL_* environment variables, with "." in a key replaced by "_"
//
// For example ETL_LOGGING_LEVEL=debug overrides logging.level and
// ETL_OBSERVABILITY_SHUTDOWN_TIMEOUT=10s overrides the span flush timeout.
//
// # Environment substitution
//
// ExpandEnv replaces ${VAR_NAME} in raw text. Schema files pass through it
// before they are parsed, so paths and filter values can be injected:
//
//	[[source_files]]
//	name = "${DATA_DIR}/people.csv"
//
// # Saving
//
// Save writes any value as YAML; it backs both run configs and normalized
// schemas.
package config
