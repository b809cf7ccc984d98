package config_test

import (
	"fmt"
	"log"
	"os"

	"github.com/jblondin/etl/pkg/config"
)

// ExampleNewRunConfig demonstrates the defaults of a run configuration.
func ExampleNewRunConfig() {
	cfg := config.NewRunConfig("nightly")

	fmt.Printf("Log level: %s\n", cfg.Logging.Level)
	fmt.Printf("Metrics: %t\n", cfg.Observability.EnableMetrics)
	fmt.Printf("Shutdown timeout: %s\n", cfg.Observability.ShutdownTimeout)

	// Output:
	// Log level: info
	// Metrics: true
	// Shutdown timeout: 5s
}

// ExampleRunConfig_Validate shows how to validate a configuration
// before using it.
func ExampleRunConfig_Validate() {
	cfg := config.NewRunConfig("nightly")
	cfg.Export.Format = "csv"
	cfg.Export.Compression = "zstd"

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	fmt.Println("Configuration is valid!")

	cfg.Export.Format = "xlsx"
	fmt.Println(cfg.Validate())

	// Output:
	// Configuration is valid!
	// config: export.format must be one of arrow, parquet, avro, csv, jsonl
}

// ExampleExpandEnv demonstrates ${VAR} substitution in schema text.
func ExampleExpandEnv() {
	os.Setenv("DATA_DIR", "/srv/data")
	defer os.Unsetenv("DATA_DIR")

	fmt.Println(config.ExpandEnv(`name = "${DATA_DIR}/people.csv"`))

	// Output:
	// name = "/srv/data/people.csv"
}
