// Package config provides the run configuration of the ETL tool: logging,
// observability and export settings that sit around a schema.
//
// Example usage:
//
//	cfg, err := config.LoadRunConfig("etl.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Export.Format = "arrow"
package config

import (
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/jblondin/etl/pkg/compression"
	"github.com/jblondin/etl/pkg/errors"
)

// RunConfig is the configuration of a single load run.
type RunConfig struct {
	// Name identifies the run in logs and traces
	Name string `yaml:"name" json:"name" mapstructure:"name"`

	Logging       LoggingConfig       `yaml:"logging" json:"logging" mapstructure:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
	Export        ExportConfig        `yaml:"export" json:"export" mapstructure:"export"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
}

// ObservabilityConfig contains metrics and tracing settings.
type ObservabilityConfig struct {
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// TracingSampleRate is the fraction of runs traced, in [0, 1]
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
	// ShutdownTimeout bounds the flush of pending spans on exit
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	// MetricsFile receives a Prometheus text dump at the end of a run
	MetricsFile string `yaml:"metrics_file" json:"metrics_file" mapstructure:"metrics_file"`
}

// ExportConfig selects where and how a loaded frame is written.
type ExportConfig struct {
	// Format is one of arrow, parquet, avro, csv, jsonl; empty infers it
	// from Path
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	Path   string `yaml:"path" json:"path" mapstructure:"path"`
	// Compression is an algorithm name; empty infers it from Path
	Compression      string `yaml:"compression" json:"compression" mapstructure:"compression"`
	CompressionLevel int    `yaml:"compression_level" json:"compression_level" mapstructure:"compression_level"`
	// Fields restricts the export to a subset, in order
	Fields []string `yaml:"fields" json:"fields" mapstructure:"fields"`
}

// ExportFormats lists the supported export formats.
var ExportFormats = []string{"arrow", "parquet", "avro", "csv", "jsonl"}

// NewRunConfig creates a RunConfig with defaults.
func NewRunConfig(name string) *RunConfig {
	return &RunConfig{
		Name: name,
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			TracingSampleRate: 1.0,
			ShutdownTimeout:   5 * time.Second,
		},
		Export: ExportConfig{
			CompressionLevel: int(compression.Default),
		},
	}
}

// Validate checks the configuration for correctness.
func (c *RunConfig) Validate() error {
	if c.Name == "" {
		return configError("name is required")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid logging.level").
			WithDetail("level", c.Logging.Level)
	}
	if c.Logging.Encoding != "json" && c.Logging.Encoding != "console" {
		return configError("logging.encoding must be json or console")
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return configError("observability.tracing_sample_rate must be within [0, 1]")
	}
	if c.Observability.ShutdownTimeout < 0 {
		return configError("observability.shutdown_timeout cannot be negative")
	}
	if f := c.Export.Format; f != "" && !contains(ExportFormats, f) {
		return configError("export.format must be one of "+strings.Join(ExportFormats, ", ")).
			WithDetail("format", f)
	}
	if _, err := compression.ParseAlgorithm(c.Export.Compression); err != nil {
		return err
	}
	return nil
}

func configError(msg string) *errors.Error {
	return errors.New(errors.ErrorTypeConfig, msg)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
