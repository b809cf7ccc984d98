package config

import (
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jblondin/etl/pkg/errors"
)

// EnvPrefix prefixes environment overrides, e.g. ETL_LOGGING_LEVEL=debug.
const EnvPrefix = "ETL"

// LoadRunConfig reads a run configuration from path (YAML, TOML or JSON by
// extension) on top of the defaults, then applies ETL_* environment
// overrides. An empty path yields defaults plus environment.
func LoadRunConfig(path string) (*RunConfig, error) {
	v := viper.New()
	setDefaults(v, NewRunConfig("etl"))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read run config").
				WithDetail("path", path)
		}
	}

	cfg := &RunConfig{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode run config").
			WithDetail("path", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override keys
// absent from the file.
func setDefaults(v *viper.Viper, d *RunConfig) {
	v.SetDefault("name", d.Name)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("observability.enable_metrics", d.Observability.EnableMetrics)
	v.SetDefault("observability.enable_tracing", d.Observability.EnableTracing)
	v.SetDefault("observability.tracing_sample_rate", d.Observability.TracingSampleRate)
	v.SetDefault("observability.shutdown_timeout", d.Observability.ShutdownTimeout)
	v.SetDefault("observability.metrics_file", d.Observability.MetricsFile)
	v.SetDefault("export.format", d.Export.Format)
	v.SetDefault("export.path", d.Export.Path)
	v.SetDefault("export.compression", d.Export.Compression)
	v.SetDefault("export.compression_level", d.Export.CompressionLevel)
	v.SetDefault("export.fields", []string{})
}

// Save writes v to filePath as YAML.
func Save(filePath string, v interface{}) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

// Marshal renders v as YAML.
func Marshal(v interface{}) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	return data, nil
}

// ExpandEnv replaces ${VAR_NAME} with environment variable values. Unset
// variables expand to the empty string; an unterminated ${ is left as is.
func ExpandEnv(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
