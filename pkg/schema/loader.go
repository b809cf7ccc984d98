package schema

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-faster/city"
	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jblondin/etl/pkg/config"
	"github.com/jblondin/etl/pkg/errors"
)

// Format is a schema file syntax.
type Format string

const (
	TOML Format = "toml"
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatFromPath picks the syntax from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported schema extension %q", filepath.Ext(path)).
			WithDetail("path", path)
	}
}

// Load reads, parses and validates a schema file. ${VAR} references are
// expanded first, and relative source paths are resolved against the
// schema file's directory.
func Load(path string) (*DataConfig, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: schema path is supplied by the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read schema").
			WithDetail("path", path)
	}

	cfg, err := Parse([]byte(config.ExpandEnv(string(data))), format)
	if err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			e.WithDetail("path", path)
		}
		return nil, err
	}
	cfg.ResolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.CheckFiles(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a schema without validating it.
func Parse(data []byte, format Format) (*DataConfig, error) {
	cfg := &DataConfig{}
	var err error
	switch format {
	case TOML:
		err = toml.Unmarshal(data, cfg)
	case JSON:
		err = json.Unmarshal(data, cfg)
	case YAML:
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported schema format %q", string(format))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse "+string(format)+" schema")
	}
	return cfg, nil
}

// Save writes the normalized schema to path as YAML.
func Save(path string, cfg *DataConfig) error {
	return config.Save(path, cfg.Normalized())
}

// ResolvePaths makes relative source file names relative to dir.
func (c *DataConfig) ResolvePaths(dir string) {
	for i := range c.SourceFiles {
		name := c.SourceFiles[i].Name
		if name != "" && !filepath.IsAbs(name) {
			c.SourceFiles[i].Name = filepath.Join(dir, name)
		}
	}
}

// CheckFiles verifies that every source file exists and is a regular file.
func (c *DataConfig) CheckFiles() error {
	for _, sf := range c.SourceFiles {
		info, err := os.Stat(sf.Name)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "source file not found").
				WithDetail("path", sf.Name)
		}
		if info.IsDir() {
			return errors.Newf(errors.ErrorTypeFile, "source file %q is a directory", sf.Name).
				WithDetail("path", sf.Name)
		}
	}
	return nil
}

// Validate checks the structure of the schema. Type compatibility of
// transforms is only known once data is loaded and is checked then.
func (c *DataConfig) Validate() error {
	if len(c.SourceFiles) == 0 {
		return errors.New(errors.ErrorTypeConfig, "schema declares no source files")
	}
	for i, sf := range c.SourceFiles {
		if err := sf.validate(); err != nil {
			return withDetail(err, "source_file", i)
		}
	}
	for i, t := range c.Transforms {
		if err := t.validate(); err != nil {
			return withDetail(err, "transform", i)
		}
	}
	return nil
}

func (s SourceFile) validate() error {
	if s.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "source file has no name")
	}
	if s.Delimiter != "" {
		if len(s.Delimiter) != 1 || s.Delimiter[0] >= 0x80 {
			return errors.Newf(errors.ErrorTypeConfig,
				"delimiter %q of %q must be a single ASCII character", s.Delimiter, s.Name)
		}
		switch s.Delimiter[0] {
		case '"', '\r', '\n':
			return errors.Newf(errors.ErrorTypeConfig, "delimiter %q of %q is not allowed", s.Delimiter, s.Name)
		}
	}
	if len(s.Fields) == 0 {
		return errors.Newf(errors.ErrorTypeConfig, "source file %q declares no fields", s.Name)
	}

	declared := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.SourceName == "" {
			return errors.Newf(errors.ErrorTypeConfig, "field of %q has no source_name", s.Name)
		}
		if !f.FieldType.Valid() {
			return errors.Newf(errors.ErrorTypeConfig, "field %q has no valid field_type", f.SourceName).
				WithDetail("field", f.SourceName)
		}
		declared[f.SourceName] = true
	}
	for _, flt := range s.Filters {
		if !declared[flt.SourceField] {
			return errors.Newf(errors.ErrorTypeSchema,
				"filter references undeclared field %q of %q", flt.SourceField, s.Name).
				WithDetail("field", flt.SourceField)
		}
		if _, err := flt.Compile(); err != nil {
			return err
		}
	}
	return nil
}

func (t Transform) validate() error {
	if t.TargetName == "" {
		return errors.New(errors.ErrorTypeConfig, "transform has no target_name")
	}
	if len(t.SourceFields) == 0 {
		return errors.Newf(errors.ErrorTypeConfig, "transform %q has no source_fields", t.TargetName).
			WithDetail("target", t.TargetName)
	}
	known := false
	for _, a := range Actions() {
		if a == t.Method.Action {
			known = true
			break
		}
	}
	if !known {
		return errors.Newf(errors.ErrorTypeConfig, "transform %q has unknown action %q", t.TargetName, t.Method.Action).
			WithDetail("target", t.TargetName)
	}
	if t.Method.Action == VectorizeOneHot && !t.Method.BinaryScaling.Valid() {
		return errors.Newf(errors.ErrorTypeConfig, "transform %q has unknown binary_scaling %q (want %s or %s)",
			t.TargetName, t.Method.BinaryScaling, ZeroOne, NegOneOne).
			WithDetail("target", t.TargetName)
	}
	return nil
}

// Normalized returns a copy with every default made explicit: target names,
// add_to_frame flags and delimiters.
func (c *DataConfig) Normalized() *DataConfig {
	out := &DataConfig{}
	for _, sf := range c.SourceFiles {
		nsf := sf
		if nsf.Delimiter == "" {
			nsf.Delimiter = DefaultDelimiter
		}
		nsf.Fields = make([]Field, len(sf.Fields))
		for i, f := range sf.Fields {
			f.TargetName = f.Target()
			f.AddToFrame = Ptr(f.InFrame())
			nsf.Fields[i] = f
		}
		nsf.Filters = append([]Filter(nil), sf.Filters...)
		out.SourceFiles = append(out.SourceFiles, nsf)
	}
	for _, t := range c.Transforms {
		t.SourceFields = append([]string(nil), t.SourceFields...)
		t.AddToFrame = Ptr(t.InFrame())
		out.Transforms = append(out.Transforms, t)
	}
	return out
}

// Fingerprint is a stable 64-bit hash of the normalized schema, rendered in
// hex. Equivalent schemas written in different syntaxes share a fingerprint.
func (c *DataConfig) Fingerprint() (string, error) {
	data, err := json.Marshal(c.Normalized())
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode schema")
	}
	return strconv.FormatUint(city.CH64(data), 16), nil
}

func withDetail(err error, key string, value interface{}) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.WithDetail(key, value)
	}
	return err
}
