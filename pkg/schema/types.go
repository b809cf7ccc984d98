// Package schema defines the declarative description of a load: which files
// to read, which fields to keep, which rows to filter and which transforms to
// apply. Schemas are read from TOML, JSON or YAML files.
package schema

import (
	"github.com/jblondin/etl/pkg/columnar"
)

// DefaultDelimiter is used when a source file declares none.
const DefaultDelimiter = ","

// DataConfig is a complete schema.
type DataConfig struct {
	SourceFiles []SourceFile `toml:"source_files" json:"source_files" yaml:"source_files"`
	Transforms  []Transform  `toml:"transforms,omitempty" json:"transforms,omitempty" yaml:"transforms,omitempty"`
}

// SourceFile describes one delimited input file.
type SourceFile struct {
	// Name is the file path, relative to the schema file unless absolute
	Name      string   `toml:"name" json:"name" yaml:"name"`
	Delimiter string   `toml:"delimiter,omitempty" json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	Fields    []Field  `toml:"fields" json:"fields" yaml:"fields"`
	Filters   []Filter `toml:"filters,omitempty" json:"filters,omitempty" yaml:"filters,omitempty"`
}

// Comma returns the delimiter as a single byte, defaulting to ','.
func (s SourceFile) Comma() byte {
	if s.Delimiter == "" {
		return DefaultDelimiter[0]
	}
	return s.Delimiter[0]
}

// Field binds a header column to a typed store column.
type Field struct {
	SourceName string             `toml:"source_name" json:"source_name" yaml:"source_name"`
	TargetName string             `toml:"target_name,omitempty" json:"target_name,omitempty" yaml:"target_name,omitempty"`
	FieldType  columnar.FieldType `toml:"field_type" json:"field_type" yaml:"field_type"`
	AddToFrame *bool              `toml:"add_to_frame,omitempty" json:"add_to_frame,omitempty" yaml:"add_to_frame,omitempty"`
}

// Target returns the store name of the field; the source name unless renamed.
func (f Field) Target() string {
	if f.TargetName == "" {
		return f.SourceName
	}
	return f.TargetName
}

// InFrame reports whether the field is kept in the final frame (default true).
func (f Field) InFrame() bool {
	return f.AddToFrame == nil || *f.AddToFrame
}

// Filter drops rows whose SourceField value does not satisfy Method.
type Filter struct {
	SourceField string       `toml:"source_field" json:"source_field" yaml:"source_field"`
	Method      FilterMethod `toml:"filter" json:"filter" yaml:"filter"`
}

// FilterKind selects the comparison a filter performs.
type FilterKind string

const (
	// Match keeps rows equal to the target
	Match FilterKind = "Match"
	// MatchNot keeps rows not equal to the target
	MatchNot FilterKind = "MatchNot"
	// Inequality keeps rows satisfying an ordered comparison with the target
	Inequality FilterKind = "Inequality"
)

// Comparison is the operator of an Inequality filter, read as
// "cell <op> target".
type Comparison string

const (
	Gt  Comparison = "Gt"
	Gte Comparison = "Gte"
	Lt  Comparison = "Lt"
	Lte Comparison = "Lte"
)

// FilterMethod is a filter's comparison and its typed target. Exactly one of
// the target values must be set; it also fixes the type the cell is parsed as.
type FilterMethod struct {
	Kind       FilterKind `toml:"method" json:"method" yaml:"method"`
	Inequality Comparison `toml:"inequality,omitempty" json:"inequality,omitempty" yaml:"inequality,omitempty"`

	Text     *string  `toml:"text,omitempty" json:"text,omitempty" yaml:"text,omitempty"`
	Signed   *int64   `toml:"signed,omitempty" json:"signed,omitempty" yaml:"signed,omitempty"`
	Unsigned *uint64  `toml:"unsigned,omitempty" json:"unsigned,omitempty" yaml:"unsigned,omitempty"`
	Boolean  *bool    `toml:"boolean,omitempty" json:"boolean,omitempty" yaml:"boolean,omitempty"`
	Float    *float64 `toml:"float,omitempty" json:"float,omitempty" yaml:"float,omitempty"`
}

// Transform derives one or more columns from existing ones.
type Transform struct {
	SourceFields []string        `toml:"source_fields" json:"source_fields" yaml:"source_fields"`
	TargetName   string          `toml:"target_name" json:"target_name" yaml:"target_name"`
	Method       TransformMethod `toml:"method" json:"method" yaml:"method"`
	AddToFrame   *bool           `toml:"add_to_frame,omitempty" json:"add_to_frame,omitempty" yaml:"add_to_frame,omitempty"`
}

// InFrame reports whether the generated columns are kept (default true).
func (t Transform) InFrame() bool {
	return t.AddToFrame == nil || *t.AddToFrame
}

// Action names a transform method.
type Action string

const (
	Convert         Action = "Convert"
	Map             Action = "Map"
	Concatenate     Action = "Concatenate"
	VectorizeOneHot Action = "VectorizeOneHot"
	VectorizeHash   Action = "VectorizeHash"
	Normalize       Action = "Normalize"
	Scale           Action = "Scale"
)

// Actions lists every transform action.
func Actions() []Action {
	return []Action{Convert, Map, Concatenate, VectorizeOneHot, VectorizeHash, Normalize, Scale}
}

// Scaling is the value pair used by one-hot vectorization.
type Scaling string

const (
	// ZeroOne encodes off as 0 and on as 1
	ZeroOne Scaling = "ZeroOne"
	// NegOneOne encodes off as -1 and on as 1
	NegOneOne Scaling = "NegOneOne"
)

// Valid reports whether s is a known scaling or unset.
func (s Scaling) Valid() bool {
	return s == "" || s == ZeroOne || s == NegOneOne
}

// DefaultHashSize is the VectorizeHash bucket count when none is given.
const DefaultHashSize uint64 = 1 << 18

// TransformMethod is the action of a transform and its parameters. Only the
// parameters of the chosen action are read.
type TransformMethod struct {
	Action Action `toml:"action" json:"action" yaml:"action"`

	// Convert
	TargetType columnar.FieldType `toml:"target_type,omitempty" json:"target_type,omitempty" yaml:"target_type,omitempty"`

	// Map
	DefaultValue string            `toml:"default_value,omitempty" json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Mapping      map[string]string `toml:"map,omitempty" json:"map,omitempty" yaml:"map,omitempty"`

	// Concatenate
	Separator string `toml:"separator,omitempty" json:"separator,omitempty" yaml:"separator,omitempty"`

	// VectorizeOneHot
	BinaryScaling Scaling `toml:"binary_scaling,omitempty" json:"binary_scaling,omitempty" yaml:"binary_scaling,omitempty"`

	// VectorizeHash
	HashSize *uint64 `toml:"hash_size,omitempty" json:"hash_size,omitempty" yaml:"hash_size,omitempty"`

	// Normalize: 0 population, 1 sample, 1.5 approximately unbiased
	SampleStdevCorrection float64 `toml:"sample_stdev_correction,omitempty" json:"sample_stdev_correction,omitempty" yaml:"sample_stdev_correction,omitempty"`

	// Scale output range, [0, 1] unless either bound is set
	MinValue *float64 `toml:"min_value,omitempty" json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue *float64 `toml:"max_value,omitempty" json:"max_value,omitempty" yaml:"max_value,omitempty"`
}

// Scaling returns the configured one-hot scaling, ZeroOne by default.
func (m TransformMethod) Scaling() Scaling {
	if m.BinaryScaling == "" {
		return ZeroOne
	}
	return m.BinaryScaling
}

// Buckets returns the configured hash size, DefaultHashSize by default.
func (m TransformMethod) Buckets() uint64 {
	if m.HashSize == nil {
		return DefaultHashSize
	}
	return *m.HashSize
}

// Bounds returns the Scale output range and whether it was customized.
func (m TransformMethod) Bounds() (lo, hi float64, custom bool) {
	lo, hi = 0, 1
	if m.MinValue != nil {
		lo, custom = *m.MinValue, true
	}
	if m.MaxValue != nil {
		hi, custom = *m.MaxValue, true
	}
	return lo, hi, custom
}

// Ptr returns a pointer to v, for building schemas in code.
func Ptr[T any](v T) *T {
	return &v
}
