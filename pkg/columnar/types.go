package columnar

import (
	"strings"

	"github.com/jblondin/etl/pkg/errors"
)

// FieldType is the closed set of value types a column can hold. It drives both
// storage and the eligibility of conversions, filters and transforms.
type FieldType int

const (
	// Unsigned is an unsigned 64-bit integer column
	Unsigned FieldType = iota + 1
	// Signed is a signed 64-bit integer column
	Signed
	// Text is a string column
	Text
	// Boolean is a true/false column
	Boolean
	// Float is a 64-bit floating-point column
	Float
)

var fieldTypeNames = map[FieldType]string{
	Unsigned: "Unsigned",
	Signed:   "Signed",
	Text:     "Text",
	Boolean:  "Boolean",
	Float:    "Float",
}

// FieldTypes lists every valid FieldType in declaration order.
func FieldTypes() []FieldType {
	return []FieldType{Unsigned, Signed, Text, Boolean, Float}
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return "Invalid"
}

// Valid reports whether t is one of the five field types.
func (t FieldType) Valid() bool {
	_, ok := fieldTypeNames[t]
	return ok
}

// IsOrdered reports whether values of t support inequality comparison.
func (t FieldType) IsOrdered() bool {
	return t == Unsigned || t == Signed || t == Float
}

// ParseFieldType parses a type name, case-insensitively.
func ParseFieldType(s string) (FieldType, error) {
	for t, name := range fieldTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, errors.Newf(errors.ErrorTypeConfig, "unknown field type %q", s).
		WithDetail("field_type", s)
}

// IsZero reports whether t is unset.
func (t FieldType) IsZero() bool {
	return t == 0
}

// MarshalText implements encoding.TextMarshaler. The zero value marshals as
// an empty string.
func (t FieldType) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return []byte{}, nil
	}
	if !t.Valid() {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid field type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// FieldInfo describes one column of a store: its position, name and type.
type FieldInfo struct {
	Index int
	Name  string
	Type  FieldType
}
