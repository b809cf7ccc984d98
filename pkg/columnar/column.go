package columnar

import (
	"fmt"
	"strconv"

	"github.com/jblondin/etl/pkg/errors"
)

// Element is the set of Go types backing the five field types.
type Element interface {
	uint64 | int64 | string | bool | float64
}

// Column is a homogeneous, ordered sequence of values of one FieldType.
// The only implementation is *Vector[T]; the interface is sealed.
type Column interface {
	Type() FieldType
	Len() int
	// Clone returns a deep copy owned by the caller.
	Clone() Column
	// Format renders row i in its default textual form.
	Format(i int) string

	appendRaw(raw string) error
}

// Vector is the Column implementation for element type T.
type Vector[T Element] struct {
	data []T
}

var (
	_ Column = (*Vector[uint64])(nil)
	_ Column = (*Vector[int64])(nil)
	_ Column = (*Vector[string])(nil)
	_ Column = (*Vector[bool])(nil)
	_ Column = (*Vector[float64])(nil)
)

// NewVector wraps data in a column. The column takes ownership of the slice.
func NewVector[T Element](data []T) *Vector[T] {
	if data == nil {
		data = []T{}
	}
	return &Vector[T]{data: data}
}

// NewColumn returns an empty column of the given type.
func NewColumn(t FieldType) (Column, error) {
	switch t {
	case Unsigned:
		return NewVector[uint64](nil), nil
	case Signed:
		return NewVector[int64](nil), nil
	case Text:
		return NewVector[string](nil), nil
	case Boolean:
		return NewVector[bool](nil), nil
	case Float:
		return NewVector[float64](nil), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid field type %d", int(t))
	}
}

// Type returns the FieldType of T.
func (v *Vector[T]) Type() FieldType { return typeOf[T]() }

// Len returns the number of values.
func (v *Vector[T]) Len() int { return len(v.data) }

// Values returns the backing slice. Callers must not grow it.
func (v *Vector[T]) Values() []T { return v.data }

// Append adds values to the end of the column.
func (v *Vector[T]) Append(values ...T) {
	v.data = append(v.data, values...)
}

func (v *Vector[T]) Clone() Column {
	out := make([]T, len(v.data))
	copy(out, v.data)
	return &Vector[T]{data: out}
}

func (v *Vector[T]) Format(i int) string {
	return FormatValue(v.data[i])
}

func (v *Vector[T]) appendRaw(raw string) error {
	x, err := ParseValue[T](raw)
	if err != nil {
		return err
	}
	v.data = append(v.data, x)
	return nil
}

// Values returns the typed values of c when c holds elements of type T.
func Values[T Element](c Column) ([]T, bool) {
	v, ok := c.(*Vector[T])
	if !ok {
		return nil, false
	}
	return v.data, true
}

func typeOf[T Element]() FieldType {
	var zero T
	switch any(zero).(type) {
	case uint64:
		return Unsigned
	case int64:
		return Signed
	case string:
		return Text
	case bool:
		return Boolean
	default:
		return Float
	}
}

// ParseValue parses raw as the element type T. Failures are parse errors.
func ParseValue[T Element](raw string) (T, error) {
	var out T
	var err error
	switch p := any(&out).(type) {
	case *uint64:
		*p, err = strconv.ParseUint(raw, 10, 64)
	case *int64:
		*p, err = strconv.ParseInt(raw, 10, 64)
	case *string:
		*p = raw
	case *bool:
		*p, err = parseBool(raw)
	case *float64:
		*p, err = strconv.ParseFloat(raw, 64)
	}
	if err != nil {
		var zero T
		return zero, errors.Wrap(err, errors.ErrorTypeParse,
			fmt.Sprintf("invalid %s literal %q", typeOf[T](), raw)).
			WithDetail("value", raw)
	}
	return out, nil
}

// parseBool accepts only the canonical literals true and false.
func parseBool(raw string) (bool, error) {
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

// FormatValue renders x in its default decimal/textual form.
func FormatValue[T Element](x T) string {
	switch v := any(x).(type) {
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
