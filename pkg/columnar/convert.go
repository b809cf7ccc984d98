package columnar

import (
	"golang.org/x/exp/constraints"

	"github.com/jblondin/etl/pkg/errors"
)

type number interface {
	constraints.Integer | constraints.Float
}

type converter func(Column) (Column, error)

// conversions is indexed [source][target] and covers all 25 pairs.
var conversions = map[FieldType]map[FieldType]converter{
	Unsigned: fromNumbers[uint64](),
	Signed:   fromNumbers[int64](),
	Float:    fromNumbers[float64](),
	Text: {
		Unsigned: parseText[uint64],
		Signed:   parseText[int64],
		Float:    parseText[float64],
		Boolean:  parseText[bool],
		Text:     cloneColumn,
	},
	Boolean: {
		Unsigned: fromBools[uint64],
		Signed:   fromBools[int64],
		Float:    fromBools[float64],
		Text:     formatColumn[bool],
		Boolean:  cloneColumn,
	},
}

// Convert returns a new column holding col's values as type target.
// Numeric to numeric conversions use Go's conversion rules and may truncate
// or wrap. Text sources must parse completely or the whole conversion fails.
func Convert(col Column, target FieldType) (Column, error) {
	if col == nil {
		return nil, errors.New(errors.ErrorTypeInternal, "convert of nil column")
	}
	row, ok := conversions[col.Type()]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid source type %s", col.Type())
	}
	conv, ok := row[target]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid target type %s", target)
	}
	return conv(col)
}

func fromNumbers[S uint64 | int64 | float64]() map[FieldType]converter {
	return map[FieldType]converter{
		Unsigned: castNumbers[S, uint64],
		Signed:   castNumbers[S, int64],
		Float:    castNumbers[S, float64],
		Text:     formatColumn[S],
		Boolean: func(c Column) (Column, error) {
			src := c.(*Vector[S]).data
			out := make([]bool, len(src))
			for i, v := range src {
				out[i] = v != 0
			}
			return NewVector(out), nil
		},
	}
}

func castNumbers[S, T interface {
	number
	Element
}](c Column) (Column, error) {
	src := c.(*Vector[S]).data
	out := make([]T, len(src))
	for i, v := range src {
		out[i] = T(v)
	}
	return NewVector(out), nil
}

func fromBools[T interface {
	number
	Element
}](c Column) (Column, error) {
	src := c.(*Vector[bool]).data
	out := make([]T, len(src))
	for i, v := range src {
		if v {
			out[i] = 1
		}
	}
	return NewVector(out), nil
}

func formatColumn[S Element](c Column) (Column, error) {
	src := c.(*Vector[S]).data
	out := make([]string, len(src))
	for i, v := range src {
		out[i] = FormatValue(v)
	}
	return NewVector(out), nil
}

func parseText[T Element](c Column) (Column, error) {
	src := c.(*Vector[string]).data
	out := make([]T, len(src))
	for i, raw := range src {
		v, err := ParseValue[T](raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeParse, "text conversion failed").
				WithDetail("row", i)
		}
		out[i] = v
	}
	return NewVector(out), nil
}

func cloneColumn(c Column) (Column, error) {
	return c.Clone(), nil
}

// Float64s returns a numeric or boolean column's values as float64, with
// true as 1 and false as 0. Text columns report false.
func Float64s(c Column) ([]float64, bool) {
	if c == nil || c.Type() == Text {
		return nil, false
	}
	conv, err := Convert(c, Float)
	if err != nil {
		return nil, false
	}
	return conv.(*Vector[float64]).data, true
}
