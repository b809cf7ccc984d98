package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jblondin/etl/pkg/errors"
)

func sampleColumns() map[FieldType]Column {
	return map[FieldType]Column{
		Unsigned: NewVector([]uint64{0, 1, 42}),
		Signed:   NewVector([]int64{-3, 0, 7}),
		Float:    NewVector([]float64{-1.5, 0, 2.25}),
		Boolean:  NewVector([]bool{true, false, true}),
		Text:     NewVector([]string{"1", "0", "12"}),
	}
}

func TestConvertIsTotal(t *testing.T) {
	for src, col := range sampleColumns() {
		for _, dst := range FieldTypes() {
			if src == Text && dst == Boolean {
				continue // "12" is not a boolean literal
			}
			out, err := Convert(col, dst)
			require.NoError(t, err, "%s -> %s", src, dst)
			assert.Equal(t, dst, out.Type(), "%s -> %s", src, dst)
			assert.Equal(t, col.Len(), out.Len(), "%s -> %s", src, dst)
		}
	}
}

func TestConvertValues(t *testing.T) {
	cols := sampleColumns()

	tests := []struct {
		name   string
		src    FieldType
		dst    FieldType
		expect interface{}
	}{
		{"signed to unsigned wraps", Signed, Unsigned, []uint64{^uint64(2), 0, 7}},
		{"float to signed truncates", Float, Signed, []int64{-1, 0, 2}},
		{"unsigned to float", Unsigned, Float, []float64{0, 1, 42}},
		{"float to text", Float, Text, []string{"-1.5", "0", "2.25"}},
		{"signed to text", Signed, Text, []string{"-3", "0", "7"}},
		{"signed to boolean", Signed, Boolean, []bool{true, false, true}},
		{"float to boolean", Float, Boolean, []bool{true, false, true}},
		{"boolean to signed", Boolean, Signed, []int64{1, 0, 1}},
		{"boolean to float", Boolean, Float, []float64{1, 0, 1}},
		{"boolean to text", Boolean, Text, []string{"true", "false", "true"}},
		{"text to unsigned", Text, Unsigned, []uint64{1, 0, 12}},
		{"text to float", Text, Float, []float64{1, 0, 12}},
		{"text identity", Text, Text, []string{"1", "0", "12"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Convert(cols[tt.src], tt.dst)
			require.NoError(t, err)
			switch want := tt.expect.(type) {
			case []uint64:
				got, _ := Values[uint64](out)
				assert.Equal(t, want, got)
			case []int64:
				got, _ := Values[int64](out)
				assert.Equal(t, want, got)
			case []float64:
				got, _ := Values[float64](out)
				assert.Equal(t, want, got)
			case []bool:
				got, _ := Values[bool](out)
				assert.Equal(t, want, got)
			case []string:
				got, _ := Values[string](out)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestConvertRoundTrip(t *testing.T) {
	orig := NewVector([]uint64{0, 7, 18446744073709551615})
	text, err := Convert(orig, Text)
	require.NoError(t, err)
	back, err := Convert(text, Unsigned)
	require.NoError(t, err)
	assert.Equal(t, orig.Values(), back.(*Vector[uint64]).Values())
}

func TestConvertIdentityClones(t *testing.T) {
	orig := NewVector([]float64{1, 2})
	out, err := Convert(orig, Float)
	require.NoError(t, err)
	vals, _ := Values[float64](out)
	vals[0] = 99
	assert.Equal(t, 1.0, orig.Values()[0])
}

func TestConvertTextFailure(t *testing.T) {
	_, err := Convert(NewVector([]string{"1", "two"}), Signed)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	row, ok := e.Detail("row")
	require.True(t, ok)
	assert.Equal(t, 1, row)
}

func TestConvertInvalidTarget(t *testing.T) {
	_, err := Convert(NewVector([]int64{1}), FieldType(0))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
