package columnar

import (
	"gonum.org/v1/gonum/mat"

	"github.com/jblondin/etl/pkg/errors"
)

// AsMatrix projects the non-Text columns of the store, in store order, onto a
// row-major float matrix. Unsigned and Signed values are cast, Boolean values
// become 0 or 1. The returned names match the matrix columns. A store with no
// rows or no numeric columns yields a nil matrix, since gonum has no empty
// Dense.
func (s *Store) AsMatrix() ([]string, *mat.Dense, error) {
	if !s.IsHomogeneous() {
		return nil, nil, errors.New(errors.ErrorTypeSchema, "inconsistent field lengths").
			WithDetail("lengths", s.Lengths())
	}

	rows := s.RowCount()
	var names []string
	var cols [][]float64
	for _, f := range s.fields {
		values, ok := Float64s(s.columns[f.Name])
		if !ok {
			continue
		}
		if len(values) != rows {
			return nil, nil, errors.Newf(errors.ErrorTypeSchema,
				"field %q has %d rows, expected %d", f.Name, len(values), rows).
				WithDetail("field", f.Name)
		}
		names = append(names, f.Name)
		cols = append(cols, values)
	}
	if rows == 0 || len(cols) == 0 {
		return names, nil, nil
	}

	data := make([]float64, rows*len(cols))
	for j, values := range cols {
		for i, v := range values {
			data[i*len(cols)+j] = v
		}
	}
	return names, mat.NewDense(rows, len(cols), data), nil
}
