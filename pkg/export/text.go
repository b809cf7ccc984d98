package export

import (
	"bufio"
	"encoding/csv"
	"io"

	"github.com/goccy/go-json"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/errors"
)

// WriteCSV writes a header row of field names followed by one row per
// record, each value in its default text form.
func WriteCSV(w io.Writer, store *columnar.Store) error {
	if err := homogeneous(store); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	names := store.FieldNames()
	if err := cw.Write(names); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write csv header")
	}

	cols := columns(store)
	record := make([]string, len(cols))
	for row := 0; row < store.RowCount(); row++ {
		for j, col := range cols {
			record[j] = col.Format(row)
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write csv row").
				WithDetail("row", row)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush csv")
	}
	return nil
}

// WriteJSONLines writes one JSON object per record with keys in store order.
func WriteJSONLines(w io.Writer, store *columnar.Store) error {
	if err := homogeneous(store); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	names := store.FieldNames()
	keys := make([][]byte, len(names))
	for i, name := range names {
		k, err := json.Marshal(name)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode field name")
		}
		keys[i] = k
	}

	cols := columns(store)
	for row := 0; row < store.RowCount(); row++ {
		bw.WriteByte('{')
		for j, col := range cols {
			if j > 0 {
				bw.WriteByte(',')
			}
			bw.Write(keys[j])
			bw.WriteByte(':')
			v, err := json.Marshal(value(col, row))
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeParse, "failed to encode value").
					WithDetail("row", row).
					WithDetail("field", names[j])
			}
			bw.Write(v)
		}
		bw.WriteString("}\n")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write json lines")
	}
	return nil
}

func columns(store *columnar.Store) []columnar.Column {
	names := store.FieldNames()
	cols := make([]columnar.Column, len(names))
	for i, name := range names {
		cols[i], _ = store.Column(name)
	}
	return cols
}

func value(col columnar.Column, row int) interface{} {
	switch col.Type() {
	case columnar.Unsigned:
		v, _ := columnar.Values[uint64](col)
		return v[row]
	case columnar.Signed:
		v, _ := columnar.Values[int64](col)
		return v[row]
	case columnar.Text:
		v, _ := columnar.Values[string](col)
		return v[row]
	case columnar.Boolean:
		v, _ := columnar.Values[bool](col)
		return v[row]
	case columnar.Float:
		v, _ := columnar.Values[float64](col)
		return v[row]
	}
	return nil
}
