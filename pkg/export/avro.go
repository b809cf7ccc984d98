package export

import (
	"io"
	"math"
	"regexp"

	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/errors"
)

var avroName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type avroField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type avroRecord struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Fields []avroField `json:"fields"`
}

// AvroSchema returns the Avro record schema of a store. Unsigned and Signed
// become long, Float becomes double. Field names must be valid Avro names.
func AvroSchema(store *columnar.Store) (string, error) {
	rec := avroRecord{Type: "record", Name: "Frame", Fields: []avroField{}}
	for _, f := range store.Fields() {
		if !avroName.MatchString(f.Name) {
			return "", errors.Newf(errors.ErrorTypeConfig, "field %q is not a valid avro name", f.Name).
				WithDetail("field", f.Name)
		}
		var t string
		switch f.Type {
		case columnar.Unsigned, columnar.Signed:
			t = "long"
		case columnar.Text:
			t = "string"
		case columnar.Boolean:
			t = "boolean"
		case columnar.Float:
			t = "double"
		}
		rec.Fields = append(rec.Fields, avroField{Name: f.Name, Type: t})
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode avro schema")
	}
	return string(data), nil
}

// WriteAvro writes the store to w as an Avro object container file, one
// record per row. Unsigned values above the long range are an error.
func WriteAvro(w io.Writer, store *columnar.Store) error {
	if err := homogeneous(store); err != nil {
		return err
	}
	schema, err := AvroSchema(store)
	if err != nil {
		return err
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Schema:          schema,
		CompressionName: goavro.CompressionNullLabel,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to create avro writer")
	}

	names := store.FieldNames()
	cols := columns(store)
	rows := make([]map[string]interface{}, 0, store.RowCount())
	for row := 0; row < store.RowCount(); row++ {
		datum := make(map[string]interface{}, len(cols))
		for j, col := range cols {
			v := value(col, row)
			if u, ok := v.(uint64); ok {
				if u > math.MaxInt64 {
					return errors.Newf(errors.ErrorTypeParse, "value %d of %q overflows avro long", u, names[j]).
						WithDetail("row", row).
						WithDetail("field", names[j])
				}
				v = int64(u)
			}
			datum[names[j]] = v
		}
		rows = append(rows, datum)
	}
	if err := ocf.Append(rows); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write avro records")
	}
	return nil
}
