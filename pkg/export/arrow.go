package export

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/errors"
)

// ArrowType returns the Arrow data type a field type is written as.
func ArrowType(t columnar.FieldType) (arrow.DataType, error) {
	switch t {
	case columnar.Unsigned:
		return arrow.PrimitiveTypes.Uint64, nil
	case columnar.Signed:
		return arrow.PrimitiveTypes.Int64, nil
	case columnar.Text:
		return arrow.BinaryTypes.String, nil
	case columnar.Boolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case columnar.Float:
		return arrow.PrimitiveTypes.Float64, nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "no arrow type for %s", t)
}

// ArrowSchema builds the Arrow schema of a store, one non-nullable field per
// column in store order.
func ArrowSchema(store *columnar.Store) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, store.NumFields())
	for _, f := range store.Fields() {
		dt, err := ArrowType(f.Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: f.Name, Type: dt})
	}
	return arrow.NewSchema(fields, nil), nil
}

// WriteArrow writes the store to w as a single record batch in the Arrow IPC
// file format.
func WriteArrow(w io.Writer, store *columnar.Store) error {
	pool := memory.NewGoAllocator()
	schema, record, err := buildRecord(pool, store)
	if err != nil {
		return err
	}
	defer record.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow writer")
	}
	if err := fw.Write(record); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close arrow writer")
	}
	return nil
}

// buildRecord copies every column of the store into one Arrow record. The
// caller releases it.
func buildRecord(pool memory.Allocator, store *columnar.Store) (*arrow.Schema, arrow.Record, error) {
	if err := homogeneous(store); err != nil {
		return nil, nil, err
	}
	schema, err := ArrowSchema(store)
	if err != nil {
		return nil, nil, err
	}

	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()
	for i, f := range store.Fields() {
		col, _ := store.Column(f.Name)
		appendColumn(builder.Field(i), col)
	}
	return schema, builder.NewRecord(), nil
}

func appendColumn(b array.Builder, col columnar.Column) {
	switch b := b.(type) {
	case *array.Uint64Builder:
		v, _ := columnar.Values[uint64](col)
		b.AppendValues(v, nil)
	case *array.Int64Builder:
		v, _ := columnar.Values[int64](col)
		b.AppendValues(v, nil)
	case *array.StringBuilder:
		v, _ := columnar.Values[string](col)
		b.AppendValues(v, nil)
	case *array.BooleanBuilder:
		v, _ := columnar.Values[bool](col)
		b.AppendValues(v, nil)
	case *array.Float64Builder:
		v, _ := columnar.Values[float64](col)
		b.AppendValues(v, nil)
	}
}
