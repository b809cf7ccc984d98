package export

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/errors"
)

// WriteParquet writes the store to w as a snappy-compressed Parquet file with
// one row group.
func WriteParquet(w io.Writer, store *columnar.Store) error {
	pool := memory.NewGoAllocator()
	schema, record, err := buildRecord(pool, store)
	if err != nil {
		return err
	}
	defer record.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(pool))

	// the parquet writer closes its sink; w belongs to the caller
	fw, err := pqarrow.NewFileWriter(schema, struct{ io.Writer }{w}, props, arrowProps)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet writer")
	}
	if err := fw.Write(record); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write parquet row group")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close parquet writer")
	}
	return nil
}
