// Package export writes a columnar store to Arrow IPC, Parquet, Avro, CSV or
// JSON lines, optionally through a compression stream.
package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/compression"
	"github.com/jblondin/etl/pkg/errors"
	"github.com/jblondin/etl/pkg/logger"
	"github.com/jblondin/etl/pkg/metrics"
	"github.com/jblondin/etl/pkg/observability"
)

// Format is an output encoding.
type Format string

const (
	Arrow     Format = "arrow"
	Parquet   Format = "parquet"
	Avro      Format = "avro"
	CSV       Format = "csv"
	JSONLines Format = "jsonl"
)

// Formats lists every export format.
func Formats() []Format {
	return []Format{Arrow, Parquet, Avro, CSV, JSONLines}
}

var formatExtensions = map[string]Format{
	".arrow":   Arrow,
	".ipc":     Arrow,
	".feather": Arrow,
	".parquet": Parquet,
	".avro":    Avro,
	".csv":     CSV,
	".jsonl":   JSONLines,
	".ndjson":  JSONLines,
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unknown export format %q", s).
		WithDetail("format", s)
}

// FormatFromPath infers the format and compression from the extensions of
// path, e.g. frame.csv.gz is gzip-compressed CSV.
func FormatFromPath(path string) (Format, compression.Algorithm, error) {
	alg, inner := compression.DetectFromPath(path)
	f, ok := formatExtensions[strings.ToLower(filepath.Ext(inner))]
	if !ok {
		return "", alg, errors.Newf(errors.ErrorTypeConfig, "cannot infer export format of %q", path).
			WithDetail("path", path)
	}
	return f, alg, nil
}

// Write encodes store to w in the given format.
func Write(w io.Writer, store *columnar.Store, format Format) error {
	switch format {
	case Arrow:
		return WriteArrow(w, store)
	case Parquet:
		return WriteParquet(w, store)
	case Avro:
		return WriteAvro(w, store)
	case CSV:
		return WriteCSV(w, store)
	case JSONLines:
		return WriteJSONLines(w, store)
	}
	return errors.Newf(errors.ErrorTypeConfig, "unknown export format %q", string(format))
}

// Options controls ToFile. Zero values are inferred from the path.
type Options struct {
	Format      Format
	Compression compression.Algorithm
	Level       compression.Level
	Logger      *zap.Logger
}

// ToFile writes store to path. Format and compression not set in opts are
// taken from the path's extensions.
func ToFile(ctx context.Context, path string, store *columnar.Store, opts Options) (err error) {
	ctx = logger.WithStage(ctx, metrics.StageExport)
	_, span := observability.StartSpan(ctx, metrics.StageExport, attribute.String("path", path))
	timer := metrics.NewTimer(metrics.StageExport)
	defer func() {
		timer.ObserveDuration()
		if err != nil {
			metrics.Failures.WithLabelValues(metrics.StageExport, string(errors.TypeOf(err))).Inc()
		}
		span.End(err)
	}()

	format, alg, inferErr := FormatFromPath(path)
	if opts.Format != "" {
		format, inferErr = opts.Format, nil
	}
	if inferErr != nil {
		return inferErr
	}
	if opts.Compression != "" {
		alg = opts.Compression
	}
	span.SetAttribute("format", string(format))
	span.SetAttribute("compression", string(alg))

	f, err := os.Create(path) //nolint:gosec // G304: output path is user supplied
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output file").
				WithDetail("path", path)
		}
	}()

	cw, err := compression.NewWriter(f, alg, opts.Level)
	if err != nil {
		return err
	}
	if err := Write(cw, store, format); err != nil {
		return withPath(err, path)
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish compressed stream").
			WithDetail("path", path)
	}

	logger.FromContext(ctx, opts.Logger).Info("frame exported",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.String("compression", string(alg)),
		zap.Int("rows", store.RowCount()),
		zap.Int("fields", store.NumFields()))
	return nil
}

func homogeneous(store *columnar.Store) error {
	if !store.IsHomogeneous() {
		return errors.New(errors.ErrorTypeSchema, "inconsistent field lengths").
			WithDetail("lengths", store.Lengths())
	}
	return nil
}

func withPath(err error, path string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.WithDetail("path", path)
	}
	return err
}
