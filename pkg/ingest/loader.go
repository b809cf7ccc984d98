// Package ingest reads delimited source files into a columnar store,
// binding header columns to schema fields, decoding cells, filtering rows and
// parsing values into their declared types.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/compression"
	"github.com/jblondin/etl/pkg/errors"
	"github.com/jblondin/etl/pkg/intern"
	"github.com/jblondin/etl/pkg/logger"
	"github.com/jblondin/etl/pkg/metrics"
	"github.com/jblondin/etl/pkg/mmap"
	"github.com/jblondin/etl/pkg/observability"
	"github.com/jblondin/etl/pkg/schema"
)

// cancelCheckInterval is how many rows are read between context checks.
const cancelCheckInterval = 1024

// FileStats summarizes one ingested file.
type FileStats struct {
	Path         string
	RowsRead     int
	RowsFiltered int
	RowsLoaded   int
	// Fallbacks counts cells decoded from a non UTF-8 encoding
	Fallbacks map[Encoding]int
	// InternHits counts Text cells that reused an already seen value, and
	// Distinct the values held for them across Text fields
	InternHits int
	Distinct   int
}

// Stats summarizes an ingestion pass.
type Stats struct {
	Files []FileStats
}

// RowsLoaded is the number of rows kept across all files.
func (s Stats) RowsLoaded() int {
	n := 0
	for _, f := range s.Files {
		n += f.RowsLoaded
	}
	return n
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger sets the logger; the global logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// Loader ingests source files.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	ld := &Loader{}
	for _, opt := range opts {
		opt(ld)
	}
	ld.logger = logger.OrGlobal(ld.logger)
	return ld
}

// Load ingests every source file and merges their columns into one store.
// A field name produced by two files is a schema error, as is a final store
// whose columns differ in length.
func (l *Loader) Load(ctx context.Context, files []schema.SourceFile) (*columnar.Store, Stats, error) {
	ctx = logger.WithStage(ctx, metrics.StageIngest)
	ctx, span := observability.StartSpan(ctx, metrics.StageIngest,
		attribute.Int("source_files", len(files)))
	timer := metrics.NewTimer(metrics.StageIngest)

	store, stats, err := l.load(ctx, files)

	timer.ObserveDuration()
	if err != nil {
		metrics.Failures.WithLabelValues(metrics.StageIngest, string(errors.TypeOf(err))).Inc()
	} else {
		span.SetAttribute("rows", store.RowCount())
		span.SetAttribute("fields", store.NumFields())
	}
	span.End(err)
	return store, stats, err
}

func (l *Loader) load(ctx context.Context, files []schema.SourceFile) (*columnar.Store, Stats, error) {
	var stats Stats
	acc := columnar.NewStore()
	for _, sf := range files {
		store, fs, err := l.LoadFile(ctx, sf)
		if err != nil {
			return nil, stats, err
		}
		stats.Files = append(stats.Files, fs)
		if err := acc.Merge(store); err != nil {
			return nil, stats, errors.Wrap(err, errors.ErrorTypeSchema, "merging "+sf.Name).
				WithDetail("path", sf.Name)
		}
	}
	if !acc.IsHomogeneous() {
		return nil, stats, errors.New(errors.ErrorTypeSchema, "inconsistent field lengths").
			WithDetail("lengths", acc.Lengths())
	}
	logger.FromContext(ctx, l.logger).Info("ingestion complete",
		zap.Int("files", len(files)),
		zap.Int("rows", acc.RowCount()),
		zap.Int("fields", acc.NumFields()))
	return acc, stats, nil
}

// LoadFile ingests a single source file. Plain files are memory mapped; a
// trailing compression extension such as .gz or .zst is decompressed
// transparently.
func (l *Loader) LoadFile(ctx context.Context, sf schema.SourceFile) (*columnar.Store, FileStats, error) {
	ctx = logger.WithSourceFile(ctx, sf.Name)
	alg, _ := compression.DetectFromPath(sf.Name)
	if alg == compression.None {
		m, err := mmap.Open(sf.Name)
		if err != nil {
			return nil, FileStats{Path: sf.Name}, err
		}
		defer m.Close()
		logger.FromContext(ctx, l.logger).Debug("source file opened",
			zap.Bool("mapped", m.Mapped()),
			zap.Int("bytes", len(m.Bytes())))
		return l.readFile(ctx, m, sf)
	}

	f, err := os.Open(sf.Name) //nolint:gosec // G304: path comes from the schema
	if err != nil {
		return nil, FileStats{Path: sf.Name}, errors.Wrap(err, errors.ErrorTypeFile, "failed to open source file").
			WithDetail("path", sf.Name)
	}
	defer f.Close()

	r, err := compression.NewReader(f, alg)
	if err != nil {
		return nil, FileStats{Path: sf.Name}, withPath(err, sf.Name)
	}
	defer r.Close()
	return l.readFile(ctx, r, sf)
}

func (l *Loader) readFile(ctx context.Context, r io.Reader, sf schema.SourceFile) (*columnar.Store, FileStats, error) {
	store, stats, err := l.Read(ctx, r, sf)
	if err != nil {
		return nil, stats, withPath(err, sf.Name)
	}
	return store, stats, nil
}

// binding ties a declared field to its header column.
type binding struct {
	field  schema.Field
	column int
}

// rowFilter ties a compiled filter to the binding it reads.
type rowFilter struct {
	pred    *schema.Predicate
	binding int
}

// Read ingests delimited text from r described by sf. Header columns not
// declared in sf are ignored; a declared field missing from the header is a
// schema error.
func (l *Loader) Read(ctx context.Context, r io.Reader, sf schema.SourceFile) (*columnar.Store, FileStats, error) {
	stats := FileStats{Path: sf.Name, Fallbacks: make(map[Encoding]int)}
	log := logger.FromContext(logger.WithSourceFile(ctx, sf.Name), l.logger)

	reader := csv.NewReader(r)
	reader.Comma = rune(sf.Comma())
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, stats, errors.New(errors.ErrorTypeSchema, "source file has no header row")
	}
	if err != nil {
		return nil, stats, csvError(err)
	}
	names := make(map[string]int, len(header))
	for i, h := range header {
		h, _, err := Decode(h)
		if err != nil {
			return nil, stats, errors.Wrap(err, errors.ErrorTypeDecode, "header").
				WithDetail("row", 0).
				WithDetail("field_index", i+1)
		}
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if _, dup := names[h]; !dup {
			names[h] = i
		}
	}

	store := columnar.NewStore()
	bindings, byName, err := bind(sf, names, store)
	if err != nil {
		return nil, stats, err
	}
	filters := make([]rowFilter, 0, len(sf.Filters))
	for _, flt := range sf.Filters {
		b, ok := byName[flt.SourceField]
		if !ok {
			return nil, stats, errors.Newf(errors.ErrorTypeSchema,
				"filter references undeclared field %q", flt.SourceField).
				WithDetail("field", flt.SourceField)
		}
		pred, err := flt.Compile()
		if err != nil {
			return nil, stats, err
		}
		filters = append(filters, rowFilter{pred: pred, binding: b})
	}

	values := make([]string, len(bindings))
	pools := make([]*intern.Pool, len(bindings))
	for i, b := range bindings {
		if b.field.FieldType == columnar.Text {
			pools[i] = intern.New(intern.DefaultLimit)
		}
	}
	for row := 1; ; row++ {
		if row%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, errors.Wrap(err, errors.ErrorTypeInternal, "ingestion cancelled")
			}
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, csvError(err)
		}
		stats.RowsRead++

		for i, b := range bindings {
			v, enc, err := Decode(record[b.column])
			if err != nil {
				return nil, stats, errors.Wrap(err, errors.ErrorTypeDecode, "unable to decode cell").
					WithDetail("row", row).
					WithDetail("field_index", b.column+1).
					WithDetail("field", b.field.SourceName)
			}
			if enc != UTF8 {
				stats.Fallbacks[enc]++
				metrics.DecodeFallbacks.WithLabelValues(enc.String()).Inc()
				log.Debug("decoded cell with fallback encoding",
					zap.Int("row", row),
					zap.String("field", b.field.SourceName),
					zap.Stringer("encoding", enc))
			}
			if pools[i] != nil {
				v = pools[i].Get(v)
			}
			values[i] = v
		}

		keep := true
		for _, f := range filters {
			ok, err := f.pred.Apply(values[f.binding])
			if err != nil {
				return nil, stats, withDetail(err, "row", row)
			}
			if !ok {
				keep = false
				break
			}
		}
		if !keep {
			stats.RowsFiltered++
			continue
		}

		for i, b := range bindings {
			if err := store.Insert(b.field.Target(), b.field.FieldType, values[i]); err != nil {
				return nil, stats, withDetail(err, "row", row)
			}
		}
		stats.RowsLoaded++
	}

	for _, p := range pools {
		if p != nil {
			stats.InternHits += p.Hits()
			stats.Distinct += p.Size()
		}
	}

	metrics.Rows.WithLabelValues(sf.Name, metrics.OutcomeRead).Add(float64(stats.RowsRead))
	metrics.Rows.WithLabelValues(sf.Name, metrics.OutcomeFiltered).Add(float64(stats.RowsFiltered))
	metrics.Rows.WithLabelValues(sf.Name, metrics.OutcomeLoaded).Add(float64(stats.RowsLoaded))
	log.Info("source file ingested",
		zap.Int("rows_read", stats.RowsRead),
		zap.Int("rows_filtered", stats.RowsFiltered),
		zap.Int("rows_loaded", stats.RowsLoaded),
		zap.Int("fields", len(bindings)),
		zap.Int("intern_hits", stats.InternHits),
		zap.Int("distinct_text", stats.Distinct))
	return store, stats, nil
}

// bind resolves every declared field against the header and creates its
// empty column, so that a file whose rows are all filtered still yields its
// fields.
func bind(sf schema.SourceFile, header map[string]int, store *columnar.Store) ([]binding, map[string]int, error) {
	bindings := make([]binding, 0, len(sf.Fields))
	byName := make(map[string]int, len(sf.Fields))
	for _, f := range sf.Fields {
		col, ok := header[f.SourceName]
		if !ok {
			return nil, nil, errors.Newf(errors.ErrorTypeSchema,
				"field %q not found in header", f.SourceName).
				WithDetail("field", f.SourceName)
		}
		empty, err := columnar.NewColumn(f.FieldType)
		if err != nil {
			return nil, nil, withDetail(err, "field", f.SourceName)
		}
		if err := store.MergeColumn(f.Target(), empty); err != nil {
			return nil, nil, err
		}
		if _, seen := byName[f.SourceName]; !seen {
			byName[f.SourceName] = len(bindings)
		}
		bindings = append(bindings, binding{field: f, column: col})
	}
	return bindings, byName, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return errors.Wrap(err, errors.ErrorTypeParse, "malformed delimited text").
			WithDetail("line", pe.Line).
			WithDetail("column", pe.Column)
	}
	return errors.Wrap(err, errors.ErrorTypeFile, "failed to read source file")
}

func withDetail(err error, key string, value interface{}) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.WithDetail(key, value)
	}
	return err
}

func withPath(err error, path string) error {
	return withDetail(err, "path", path)
}
