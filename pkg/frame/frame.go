// Package frame runs the full load pipeline and exposes its result. A
// DataFrame is built by ingesting the schema's source files, running its
// transforms and keeping the columns marked add_to_frame.
package frame

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/errors"
	"github.com/jblondin/etl/pkg/ingest"
	"github.com/jblondin/etl/pkg/logger"
	"github.com/jblondin/etl/pkg/metrics"
	"github.com/jblondin/etl/pkg/observability"
	"github.com/jblondin/etl/pkg/schema"
	"github.com/jblondin/etl/pkg/transform"
)

// DataFrame is the final, homogeneous store produced by a load.
type DataFrame struct {
	store *columnar.Store
	stats ingest.Stats
}

type options struct {
	logger *zap.Logger
}

// Option configures a load
type Option func(*options)

// WithLogger sets the logger used by every stage.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// LoadFile reads the schema at path and loads it.
func LoadFile(ctx context.Context, path string, opts ...Option) (*DataFrame, error) {
	cfg, err := schema.Load(path)
	if err != nil {
		return nil, err
	}
	return Load(logger.WithSchema(ctx, path), cfg, opts...)
}

// Load ingests cfg's source files, runs its transforms and finalizes the
// result. Any stage failure discards everything loaded so far.
func Load(ctx context.Context, cfg *schema.DataConfig, opts ...Option) (*DataFrame, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	log := logger.OrGlobal(o.logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	raw, stats, err := ingest.NewLoader(ingest.WithLogger(log)).Load(ctx, cfg.SourceFiles)
	if err != nil {
		return nil, err
	}
	res, err := transform.NewEngine(transform.WithLogger(log)).Run(ctx, raw, cfg.Transforms)
	if err != nil {
		return nil, err
	}
	store, err := finalize(ctx, log, cfg, raw, res)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, log).Info("data frame loaded",
		zap.Int("rows", store.RowCount()),
		zap.Int("fields", store.NumFields()))
	return &DataFrame{store: store, stats: stats}, nil
}

// finalize moves the raw fields and generated columns marked add_to_frame
// into a new store. Raw fields come first in declaration order, followed by
// generated columns in transform declaration order.
func finalize(ctx context.Context, log *zap.Logger, cfg *schema.DataConfig, raw *columnar.Store, res *transform.Result) (*columnar.Store, error) {
	ctx = logger.WithStage(ctx, metrics.StageFinalize)
	_, span := observability.StartSpan(ctx, metrics.StageFinalize)
	timer := metrics.NewTimer(metrics.StageFinalize)

	store, err := selectColumns(cfg, raw, res)

	timer.ObserveDuration()
	if err != nil {
		metrics.Failures.WithLabelValues(metrics.StageFinalize, string(errors.TypeOf(err))).Inc()
	} else {
		span.AddEvent("finalized", attribute.Int("fields", store.NumFields()))
		logger.FromContext(ctx, log).Debug("frame columns selected",
			zap.Strings("fields", store.FieldNames()),
			zap.Int("dropped", raw.NumFields()+res.Store.NumFields()))
	}
	span.End(err)
	return store, err
}

func selectColumns(cfg *schema.DataConfig, raw *columnar.Store, res *transform.Result) (*columnar.Store, error) {
	out := columnar.NewStore()
	for _, sf := range cfg.SourceFiles {
		for _, f := range sf.Fields {
			if !f.InFrame() {
				continue
			}
			if err := move(out, raw, f.Target()); err != nil {
				return nil, err
			}
		}
	}
	for i, t := range cfg.Transforms {
		if !t.InFrame() {
			continue
		}
		for _, name := range res.Generated[i] {
			if err := move(out, res.Store, name); err != nil {
				return nil, err
			}
		}
	}
	if !out.IsHomogeneous() {
		return nil, errors.New(errors.ErrorTypeSchema, "inconsistent field lengths").
			WithDetail("lengths", out.Lengths())
	}
	return out, nil
}

func move(dst, src *columnar.Store, name string) error {
	if dst.Has(name) {
		return errors.Newf(errors.ErrorTypeSchema, "duplicate field %q in frame", name).
			WithDetail("field", name)
	}
	col, ok := src.Take(name)
	if !ok {
		return errors.Newf(errors.ErrorTypeInternal, "field %q missing at finalization", name).
			WithDetail("field", name)
	}
	return dst.MergeColumn(name, col)
}

// New wraps an existing store. The DataFrame takes ownership of it.
func New(store *columnar.Store) (*DataFrame, error) {
	if !store.IsHomogeneous() {
		return nil, errors.New(errors.ErrorTypeSchema, "inconsistent field lengths").
			WithDetail("lengths", store.Lengths())
	}
	return &DataFrame{store: store}, nil
}

// NRows returns the number of rows.
func (df *DataFrame) NRows() int { return df.store.RowCount() }

// NumFields returns the number of fields.
func (df *DataFrame) NumFields() int { return df.store.NumFields() }

// FieldNames returns field names in store order.
func (df *DataFrame) FieldNames() []string { return df.store.FieldNames() }

// Fields returns field descriptors in store order.
func (df *DataFrame) Fields() []columnar.FieldInfo { return df.store.Fields() }

// Stats returns ingestion statistics. A DataFrame built with New has none.
func (df *DataFrame) Stats() ingest.Stats { return df.stats }

// Store returns the underlying store. Mutating it mutates the frame.
func (df *DataFrame) Store() *columnar.Store { return df.store }

// Column returns the named column.
func (df *DataFrame) Column(name string) (columnar.Column, error) {
	col, ok := df.store.Column(name)
	if !ok {
		return nil, unknownField(name)
	}
	return col, nil
}

// Unsigned returns the values of an Unsigned field.
func (df *DataFrame) Unsigned(name string) ([]uint64, error) { return typed[uint64](df, name) }

// Signed returns the values of a Signed field.
func (df *DataFrame) Signed(name string) ([]int64, error) { return typed[int64](df, name) }

// Text returns the values of a Text field.
func (df *DataFrame) Text(name string) ([]string, error) { return typed[string](df, name) }

// Boolean returns the values of a Boolean field.
func (df *DataFrame) Boolean(name string) ([]bool, error) { return typed[bool](df, name) }

// Float returns the values of a Float field.
func (df *DataFrame) Float(name string) ([]float64, error) { return typed[float64](df, name) }

func typed[T columnar.Element](df *DataFrame, name string) ([]T, error) {
	col, err := df.Column(name)
	if err != nil {
		return nil, err
	}
	values, ok := columnar.Values[T](col)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeSchema, "field %q is %s", name, col.Type()).
			WithDetail("field", name)
	}
	return values, nil
}

// AsMatrix projects every non-Text field onto a float matrix. The returned
// names follow the matrix columns; the matrix is nil when the frame has no
// rows.
func (df *DataFrame) AsMatrix() ([]string, *mat.Dense, error) {
	return df.store.AsMatrix()
}

// Sub returns a new DataFrame with copies of the named fields.
func (df *DataFrame) Sub(names []string) (*DataFrame, error) {
	store, err := df.store.Sub(names)
	if err != nil {
		return nil, err
	}
	return &DataFrame{store: store}, nil
}

// Merge moves every field of other into df. Both frames must have the same
// number of rows unless one of them has no fields. On error neither frame
// changes.
func (df *DataFrame) Merge(other *DataFrame) error {
	if df.NumFields() > 0 && other.NumFields() > 0 && df.NRows() != other.NRows() {
		return errors.Newf(errors.ErrorTypeSchema,
			"cannot merge %d rows into %d rows", other.NRows(), df.NRows())
	}
	if err := df.store.Merge(other.store); err != nil {
		return err
	}
	df.stats.Files = append(df.stats.Files, other.stats.Files...)
	other.stats = ingest.Stats{}
	return nil
}

func unknownField(name string) error {
	return errors.Newf(errors.ErrorTypeSchema, "unknown field %q", name).
		WithDetail("field", name)
}
