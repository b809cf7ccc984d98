// Package transform derives new columns from a loaded store. Transforms are
// declared in any order; the engine runs each one as soon as all of its
// source fields exist, either in the raw store or among columns generated by
// earlier transforms.
package transform

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/errors"
	"github.com/jblondin/etl/pkg/logger"
	"github.com/jblondin/etl/pkg/metrics"
	"github.com/jblondin/etl/pkg/observability"
	"github.com/jblondin/etl/pkg/schema"
)

// Result is the output of a transform stage.
type Result struct {
	// Store holds every generated column
	Store *columnar.Store
	// Generated lists, per transform in declaration order, the names of the
	// columns it produced
	Generated [][]string
	// Order is the execution order as indices into the declared transforms
	Order []int
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger; the global logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine resolves and executes transforms.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.OrGlobal(e.logger)
	return e
}

// Run executes transforms against raw. It repeatedly sweeps the pending
// transforms, running those whose sources are available, until none remain.
// A sweep that runs nothing means the remaining transforms reference fields
// that never appear or depend on each other in a cycle; that is a dependency
// error naming all of them.
func (e *Engine) Run(ctx context.Context, raw *columnar.Store, transforms []schema.Transform) (*Result, error) {
	ctx = logger.WithStage(ctx, metrics.StageTransform)
	ctx, span := observability.StartSpan(ctx, metrics.StageTransform,
		attribute.Int("transforms", len(transforms)))
	timer := metrics.NewTimer(metrics.StageTransform)

	res, err := e.run(ctx, raw, transforms)

	timer.ObserveDuration()
	if err != nil {
		metrics.Failures.WithLabelValues(metrics.StageTransform, string(errors.TypeOf(err))).Inc()
	} else {
		span.SetAttribute("columns", res.Store.NumFields())
	}
	span.End(err)
	return res, err
}

func (e *Engine) run(ctx context.Context, raw *columnar.Store, transforms []schema.Transform) (*Result, error) {
	res := &Result{
		Store:     columnar.NewStore(),
		Generated: make([][]string, len(transforms)),
	}

	pending := make([]int, len(transforms))
	for i := range pending {
		pending[i] = i
	}

	log := logger.FromContext(ctx, e.logger)
	passes := 0
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "transform stage cancelled")
		}
		passes++
		var stuck []int
		for _, i := range pending {
			t := transforms[i]
			sources, ok := lookup(t.SourceFields, raw, res.Store)
			if !ok {
				stuck = append(stuck, i)
				continue
			}

			out, err := Apply(t, sources)
			if err != nil {
				return nil, withTarget(err, t.TargetName)
			}
			names := out.FieldNames()
			if err := res.Store.Merge(out); err != nil {
				return nil, withTarget(err, t.TargetName)
			}
			res.Generated[i] = names
			res.Order = append(res.Order, i)

			metrics.TransformsExecuted.WithLabelValues(string(t.Method.Action)).Inc()
			metrics.ColumnsGenerated.WithLabelValues(string(t.Method.Action)).Add(float64(len(names)))
			log.Debug("transform executed",
				zap.String("target", t.TargetName),
				zap.String("action", string(t.Method.Action)),
				zap.Strings("sources", t.SourceFields),
				zap.Int("columns", len(names)))
		}

		if len(stuck) == len(pending) {
			return nil, dependencyError(transforms, stuck)
		}
		pending = stuck
	}

	log.Info("transforms resolved",
		zap.Int("transforms", len(transforms)),
		zap.Int("passes", passes),
		zap.Int("columns", res.Store.NumFields()))
	return res, nil
}

// lookup finds every named column, preferring raw over generated columns.
func lookup(names []string, raw, generated *columnar.Store) ([]columnar.Column, bool) {
	cols := make([]columnar.Column, 0, len(names))
	for _, name := range names {
		if col, ok := raw.Column(name); ok {
			cols = append(cols, col)
			continue
		}
		if col, ok := generated.Column(name); ok {
			cols = append(cols, col)
			continue
		}
		return nil, false
	}
	return cols, true
}

func dependencyError(transforms []schema.Transform, pending []int) error {
	targets := make([]string, len(pending))
	for j, i := range pending {
		targets[j] = transforms[i].TargetName
	}
	return errors.Newf(errors.ErrorTypeDependency,
		"unresolved transform dependencies: %s", strings.Join(targets, ", ")).
		WithDetail("pending", targets)
}

func withTarget(err error, target string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.WithDetail("target", target)
	}
	return errors.Wrap(err, errors.ErrorTypeInternal, "transform "+target).
		WithDetail("target", target)
}
