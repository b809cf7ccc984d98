package transform

import (
	"strings"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/errors"
	"github.com/jblondin/etl/pkg/schema"
)

// method computes the columns of one transform. Source arity and types are
// checked before it is called.
type method func(t schema.Transform, sources []columnar.Column) (*columnar.Store, error)

type signature struct {
	// minArity is the least number of sources; maxArity 0 means unbounded
	minArity, maxArity int
	// accepts is the required source type; 0 accepts any type
	accepts columnar.FieldType
	run     method
}

var methods = map[schema.Action]signature{
	schema.Convert:         {1, 1, 0, convert},
	schema.Map:             {1, 1, columnar.Text, mapValues},
	schema.Concatenate:     {1, 0, columnar.Text, concatenate},
	schema.VectorizeOneHot: {1, 1, columnar.Text, oneHot},
	schema.VectorizeHash:   {1, 1, columnar.Text, hashVectorize},
	schema.Normalize:       {1, 1, columnar.Float, normalize},
	schema.Scale:           {1, 1, columnar.Float, scale},
}

// Apply runs a single transform over its resolved source columns and returns
// a store holding the generated columns. Sources are only read.
func Apply(t schema.Transform, sources []columnar.Column) (*columnar.Store, error) {
	sig, ok := methods[t.Method.Action]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown transform action %q", t.Method.Action)
	}
	if len(sources) < sig.minArity || (sig.maxArity > 0 && len(sources) > sig.maxArity) {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"%s takes %s, got %d", t.Method.Action, arity(sig), len(sources))
	}
	if sig.accepts != 0 {
		for i, col := range sources {
			if col.Type() != sig.accepts {
				return nil, errors.Newf(errors.ErrorTypeConfig,
					"%s requires %s sources, %q is %s",
					t.Method.Action, sig.accepts, t.SourceFields[i], col.Type()).
					WithDetail("field", t.SourceFields[i])
			}
		}
	}
	return sig.run(t, sources)
}

func arity(sig signature) string {
	switch {
	case sig.maxArity == 0:
		return "at least one source"
	case sig.maxArity == 1:
		return "exactly one source"
	}
	return "a fixed number of sources"
}

func single(name string, col columnar.Column) (*columnar.Store, error) {
	out := columnar.NewStore()
	if err := out.MergeColumn(name, col); err != nil {
		return nil, err
	}
	return out, nil
}

func convert(t schema.Transform, sources []columnar.Column) (*columnar.Store, error) {
	col, err := columnar.Convert(sources[0], t.Method.TargetType)
	if err != nil {
		return nil, err
	}
	return single(t.TargetName, col)
}

func mapValues(t schema.Transform, sources []columnar.Column) (*columnar.Store, error) {
	src, _ := columnar.Values[string](sources[0])
	out := make([]string, len(src))
	for i, v := range src {
		if mapped, ok := t.Method.Mapping[v]; ok {
			out[i] = mapped
		} else {
			out[i] = t.Method.DefaultValue
		}
	}
	return single(t.TargetName, columnar.NewVector(out))
}

func concatenate(t schema.Transform, sources []columnar.Column) (*columnar.Store, error) {
	cols := make([][]string, len(sources))
	for i, col := range sources {
		cols[i], _ = columnar.Values[string](col)
		if len(cols[i]) != len(cols[0]) {
			return nil, errors.Newf(errors.ErrorTypeSchema,
				"cannot concatenate %q and %q of different lengths", t.SourceFields[0], t.SourceFields[i])
		}
	}

	out := make([]string, len(cols[0]))
	parts := make([]string, len(cols))
	for row := range out {
		for j, col := range cols {
			parts[j] = col[row]
		}
		out[row] = strings.Join(parts, t.Method.Separator)
	}
	return single(t.TargetName, columnar.NewVector(out))
}
