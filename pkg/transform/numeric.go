package transform

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/errors"
	"github.com/jblondin/etl/pkg/schema"
)

// normalize standardizes a Float column to zero mean and unit deviation. The
// variance divisor is n minus the configured correction. A column with no
// spread is only centered.
func normalize(t schema.Transform, sources []columnar.Column) (*columnar.Store, error) {
	x, _ := columnar.Values[float64](sources[0])
	out := make([]float64, len(x))
	if len(x) == 0 {
		return single(t.TargetName, columnar.NewVector(out))
	}

	n := float64(len(x))
	correction := t.Method.SampleStdevCorrection
	mean := stat.Mean(x, nil)

	var variance float64
	if len(x) > 1 {
		if correction >= n || correction < 0 {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"sample_stdev_correction %g is invalid for %d values", correction, len(x)).
				WithDetail("field", t.SourceFields[0])
		}
		var ss float64
		for _, v := range x {
			d := v - mean
			ss += d * d
		}
		variance = ss / (n - correction)
	}
	stdev := math.Sqrt(variance)

	for i, v := range x {
		if stdev == 0 {
			out[i] = v - mean
		} else {
			out[i] = (v - mean) / stdev
		}
	}
	return single(t.TargetName, columnar.NewVector(out))
}

// scale maps a Float column linearly from its observed range onto the
// configured bounds, [0, 1] by default. A
// constant column maps entirely onto the lower bound.
func scale(t schema.Transform, sources []columnar.Column) (*columnar.Store, error) {
	x, _ := columnar.Values[float64](sources[0])
	out := make([]float64, len(x))
	if len(x) == 0 {
		return single(t.TargetName, columnar.NewVector(out))
	}

	lo, hi, _ := t.Method.Bounds()
	low, high := floats.Min(x), floats.Max(x)
	span := high - low
	for i, v := range x {
		var alpha float64
		if span != 0 {
			alpha = (v - low) / span
		}
		out[i] = (1-alpha)*lo + alpha*hi
	}
	return single(t.TargetName, columnar.NewVector(out))
}
