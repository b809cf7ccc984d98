package transform

import (
	"strconv"

	"github.com/go-faster/city"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/errors"
	"github.com/jblondin/etl/pkg/schema"
)

// hashSignBit selects between incrementing and decrementing a bucket.
const hashSignBit = uint64(1) << 63

// oneHot emits one Float column per distinct source value, named
// <target>_<value> in first-seen order. Each row holds the "on" value in
// exactly one of them.
func oneHot(t schema.Transform, sources []columnar.Column) (*columnar.Store, error) {
	src, _ := columnar.Values[string](sources[0])
	off, on, err := levels(t.Method.Scaling())
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var order []string
	var cols [][]float64
	for row, v := range src {
		k, seen := index[v]
		if !seen {
			k = len(order)
			index[v] = k
			order = append(order, v)
			col := make([]float64, len(src))
			for i := range col {
				col[i] = off
			}
			cols = append(cols, col)
		}
		cols[k][row] = on
	}

	out := columnar.NewStore()
	for k, v := range order {
		if err := out.MergeColumn(t.TargetName+"_"+v, columnar.NewVector(cols[k])); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func levels(s schema.Scaling) (off, on float64, err error) {
	switch s {
	case schema.ZeroOne:
		return 0, 1, nil
	case schema.NegOneOne:
		return -1, 1, nil
	}
	return 0, 0, errors.Newf(errors.ErrorTypeConfig, "unknown binary scaling %q", s)
}

// hashVectorize applies the signed hashing trick: each value lands in bucket
// h mod size and adds +1 or -1 depending on the top bit of h. Every bucket
// becomes a Float column named <target>_<bucket>.
func hashVectorize(t schema.Transform, sources []columnar.Column) (*columnar.Store, error) {
	size := t.Method.Buckets()
	if size == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "hash_size must be positive").
			WithDetail("hash_size", size)
	}
	src, _ := columnar.Values[string](sources[0])

	cols := make([][]float64, size)
	for b := range cols {
		cols[b] = make([]float64, len(src))
	}
	for row, v := range src {
		h := city.CH64([]byte(v))
		if h&hashSignBit != 0 {
			cols[h%size][row]++
		} else {
			cols[h%size][row]--
		}
	}

	out := columnar.NewStore()
	for b, col := range cols {
		name := t.TargetName + "_" + strconv.Itoa(b)
		if err := out.MergeColumn(name, columnar.NewVector(col)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
