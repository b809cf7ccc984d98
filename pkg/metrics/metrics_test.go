package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsCounter(t *testing.T) {
	c := Rows.WithLabelValues("metrics_test.csv", OutcomeLoaded)
	before := testutil.ToFloat64(c)
	c.Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(c))
}

func TestTimerObserves(t *testing.T) {
	before := testutil.CollectAndCount(StageDuration)
	timer := NewTimer("metrics_test")
	d := timer.ObserveDuration()
	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	assert.Equal(t, before+1, testutil.CollectAndCount(StageDuration))
}

func TestWriteTextfile(t *testing.T) {
	Failures.WithLabelValues("metrics_test", "parse").Inc()
	path := filepath.Join(t.TempDir(), "etl.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "etl_failures_total"))
}
