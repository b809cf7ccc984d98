package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jblondin/etl/pkg/compression"
)

func TestWriteFile(t *testing.T) {
	plain := WriteFile(t, "a.csv", "x\n1\n")
	data, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, "x\n1\n", string(data))

	packed := WriteFile(t, "a.csv.zst", "x\n1\n")
	data, err = os.ReadFile(packed)
	require.NoError(t, err)
	assert.NotEqual(t, "x\n1\n", string(data))
	assert.Equal(t, "x\n1\n", string(ReadFile(t, packed, compression.Zstd)))
}

func TestTestContext(t *testing.T) {
	ctx := TestContext(t)
	_, ok := ctx.Deadline()
	assert.True(t, ok)
	TestLogger(t).Info("ready")
}
