package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestWithContextAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	ctx := WithSchema(context.Background(), "schema.toml")
	ctx = WithSourceFile(ctx, "people.csv")
	ctx = WithStage(ctx, "ingest")
	WithContext(ctx).Info("loaded")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "schema.toml", fields["schema"])
	assert.Equal(t, "people.csv", fields["source_file"])
	assert.Equal(t, "ingest", fields["stage"])
}

func TestFromContextKeepsLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).With(zap.String("component", "test"))

	assert.Same(t, base, FromContext(context.Background(), base))

	ctx := WithStage(context.Background(), "transform")
	ctx = WithStage(ctx, "finalize")
	FromContext(ctx, base).Info("done")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "test", fields["component"])
	assert.Equal(t, "finalize", fields["stage"])
	assert.NotContains(t, fields, "source_file")
}

func TestOrGlobal(t *testing.T) {
	l := zap.NewNop()
	assert.Same(t, l, OrGlobal(l))
	assert.NotNil(t, OrGlobal(nil))
}

func TestSync(t *testing.T) {
	SetLogger(zap.NewNop())
	t.Cleanup(func() { SetLogger(nil) })
	assert.NoError(t, Sync())
}
