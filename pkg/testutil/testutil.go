// Package testutil provides helpers shared by package tests.
package testutil

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/jblondin/etl/pkg/compression"
)

// TestLogger creates a logger that writes to the test output.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
}

// TestContext creates a context with a 30-second timeout that is cancelled
// when the test completes.
func TestContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns its path. A compression extension on name compresses the content
// accordingly.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	data := []byte(content)
	if alg, _ := compression.DetectFromPath(name); alg != compression.None {
		var err error
		if data, err = compression.Compress(data, alg, compression.Default); err != nil {
			t.Fatalf("compress %s: %v", name, err)
		}
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// ReadFile returns the contents of path decompressed with alg.
func ReadFile(t testing.TB, path string, alg compression.Algorithm) []byte {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec // G304: test fixture path
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	r, err := compression.NewReader(f, alg)
	if err != nil {
		t.Fatalf("decompress %s: %v", path, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}
