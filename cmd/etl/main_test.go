package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jblondin/etl/pkg/schema"
)

var fixture = filepath.Join("..", "..", "pkg", "frame", "testdata", "schema.toml")

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestLoadCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.jsonl.gz")
	out, err := execute(t, "load", "--schema", fixture, "--matrix", "--out", path)
	require.NoError(t, err)

	var summary Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 9, summary.Rows)
	assert.Len(t, summary.Fields, 15)
	require.NotNil(t, summary.Matrix)
	assert.Equal(t, 9, summary.Matrix.Rows)
	assert.Equal(t, 11, summary.Matrix.Columns)
	require.Len(t, summary.Sources, 1)
	assert.Equal(t, 9, summary.Sources[0].Loaded)
	assert.Positive(t, summary.Sources[0].InternHits)
	assert.Equal(t, path, summary.Output)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestLoadCommandSub(t *testing.T) {
	out, err := execute(t, "load", "--schema", fixture, "--sub", "f,scaled_f_default")
	require.NoError(t, err)

	var summary Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, []string{"f", "scaled_f_default"}, summary.Fields)
	assert.Nil(t, summary.Matrix)
}

func TestLoadCommandErrors(t *testing.T) {
	_, err := execute(t, "load")
	require.Error(t, err)

	_, err = execute(t, "load", "--schema", fixture, "--sub", "nope")
	require.Error(t, err)

	_, err = execute(t, "load", "--schema", fixture, "--out", filepath.Join(t.TempDir(), "x.csv"), "--format", "xml")
	require.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", "--schema", fixture)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "schema OK: 1 source files, 9 transforms"))
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, "schema", "--schema", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "source_files:")
	assert.Contains(t, out, "target_name: d_signed")
}

func TestSchemaCommandOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normalized.yaml")
	out, err := execute(t, "schema", "--schema", fixture, "--out", path)
	require.NoError(t, err)
	assert.Equal(t, "schema written to "+path+"\n", out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := schema.Parse(data, schema.YAML)
	require.NoError(t, err)
	assert.Len(t, cfg.SourceFiles, 1)
	assert.Len(t, cfg.Transforms, 9)
	assert.Equal(t, ",", cfg.SourceFiles[0].Delimiter)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "etl v"+version)
}
