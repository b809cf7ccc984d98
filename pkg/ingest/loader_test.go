package ingest

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/compression"
	"github.com/jblondin/etl/pkg/errors"
	"github.com/jblondin/etl/pkg/schema"
	"github.com/jblondin/etl/pkg/testutil"
)

func newLoader(t *testing.T) *Loader {
	return NewLoader(WithLogger(testutil.TestLogger(t)))
}

func detail(t *testing.T, err error, key string) interface{} {
	t.Helper()
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	for e != nil {
		if v, ok := e.Detail(key); ok {
			return v
		}
		next, ok := e.Cause.(*errors.Error)
		if !ok {
			break
		}
		e = next
	}
	t.Fatalf("no %q detail in %v", key, err)
	return nil
}

func TestInequalityFilterScenario(t *testing.T) {
	path := testutil.WriteFile(t, "c.csv", "c\n3\n5\n6\n")
	sf := schema.SourceFile{
		Name:   path,
		Fields: []schema.Field{{SourceName: "c", FieldType: columnar.Signed}},
		Filters: []schema.Filter{{
			SourceField: "c",
			Method:      schema.FilterMethod{Kind: schema.Inequality, Inequality: schema.Gte, Signed: schema.Ptr(int64(4))},
		}},
	}

	store, stats, err := newLoader(t).Load(testutil.TestContext(t), []schema.SourceFile{sf})
	require.NoError(t, err)

	c, ok := columnar.Get[int64](store, "c")
	require.True(t, ok)
	assert.Equal(t, []int64{5, 6}, c)
	assert.Equal(t, 2, store.RowCount())
	require.Len(t, stats.Files, 1)
	assert.Equal(t, 3, stats.Files[0].RowsRead)
	assert.Equal(t, 1, stats.Files[0].RowsFiltered)
	assert.Equal(t, 2, stats.RowsLoaded())
}

func TestHeaderProjectionAndRename(t *testing.T) {
	path := testutil.WriteFile(t, "p.csv", "id;name;ignored;score\n1;ann;x;0.5\n2;bob;y;1.5\n")
	sf := schema.SourceFile{
		Name:      path,
		Delimiter: ";",
		Fields: []schema.Field{
			{SourceName: "score", FieldType: columnar.Float},
			{SourceName: "id", TargetName: "person_id", FieldType: columnar.Unsigned},
			{SourceName: "name", FieldType: columnar.Text},
		},
	}

	store, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "person_id", "name"}, store.FieldNames())

	ids, ok := columnar.Get[uint64](store, "person_id")
	require.True(t, ok)
	assert.Equal(t, []uint64{1, 2}, ids)
	assert.False(t, store.Has("ignored"))
	assert.False(t, store.Has("id"))
}

func TestRowFilteredAtomically(t *testing.T) {
	path := testutil.WriteFile(t, "f.csv", "a,e\n1,M\n2,F\n3,M\n")
	sf := schema.SourceFile{
		Name: path,
		Fields: []schema.Field{
			{SourceName: "a", FieldType: columnar.Unsigned},
			{SourceName: "e", FieldType: columnar.Text},
		},
		Filters: []schema.Filter{
			{SourceField: "e", Method: schema.FilterMethod{Kind: schema.MatchNot, Text: schema.Ptr("F")}},
			{SourceField: "a", Method: schema.FilterMethod{Kind: schema.Inequality, Inequality: schema.Lt, Unsigned: schema.Ptr(uint64(3))}},
		},
	}

	store, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	require.NoError(t, err)
	a, _ := columnar.Get[uint64](store, "a")
	e, _ := columnar.Get[string](store, "e")
	assert.Equal(t, []uint64{1}, a)
	assert.Equal(t, []string{"M"}, e)
	assert.True(t, store.IsHomogeneous())
}

func TestAllRowsFilteredKeepsFields(t *testing.T) {
	path := testutil.WriteFile(t, "none.csv", "c\n1\n2\n")
	sf := schema.SourceFile{
		Name:   path,
		Fields: []schema.Field{{SourceName: "c", FieldType: columnar.Signed}},
		Filters: []schema.Filter{{
			SourceField: "c",
			Method:      schema.FilterMethod{Kind: schema.Match, Signed: schema.Ptr(int64(9))},
		}},
	}
	store, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	require.NoError(t, err)
	assert.True(t, store.Has("c"))
	assert.Equal(t, 0, store.RowCount())
}

func TestMissingDeclaredField(t *testing.T) {
	path := testutil.WriteFile(t, "m.csv", "a,b\n1,2\n")
	sf := schema.SourceFile{
		Name:   path,
		Fields: []schema.Field{{SourceName: "z", FieldType: columnar.Signed}},
	}
	_, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
	assert.Equal(t, "z", detail(t, err, "field"))
}

func TestDecodeFallbacks(t *testing.T) {
	path := testutil.WriteFile(t, "enc.csv", "name,price\ncaf\xe9,1\n\x80uro,2\nplain,3\n")
	sf := schema.SourceFile{
		Name: path,
		Fields: []schema.Field{
			{SourceName: "name", FieldType: columnar.Text},
			{SourceName: "price", FieldType: columnar.Unsigned},
		},
	}
	store, stats, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	require.NoError(t, err)

	names, _ := columnar.Get[string](store, "name")
	assert.Equal(t, []string{"café", "€uro", "plain"}, names)
	assert.Equal(t, 1, stats.Fallbacks[Latin1])
	assert.Equal(t, 1, stats.Fallbacks[Windows1252])
}

func TestDecodeFailureReportsPosition(t *testing.T) {
	path := testutil.WriteFile(t, "bad.csv", "a,b\nx,y\nok,\x81bad\n")
	sf := schema.SourceFile{
		Name: path,
		Fields: []schema.Field{
			{SourceName: "a", FieldType: columnar.Text},
			{SourceName: "b", FieldType: columnar.Text},
		},
	}
	_, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDecode))
	assert.Equal(t, 2, detail(t, err, "row"))
	assert.Equal(t, 2, detail(t, err, "field_index"))
}

func TestParseErrorNamesField(t *testing.T) {
	path := testutil.WriteFile(t, "p.csv", "n\n1\nfoo\n")
	sf := schema.SourceFile{
		Name:   path,
		Fields: []schema.Field{{SourceName: "n", FieldType: columnar.Signed}},
	}
	_, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
	assert.Equal(t, "n", detail(t, err, "field"))
	assert.Equal(t, 2, detail(t, err, "row"))
}

func TestFilterParseErrorAborts(t *testing.T) {
	path := testutil.WriteFile(t, "p.csv", "n\n1\nfoo\n")
	sf := schema.SourceFile{
		Name:   path,
		Fields: []schema.Field{{SourceName: "n", FieldType: columnar.Text}},
		Filters: []schema.Filter{{
			SourceField: "n",
			Method:      schema.FilterMethod{Kind: schema.Inequality, Inequality: schema.Gt, Signed: schema.Ptr(int64(0))},
		}},
	}
	_, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestRaggedRow(t *testing.T) {
	path := testutil.WriteFile(t, "r.csv", "a,b\n1,2\n3\n")
	sf := schema.SourceFile{
		Name:   path,
		Fields: []schema.Field{{SourceName: "a", FieldType: columnar.Signed}},
	}
	_, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestEmptyFile(t *testing.T) {
	path := testutil.WriteFile(t, "e.csv", "")
	sf := schema.SourceFile{
		Name:   path,
		Fields: []schema.Field{{SourceName: "a", FieldType: columnar.Signed}},
	}
	_, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestMultipleFiles(t *testing.T) {
	one := testutil.WriteFile(t, "one.csv", "a\n1\n2\n")
	two := testutil.WriteFile(t, "two.csv", "b\nx\ny\n")
	files := []schema.SourceFile{
		{Name: one, Fields: []schema.Field{{SourceName: "a", FieldType: columnar.Signed}}},
		{Name: two, Fields: []schema.Field{{SourceName: "b", FieldType: columnar.Text}}},
	}
	store, stats, err := newLoader(t).Load(testutil.TestContext(t), files)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, store.FieldNames())
	assert.Equal(t, 2, store.RowCount())
	assert.Len(t, stats.Files, 2)
}

func TestMultipleFilesInconsistentLengths(t *testing.T) {
	one := testutil.WriteFile(t, "one.csv", "a\n1\n2\n3\n")
	two := testutil.WriteFile(t, "two.csv", "b\nx\ny\n")
	files := []schema.SourceFile{
		{Name: one, Fields: []schema.Field{{SourceName: "a", FieldType: columnar.Signed}}},
		{Name: two, Fields: []schema.Field{{SourceName: "b", FieldType: columnar.Text}}},
	}
	_, _, err := newLoader(t).Load(testutil.TestContext(t), files)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
	assert.Contains(t, err.Error(), "inconsistent field lengths")
}

func TestMultipleFilesOneFullyFiltered(t *testing.T) {
	one := testutil.WriteFile(t, "one.csv", "x\n1\n2\n3\n")
	two := testutil.WriteFile(t, "two.csv", "y\n4\n5\n6\n")
	files := []schema.SourceFile{
		{Name: one, Fields: []schema.Field{{SourceName: "x", FieldType: columnar.Signed}}},
		{
			Name:   two,
			Fields: []schema.Field{{SourceName: "y", FieldType: columnar.Signed}},
			Filters: []schema.Filter{{
				SourceField: "y",
				Method: schema.FilterMethod{
					Kind:       schema.Inequality,
					Inequality: schema.Gt,
					Signed:     schema.Ptr(int64(100)),
				},
			}},
		},
	}
	_, stats, err := newLoader(t).Load(testutil.TestContext(t), files)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
	assert.Contains(t, err.Error(), "inconsistent field lengths")
	assert.Equal(t, map[string]int{"x": 3, "y": 0}, detail(t, err, "lengths"))
	require.Len(t, stats.Files, 2)
	assert.Equal(t, 3, stats.Files[1].RowsFiltered)
}

func TestMultipleFilesAllFiltered(t *testing.T) {
	one := testutil.WriteFile(t, "one.csv", "x\n1\n")
	two := testutil.WriteFile(t, "two.csv", "y\n4\n")
	none := func(field string) []schema.Filter {
		return []schema.Filter{{
			SourceField: field,
			Method:      schema.FilterMethod{Kind: schema.Match, Signed: schema.Ptr(int64(-1))},
		}}
	}
	files := []schema.SourceFile{
		{Name: one, Fields: []schema.Field{{SourceName: "x", FieldType: columnar.Signed}}, Filters: none("x")},
		{Name: two, Fields: []schema.Field{{SourceName: "y", FieldType: columnar.Signed}}, Filters: none("y")},
	}
	store, _, err := newLoader(t).Load(testutil.TestContext(t), files)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, store.FieldNames())
	assert.Equal(t, 0, store.RowCount())
}

func TestMultipleFilesDuplicateField(t *testing.T) {
	one := testutil.WriteFile(t, "one.csv", "a\n1\n")
	two := testutil.WriteFile(t, "two.csv", "a\n2\n")
	files := []schema.SourceFile{
		{Name: one, Fields: []schema.Field{{SourceName: "a", FieldType: columnar.Signed}}},
		{Name: two, Fields: []schema.Field{{SourceName: "a", FieldType: columnar.Signed}}},
	}
	_, _, err := newLoader(t).Load(testutil.TestContext(t), files)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestCompressedSource(t *testing.T) {
	raw := "c,d\n1,-1\n2,-2\n"
	for _, alg := range []compression.Algorithm{compression.Gzip, compression.Zstd, compression.LZ4} {
		path := testutil.WriteFile(t, "data.csv"+alg.Extension(), raw)

		sf := schema.SourceFile{
			Name: path,
			Fields: []schema.Field{
				{SourceName: "c", FieldType: columnar.Unsigned},
				{SourceName: "d", FieldType: columnar.Signed},
			},
		}
		store, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
		require.NoError(t, err, alg)
		d, _ := columnar.Get[int64](store, "d")
		assert.Equal(t, []int64{-1, -2}, d, alg)
	}
}

func TestReadStripsBOM(t *testing.T) {
	sf := schema.SourceFile{
		Name:   "inline",
		Fields: []schema.Field{{SourceName: "a", FieldType: columnar.Boolean}},
	}
	store, _, err := newLoader(t).Read(testutil.TestContext(t), strings.NewReader("\ufeffa\ntrue\nfalse\n"), sf)
	require.NoError(t, err)
	a, _ := columnar.Get[bool](store, "a")
	assert.Equal(t, []bool{true, false}, a)
}

func TestMissingFile(t *testing.T) {
	sf := schema.SourceFile{
		Name:   filepath.Join(t.TempDir(), "absent.csv"),
		Fields: []schema.Field{{SourceName: "a", FieldType: columnar.Signed}},
	}
	_, _, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestLoadLogsStageAndFile(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	path := testutil.WriteFile(t, "logged.csv", "a\n1\n")
	sf := schema.SourceFile{Name: path, Fields: []schema.Field{{SourceName: "a", FieldType: columnar.Signed}}}

	_, _, err := NewLoader(WithLogger(zap.New(core))).Load(testutil.TestContext(t), []schema.SourceFile{sf})
	require.NoError(t, err)

	ingested := logs.FilterMessage("source file ingested").All()
	require.Len(t, ingested, 1)
	fields := ingested[0].ContextMap()
	assert.Equal(t, path, fields["source_file"])
	assert.Equal(t, "ingest", fields["stage"])
	assert.Equal(t, int64(1), fields["rows_loaded"])

	done := logs.FilterMessage("ingestion complete").All()
	require.Len(t, done, 1)
	assert.NotContains(t, done[0].ContextMap(), "source_file")
}

func TestTextValuesInterned(t *testing.T) {
	path := testutil.WriteFile(t, "cat.csv", "e,n\nM,1\nF,2\nM,3\nM,4\n")
	sf := schema.SourceFile{
		Name: path,
		Fields: []schema.Field{
			{SourceName: "e", FieldType: columnar.Text},
			{SourceName: "n", FieldType: columnar.Signed},
		},
	}
	store, stats, err := newLoader(t).LoadFile(testutil.TestContext(t), sf)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.InternHits)
	assert.Equal(t, 2, stats.Distinct)

	e, _ := columnar.Get[string](store, "e")
	assert.Equal(t, []string{"M", "F", "M", "M"}, e)
}
