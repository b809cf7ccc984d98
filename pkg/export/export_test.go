package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jblondin/etl/pkg/columnar"
	"github.com/jblondin/etl/pkg/compression"
	"github.com/jblondin/etl/pkg/errors"
	"github.com/jblondin/etl/pkg/testutil"
)

func sample(t *testing.T) *columnar.Store {
	t.Helper()
	s := columnar.NewStore()
	require.NoError(t, s.MergeColumn("id", columnar.NewVector([]uint64{1, 2, 3})))
	require.NoError(t, s.MergeColumn("delta", columnar.NewVector([]int64{-1, 0, 7})))
	require.NoError(t, s.MergeColumn("name", columnar.NewVector([]string{"a", "b,c", `q"t`})))
	require.NoError(t, s.MergeColumn("ok", columnar.NewVector([]bool{true, false, true})))
	require.NoError(t, s.MergeColumn("score", columnar.NewVector([]float64{0.5, 1, -2.25})))
	return s
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample(t)))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "delta", "name", "ok", "score"},
		{"1", "-1", "a", "true", "0.5"},
		{"2", "0", "b,c", "false", "1"},
		{"3", "7", `q"t`, "true", "-2.25"},
	}, records)
}

func TestWriteJSONLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONLines(&buf, sample(t)))

	sc := bufio.NewScanner(&buf)
	require.True(t, sc.Scan())
	assert.Equal(t, `{"id":1,"delta":-1,"name":"a","ok":true,"score":0.5}`, sc.Text())

	var rows []map[string]interface{}
	for sc.Scan() {
		var row map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
		rows = append(rows, row)
	}
	require.Len(t, rows, 2)
	assert.Equal(t, "b,c", rows[0]["name"])
	assert.Equal(t, `q"t`, rows[1]["name"])
	assert.Equal(t, -2.25, rows[1]["score"])
}

func TestWriteArrow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteArrow(&buf, sample(t)))

	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer r.Close()

	schema := r.Schema()
	require.Equal(t, 5, schema.NumFields())
	assert.Equal(t, arrow.PrimitiveTypes.Uint64, schema.Field(0).Type)
	assert.Equal(t, arrow.BinaryTypes.String, schema.Field(2).Type)
	require.Equal(t, 1, r.NumRecords())

	rec, err := r.Record(0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.NumRows())
	assert.Equal(t, []int64{-1, 0, 7}, rec.Column(1).(*array.Int64).Int64Values())
	assert.Equal(t, `q"t`, rec.Column(2).(*array.String).Value(2))
	assert.False(t, rec.Column(3).(*array.Boolean).Value(1))
	assert.Equal(t, []float64{0.5, 1, -2.25}, rec.Column(4).(*array.Float64).Float64Values())
}

func TestWriteRejectsRaggedStore(t *testing.T) {
	stores := map[string]columnar.Column{
		"short": columnar.NewVector([]uint64{1}),
		"empty": columnar.NewVector[uint64](nil),
	}
	for kind, col := range stores {
		s := sample(t)
		require.NoError(t, s.MergeColumn(kind, col))

		for _, format := range Formats() {
			t.Run(kind+"/"+string(format), func(t *testing.T) {
				err := Write(&bytes.Buffer{}, s, format)
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
			})
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path   string
		format Format
		alg    compression.Algorithm
	}{
		{"out.csv", CSV, compression.None},
		{"out.csv.gz", CSV, compression.Gzip},
		{"dir/out.jsonl.zst", JSONLines, compression.Zstd},
		{"out.ARROW", Arrow, compression.None},
		{"out.ndjson.lz4", JSONLines, compression.LZ4},
		{"out.parquet", Parquet, compression.None},
		{"out.avro.s2", Avro, compression.S2},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f, alg, err := FormatFromPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.format, f)
			assert.Equal(t, tt.alg, alg)
		})
	}

	_, _, err := FormatFromPath("out.xlsx")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSONL")
	require.NoError(t, err)
	assert.Equal(t, JSONLines, f)

	_, err = ParseFormat("xml")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestToFileCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.csv.gz")
	require.NoError(t, ToFile(context.Background(), path, sample(t), Options{Logger: zap.NewNop()}))

	plain := testutil.ReadFile(t, path, compression.Gzip)

	records, err := csv.NewReader(bytes.NewReader(plain)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, []string{"id", "delta", "name", "ok", "score"}, records[0])
}

func TestToFileExplicitFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.out")
	require.NoError(t, ToFile(context.Background(), path, sample(t), Options{
		Format:      JSONLines,
		Compression: compression.Zstd,
		Level:       compression.Best,
		Logger:      zap.NewNop(),
	}))

	plain := testutil.ReadFile(t, path, compression.Zstd)
	assert.Equal(t, 3, bytes.Count(plain, []byte("\n")))
}

func TestToFileUnknownFormat(t *testing.T) {
	err := ToFile(context.Background(), filepath.Join(t.TempDir(), "frame.bin"), sample(t), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestWriteParquet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, sample(t)))

	rdr, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer rdr.Close()
	assert.Equal(t, int64(3), rdr.NumRows())
	assert.Equal(t, 5, rdr.MetaData().Schema.NumColumns())

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)
	table, err := fr.ReadTable(context.Background())
	require.NoError(t, err)
	defer table.Release()
	scores := table.Column(4).Data().Chunk(0).(*array.Float64)
	assert.Equal(t, []float64{0.5, 1, -2.25}, scores.Float64Values())
}

func TestWriteAvro(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAvro(&buf, sample(t)))

	ocf, err := goavro.NewOCFReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	var rows []map[string]interface{}
	for ocf.Scan() {
		datum, err := ocf.Read()
		require.NoError(t, err)
		rows = append(rows, datum.(map[string]interface{}))
	}
	require.NoError(t, ocf.Err())
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, int64(7), rows[2]["delta"])
	assert.Equal(t, "b,c", rows[1]["name"])
	assert.Equal(t, false, rows[1]["ok"])
	assert.Equal(t, -2.25, rows[2]["score"])
}

func TestWriteAvroRejects(t *testing.T) {
	bad := columnar.NewStore()
	require.NoError(t, bad.MergeColumn("onehot_city_New York", columnar.NewVector([]float64{1})))
	err := WriteAvro(&bytes.Buffer{}, bad)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	huge := columnar.NewStore()
	require.NoError(t, huge.MergeColumn("n", columnar.NewVector([]uint64{1 << 63})))
	err = WriteAvro(&bytes.Buffer{}, huge)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}
