package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jblondin/etl/pkg/compression"
	"github.com/jblondin/etl/pkg/config"
	"github.com/jblondin/etl/pkg/export"
	"github.com/jblondin/etl/pkg/frame"
	"github.com/jblondin/etl/pkg/logger"
	"github.com/jblondin/etl/pkg/metrics"
	"github.com/jblondin/etl/pkg/observability"
	"github.com/jblondin/etl/pkg/performance"
	"github.com/jblondin/etl/pkg/schema"
)

type loadFlags struct {
	schema      string
	matrix      bool
	sub         []string
	out         string
	format      string
	compression string
	cpuProfile  string
	memProfile  string
}

// Summary is printed by the load command.
type Summary struct {
	Run       string                     `json:"run"`
	Schema    string                     `json:"schema"`
	Rows      int                        `json:"rows"`
	Fields    []string                   `json:"fields"`
	Sources   []SourceSummary            `json:"sources"`
	Matrix    *MatrixSummary             `json:"matrix,omitempty"`
	Output    string                     `json:"output,omitempty"`
	Duration  string                     `json:"duration"`
	Resources *performance.ResourceUsage `json:"resources,omitempty"`
}

// SourceSummary reports one ingested file.
type SourceSummary struct {
	Path      string         `json:"path"`
	Read      int            `json:"rows_read"`
	Filtered  int            `json:"rows_filtered"`
	Loaded    int            `json:"rows_loaded"`
	Fallbacks map[string]int `json:"decode_fallbacks,omitempty"`
	// InternHits is how many Text cells shared an already loaded value
	InternHits int `json:"intern_hits,omitempty"`
}

// MatrixSummary is the shape of the numeric projection.
type MatrixSummary struct {
	Rows    int      `json:"rows"`
	Columns int      `json:"columns"`
	Fields  []string `json:"fields"`
}

func newLoadCmd(g *globalFlags) *cobra.Command {
	f := &loadFlags{}
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a schema and print a summary of the resulting frame",
		Long: `Load ingests every source file of the schema, runs its transforms and prints
a JSON summary. With --out the frame is also exported; the format and
compression follow the file extension unless given explicitly.

Example:
  etl load --schema schema.toml --matrix --out frame.csv.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), cmd.OutOrStdout(), g, f)
		},
	}
	cmd.Flags().StringVarP(&f.schema, "schema", "s", "", "Path to the schema file (required)")
	_ = cmd.MarkFlagRequired("schema")
	cmd.Flags().BoolVar(&f.matrix, "matrix", false, "Project numeric fields onto a matrix and report its shape")
	cmd.Flags().StringSliceVar(&f.sub, "sub", nil, "Keep only these fields, in this order")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Export the frame to this path")
	cmd.Flags().StringVar(&f.format, "format", "", "Export format (arrow, parquet, avro, csv, jsonl)")
	cmd.Flags().StringVar(&f.compression, "compression", "", "Export compression (gzip, snappy, lz4, zstd, s2, deflate)")
	cmd.Flags().StringVar(&f.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.Flags().StringVar(&f.memProfile, "memprofile", "", "Write a heap profile to this file")
	return cmd
}

func newValidateCmd(g *globalFlags) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a schema and its source files without loading data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(g); err != nil {
				return err
			}
			cfg, err := schema.Load(path)
			if err != nil {
				return err
			}
			fp, err := cfg.Fingerprint()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema OK: %d source files, %d transforms, fingerprint %s\n",
				len(cfg.SourceFiles), len(cfg.Transforms), fp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "schema", "s", "", "Path to the schema file (required)")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newSchemaCmd(g *globalFlags) *cobra.Command {
	var path, out string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print a schema as YAML with every default made explicit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(g); err != nil {
				return err
			}
			cfg, err := schema.Load(path)
			if err != nil {
				return err
			}
			if out != "" {
				if err := schema.Save(out, cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema written to %s\n", out)
				return nil
			}
			data, err := config.Marshal(cfg.Normalized())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&path, "schema", "s", "", "Path to the schema file (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the normalized schema to this YAML file instead of stdout")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// setup loads the run configuration and installs the global logger.
func setup(g *globalFlags) (*config.RunConfig, error) {
	cfg, err := config.LoadRunConfig(g.configFile)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runLoad(ctx context.Context, out io.Writer, g *globalFlags, f *loadFlags) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := setup(g)
	if err != nil {
		return err
	}
	ctx = logger.WithSchema(ctx, f.schema)
	base := logger.Get().With(
		zap.String("component", "etl-cli"),
		zap.String("run", cfg.Name))
	log := logger.FromContext(ctx, base)

	if cfg.Observability.EnableTracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceName = cfg.Name
		tc.ServiceVersion = version
		tc.SamplingRate = cfg.Observability.TracingSampleRate
		shutdown, err := observability.InitTracing(tc)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Observability.ShutdownTimeout)
			defer cancel()
			if serr := shutdown(sctx); serr != nil {
				log.Warn("failed to flush traces", zap.Error(serr))
			}
		}()
	}
	if cfg.Observability.EnableMetrics && cfg.Observability.MetricsFile != "" {
		defer func() {
			if merr := metrics.WriteTextfile(cfg.Observability.MetricsFile); merr != nil {
				log.Warn("failed to write metrics", zap.Error(merr))
			}
		}()
	}

	monitor, merr := performance.NewResourceMonitor()
	if merr != nil {
		log.Warn("resource monitoring unavailable", zap.Error(merr))
	}
	profiler := performance.NewProfiler(f.cpuProfile, f.memProfile)
	if err := profiler.Start(); err != nil {
		return err
	}
	defer func() {
		if perr := profiler.Stop(); perr != nil && err == nil {
			err = perr
		}
	}()

	start := time.Now()
	df, err := frame.LoadFile(ctx, f.schema, frame.WithLogger(base))
	if err != nil {
		return err
	}
	fields := f.sub
	if len(fields) == 0 {
		fields = cfg.Export.Fields
	}
	if len(fields) > 0 {
		if df, err = df.Sub(fields); err != nil {
			return err
		}
	}

	summary := &Summary{
		Run:    cfg.Name,
		Schema: f.schema,
		Rows:   df.NRows(),
		Fields: df.FieldNames(),
	}
	for _, fs := range df.Stats().Files {
		s := SourceSummary{
			Path:       fs.Path,
			Read:       fs.RowsRead,
			Filtered:   fs.RowsFiltered,
			Loaded:     fs.RowsLoaded,
			InternHits: fs.InternHits,
		}
		for enc, n := range fs.Fallbacks {
			if s.Fallbacks == nil {
				s.Fallbacks = make(map[string]int)
			}
			s.Fallbacks[enc.String()] = n
		}
		summary.Sources = append(summary.Sources, s)
	}

	if f.matrix {
		names, m, err := df.AsMatrix()
		if err != nil {
			return err
		}
		r, c := df.NRows(), len(names)
		if m != nil {
			r, c = m.Dims()
		}
		summary.Matrix = &MatrixSummary{Rows: r, Columns: c, Fields: names}
	}

	if path := firstNonEmpty(f.out, cfg.Export.Path); path != "" {
		opts, err := exportOptions(f, cfg)
		if err != nil {
			return err
		}
		opts.Logger = base
		if err := export.ToFile(ctx, path, df.Store(), opts); err != nil {
			return err
		}
		summary.Output = path
	}

	summary.Duration = time.Since(start).String()
	if monitor != nil {
		u := monitor.Usage()
		summary.Resources = &u
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func exportOptions(f *loadFlags, cfg *config.RunConfig) (export.Options, error) {
	opts := export.Options{Level: compression.Level(cfg.Export.CompressionLevel)}
	if name := firstNonEmpty(f.format, cfg.Export.Format); name != "" {
		format, err := export.ParseFormat(name)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}
	if name := firstNonEmpty(f.compression, cfg.Export.Compression); name != "" {
		alg, err := compression.ParseAlgorithm(name)
		if err != nil {
			return opts, err
		}
		opts.Compression = alg
	}
	return opts, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
