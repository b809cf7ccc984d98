package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jblondin/etl/pkg/logger"
)

var version = "0.1.0"

// globalFlags are shared by every subcommand
type globalFlags struct {
	configFile string
	logLevel   string
}

func main() {
	// ETL_* overrides may live in a local .env file
	_ = godotenv.Load()

	err := newRootCmd().Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "etl",
		Short: "Load delimited files into typed columns and derive features",
		Long: `etl loads delimited text files into a typed columnar frame as described by
a TOML, JSON or YAML schema, applies the schema's transforms and reports or
exports the result.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "Path to a run configuration file (YAML, TOML or JSON)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newLoadCmd(g),
		newValidateCmd(g),
		newSchemaCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "etl v%s\n", version)
				fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
	)
	return root
}
