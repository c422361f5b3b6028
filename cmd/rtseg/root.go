package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/rtseg"
	"github.com/hupe1980/rtseg/reader"
)

type rootFlags struct {
	config     string
	schemaFile string
	tableFile  string
	logLevel   string
	noColor    bool
}

func newRootCommand() *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:           "rtseg",
		Short:         "Real-time column segment tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if flags.noColor {
				color.NoColor = true
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Path to the TOML config file.")
	pf.StringVar(&flags.schemaFile, "schema", "", "Path to the JSON schema. Overrides the config.")
	pf.StringVar(&flags.tableFile, "table", "", "Path to the JSON table config. Overrides the config.")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error). Overrides the config.")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored output.")

	cmd.AddCommand(
		newIngestCommand(&flags),
		newQueryCommand(&flags),
		newServeCommand(&flags),
		newExportsCommand(&flags),
	)
	return cmd
}

// load reads the config file and applies the flag overrides.
func (f *rootFlags) load() (*Config, error) {
	cfg, err := LoadConfig(f.config)
	if err != nil {
		return nil, err
	}
	if f.schemaFile != "" {
		cfg.SchemaFile, cfg.Schema = f.schemaFile, nil
	}
	if f.tableFile != "" {
		cfg.TableFile, cfg.Table = f.tableFile, nil
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, nil
}

// ingestFiles feeds every file into in. "-" or no file reads stdin.
func ingestFiles(ctx context.Context, cmd *cobra.Command, in *rtseg.Ingester, files []string) (rtseg.IngestStats, error) {
	if len(files) == 0 {
		files = []string{"-"}
	}
	var total rtseg.IngestStats
	for _, name := range files {
		st, err := ingestFile(ctx, cmd.InOrStdin(), in, name)
		total.Records += st.Records
		total.Indexed += st.Indexed
		total.Filtered += st.Filtered
		total.Skipped += st.Skipped
		total.Incomplete += st.Incomplete
		total.Rejected += st.Rejected
		total.ParseErrors += st.ParseErrors
		if err != nil {
			return total, fmt.Errorf("%s: %w", name, err)
		}
	}
	return total, nil
}

func ingestFile(ctx context.Context, stdin io.Reader, in *rtseg.Ingester, name string) (rtseg.IngestStats, error) {
	var r io.Reader = stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return rtseg.IngestStats{}, err
		}
		defer f.Close()
		r = f
	}
	st, err := in.IngestReader(ctx, reader.NewJSONReader(r))
	if errors.Is(err, rtseg.ErrAllocationFailed) || errors.Is(err, rtseg.ErrDictionarySaturated) {
		return st, fmt.Errorf("segment is full after %d documents: %w", in.NumDocs(), err)
	}
	return st, err
}
