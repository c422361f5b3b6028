package main

import (
	"time"

	"github.com/spf13/cobra"
)

type ingestArgs struct {
	exportName string
	lenient    bool
	strict     bool
	stopOnErr  bool
	jsonOutput bool
}

func newIngestCommand(root *rootFlags) *cobra.Command {
	var args ingestArgs
	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest JSON lines into a segment and print statistics",
		Long: `Ingest reads newline-delimited JSON records from the files, or from stdin
when no file or "-" is given, into a fresh consuming segment. With --export the
segment is written to the configured blob store afterwards.`,
		RunE: func(cmd *cobra.Command, files []string) error {
			return runIngest(cmd, root, args, files)
		},
	}
	cmd.Flags().StringVar(&args.exportName, "export", "", "Export the segment under this name.")
	cmd.Flags().BoolVar(&args.lenient, "lenient", false, "Substitute defaults for values that cannot be converted.")
	cmd.Flags().BoolVar(&args.strict, "strict", false, "Drop records with values that cannot be converted.")
	cmd.Flags().BoolVar(&args.stopOnErr, "stop-on-error", false, "Fail on the first malformed record.")
	cmd.Flags().BoolVar(&args.jsonOutput, "json", false, "Print statistics as JSON.")
	cmd.MarkFlagsMutuallyExclusive("lenient", "strict")
	return cmd
}

func runIngest(cmd *cobra.Command, root *rootFlags, args ingestArgs, files []string) error {
	ctx := cmd.Context()
	cfg, err := root.load()
	if err != nil {
		return err
	}
	b, err := cfg.TableBuilder()
	if err != nil {
		return err
	}
	switch {
	case args.lenient:
		b = b.Lenient()
	case args.strict:
		b = b.Strict()
	}
	if args.stopOnErr {
		b = b.StopOnParseError()
	}
	in, err := b.Build()
	if err != nil {
		return err
	}
	defer in.Close()

	start := time.Now()
	st, err := ingestFiles(ctx, cmd, in, files)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	if args.exportName == "" {
		if args.jsonOutput {
			return printJSON(out, st)
		}
		printIngestStats(out, in, st, elapsed)
		return nil
	}

	store, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	opt, err := cfg.ExportOptions()
	if err != nil {
		return err
	}
	m, err := in.Export(ctx, store, args.exportName, opt)
	if err != nil {
		return err
	}
	if args.jsonOutput {
		return printJSON(out, struct {
			Stats    any `json:"stats"`
			Manifest any `json:"manifest"`
		}{st, m})
	}
	printIngestStats(out, in, st, elapsed)
	printManifest(out, m)
	return nil
}
