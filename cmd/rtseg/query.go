package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/rtseg"
)

type queryArgs struct {
	columns []string
	where   []string
	limit   int
	trace   bool
	output  string
}

func newQueryCommand(root *rootFlags) *cobra.Command {
	var args queryArgs
	cmd := &cobra.Command{
		Use:   "query [file...]",
		Short: "Ingest JSON lines and run a selection query over the segment",
		Example: `  rtseg query -c rtseg.toml events.jsonl --select user,clicks --where user=alice
  rtseg query -c rtseg.toml events.jsonl --where "clicks>=10" --where "title~real time" -o json`,
		RunE: func(cmd *cobra.Command, files []string) error {
			return runQuery(cmd, root, args, files)
		},
	}
	cmd.Flags().StringSliceVarP(&args.columns, "select", "s", nil, "Columns to return. Default all.")
	cmd.Flags().StringArrayVarP(&args.where, "where", "w", nil, "Filter such as user=alice, clicks>=10 or title~term. Repeat to AND.")
	cmd.Flags().IntVarP(&args.limit, "limit", "n", rtseg.DefaultLimit, "Maximum rows to return. Negative for all.")
	cmd.Flags().BoolVar(&args.trace, "trace", false, "Report the index structures used.")
	cmd.Flags().StringVarP(&args.output, "output", "o", "table", "Output format: table or json.")
	return cmd
}

func runQuery(cmd *cobra.Command, root *rootFlags, args queryArgs, files []string) error {
	ctx := cmd.Context()
	cfg, err := root.load()
	if err != nil {
		return err
	}
	b, err := cfg.TableBuilder()
	if err != nil {
		return err
	}
	in, err := b.Build()
	if err != nil {
		return err
	}
	defer in.Close()

	filter, err := parseWhere(in.Schema(), args.where)
	if err != nil {
		return err
	}
	if _, err := ingestFiles(ctx, cmd, in, files); err != nil {
		return err
	}

	q := in.Select(args.columns...).Limit(args.limit).Trace(args.trace)
	if filter != nil {
		q = q.Where(*filter)
	}
	resp, err := q.Execute(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch args.output {
	case "json":
		return printJSON(out, resp)
	case "table":
		return printTable(out, resp)
	default:
		return errUnknownOutput(args.output)
	}
}
