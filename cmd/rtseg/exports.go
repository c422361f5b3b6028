package main

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/rtseg/export"
	"github.com/hupe1980/rtseg/row"
)

func newExportsCommand(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "Manage segment exports in the configured blob store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List completed exports",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				e, err := openExporter(cmd.Context(), root)
				if err != nil {
					return err
				}
				names, err := e.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print the manifest of an export",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := openExporter(cmd.Context(), root)
				if err != nil {
					return err
				}
				m, err := e.ReadManifest(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printManifest(cmd.OutOrStdout(), m)
				return nil
			},
		},
		&cobra.Command{
			Use:   "verify <name>",
			Short: "Read every document and check the count and checksum",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := openExporter(cmd.Context(), root)
				if err != nil {
					return err
				}
				m, err := e.Scan(cmd.Context(), args[0], func(int, *row.Row) error { return nil })
				if err != nil {
					return err
				}
				green.Fprintf(cmd.OutOrStdout(), "%s: %d documents, checksum %s ok\n", m.Name, m.NumDocs, m.Checksum)
				return nil
			},
		},
		newExportsCatCommand(root),
		&cobra.Command{
			Use:   "rm <name>",
			Short: "Delete an export",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := openExporter(cmd.Context(), root)
				if err != nil {
					return err
				}
				return e.Delete(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

var errStopScan = errors.New("stop scan")

func newExportsCatCommand(root *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "cat <name>",
		Short: "Print exported documents as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openExporter(cmd.Context(), root)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, err = e.Scan(cmd.Context(), args[0], func(docID int, r *row.Row) error {
				if limit >= 0 && docID >= limit {
					return errStopScan
				}
				b, err := json.Marshal(nativeRow(r))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(b))
				return err
			})
			if errors.Is(err, errStopScan) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", -1, "Maximum documents to print. Negative for all.")
	return cmd
}

// nativeRow maps a row to JSON-friendly values; null columns become null.
func nativeRow(r *row.Row) map[string]any {
	m := make(map[string]any, r.Len())
	r.Range(func(col string, v row.Value) bool {
		if r.IsNull(col) {
			m[col] = nil
			return true
		}
		m[col] = v.Native()
		return true
	})
	return m
}

func openExporter(ctx context.Context, root *rootFlags) (*export.Exporter, error) {
	cfg, err := root.load()
	if err != nil {
		return nil, err
	}
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	opt, err := cfg.ExportOptions()
	if err != nil {
		return nil, err
	}
	return export.New(store, opt, func(o *export.Options) { o.Resources = cfg.NewResources() })
}
