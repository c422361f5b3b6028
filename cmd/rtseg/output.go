package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"

	"github.com/hupe1980/rtseg"
	"github.com/hupe1980/rtseg/export"
	"github.com/hupe1980/rtseg/response"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	warn  = color.New(color.FgYellow)
)

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printIngestStats(w io.Writer, in *rtseg.Ingester, st rtseg.IngestStats, elapsed time.Duration) {
	bold.Fprintf(w, "Segment %s\n", in.Segment().Name())
	green.Fprintf(w, "\tindexed: %d", st.Indexed)
	fmt.Fprintf(w, " of %d records in %v\n", st.Records, elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "\tdocuments: %d, memory: %d bytes\n", in.NumDocs(), in.Segment().MemoryUsage())
	if st.Filtered > 0 {
		fmt.Fprintf(w, "\tfiltered: %d\n", st.Filtered)
	}
	for _, c := range []struct {
		name string
		n    int64
	}{
		{"skipped", st.Skipped},
		{"incomplete", st.Incomplete},
		{"rejected", st.Rejected},
		{"parse errors", st.ParseErrors},
	} {
		if c.n > 0 {
			warn.Fprintf(w, "\t%s: %d\n", c.name, c.n)
		}
	}
}

func printManifest(w io.Writer, m *export.Manifest) {
	bold.Fprintf(w, "Export %s\n", m.Name)
	fmt.Fprintf(w, "\tid: %s\n", m.ExportID)
	fmt.Fprintf(w, "\texported at: %s\n", m.ExportedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "\tsegment: %s (table %s)\n", m.Segment.Name, m.Segment.Table)
	fmt.Fprintf(w, "\tdocuments: %d\n", m.NumDocs)
	fmt.Fprintf(w, "\tcodec: %s, compression: %s\n", m.Codec, m.Compression)
	fmt.Fprintf(w, "\tsize: %d bytes stored, %d bytes raw\n", m.StoredBytes, m.RawBytes)
	fmt.Fprintf(w, "\tchecksum: %s\n", m.Checksum)
}

// printTable renders the result table and a one-line summary.
func printTable(w io.Writer, resp *response.BrokerResponse) error {
	for _, e := range resp.Exceptions {
		warn.Fprintf(w, "exception %d: %s\n", e.ErrorCode, e.Message)
	}
	if t := resp.ResultTable; t != nil {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		bold.Fprintln(tw, strings.Join(t.DataSchema.ColumnNames, "\t"))
		for _, r := range t.Rows {
			cells := make([]string, len(r))
			for i, v := range r {
				cells[i] = cell(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "%d row(s), %d of %d docs matched, %d ms\n",
		resp.NumRowsResultSet, resp.NumDocsScanned, resp.TotalDocs, resp.TimeUsedMs)
	return nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

func errUnknownOutput(format string) error {
	return fmt.Errorf("unknown output format %q: want table or json", format)
}
