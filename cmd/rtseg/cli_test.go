package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rtseg"
)

const testConfig = `
[schema]
name = "events"

[[schema.fields]]
name = "user"
data_type = "STRING"

[[schema.fields]]
name = "clicks"
data_type = "LONG"
field_type = "METRIC"

[[schema.fields]]
name = "title"
data_type = "STRING"

[table]
name = "events"

[table.indexing]
inverted_index_columns = ["user"]
range_index_columns = ["clicks"]
text_index_columns = ["title"]

[segment]
name = "events__0"
chunk_size = 16

[store]
kind = "local"
path = "exports"

[export]
compression = "lz4"

[log]
level = "error"
`

const testInput = `{"user":"alice","clicks":3,"title":"real time segments"}
{"user":"bob","clicks":"12","title":"batch segments"}
{"user":"alice","clicks":20}
{"user":"carol","clicks":"x"}
broken
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "rtseg.toml")
	require.NoError(t, os.WriteFile(p, []byte(testConfig), 0o600))
	return p
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngest_JSON(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, testInput, "ingest", "-c", cfg, "--json")
	require.NoError(t, err)

	var st rtseg.IngestStats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, rtseg.IngestStats{Records: 4, Indexed: 3, Skipped: 1, ParseErrors: 1}, st)
}

func TestIngest_Lenient(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, testInput, "ingest", "-c", cfg, "--lenient")
	require.NoError(t, err)
	assert.Contains(t, out, "Segment events__0")
	assert.Contains(t, out, "indexed: 4 of 4 records")
	assert.Contains(t, out, "incomplete: 1")
	assert.Contains(t, out, "parse errors: 1")
}

func TestIngest_StopOnError(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, testInput, "ingest", "-c", cfg, "--stop-on-error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 5")
}

func TestIngest_FromFile(t *testing.T) {
	cfg := writeConfig(t)
	input := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(testInput), 0o600))

	out, err := run(t, "", "ingest", "-c", cfg, "--json", input, input)
	require.NoError(t, err)
	var st rtseg.IngestStats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, int64(6), st.Indexed)

	_, err = run(t, "", "ingest", "-c", cfg, filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestQuery_Table(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, testInput, "query", "-c", cfg, "--select", "user,clicks", "--where", "user=alice")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"user", "clicks"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"alice", "3"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"alice", "20"}, strings.Fields(lines[2]))
	assert.Contains(t, lines[3], "2 row(s), 2 of 3 docs matched")
}

func TestQuery_JSON(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, testInput, "query", "-c", cfg, "-o", "json",
		"--where", "clicks>=10", "--where", "title~segments", "--trace")
	require.NoError(t, err)

	var resp struct {
		ResultTable struct {
			Rows [][]any `json:"rows"`
		} `json:"resultTable"`
		NumDocsScanned int64             `json:"numDocsScanned"`
		TraceInfo      map[string]string `json:"traceInfo"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, int64(1), resp.NumDocsScanned)
	require.Len(t, resp.ResultTable.Rows, 1)
	assert.Equal(t, "bob", resp.ResultTable.Rows[0][0])
	assert.Contains(t, resp.TraceInfo["events__0"], "text:title")
}

func TestQuery_Errors(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, testInput, "query", "-c", cfg, "--where", "nope=1")
	assert.ErrorContains(t, err, "unknown column")

	_, err = run(t, testInput, "query", "-c", cfg, "-o", "yaml")
	assert.ErrorContains(t, err, "unknown output format")

	out, err := run(t, testInput, "query", "-c", cfg, "--select", "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "exception 700")
}

func TestExports(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, testInput, "ingest", "-c", cfg, "--export", "events-0")
	require.NoError(t, err)
	assert.Contains(t, out, "Export events-0")
	assert.Contains(t, out, "compression: lz4")
	assert.FileExists(t, filepath.Join(filepath.Dir(cfg), "exports", "events-0", "metadata.json"))

	out, err = run(t, "", "exports", "list", "-c", cfg)
	require.NoError(t, err)
	assert.Equal(t, "events-0\n", out)

	out, err = run(t, "", "exports", "show", "-c", cfg, "events-0")
	require.NoError(t, err)
	assert.Contains(t, out, "documents: 3")
	assert.Contains(t, out, "segment: events__0 (table events)")

	out, err = run(t, "", "exports", "verify", "-c", cfg, "events-0")
	require.NoError(t, err)
	assert.Contains(t, out, "3 documents")

	out, err = run(t, "", "exports", "cat", "-c", cfg, "-n", "2", "events-0")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, map[string]any{"user": "alice", "clicks": float64(3), "title": "real time segments"}, first)
	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "bob", second["user"])

	_, err = run(t, "", "exports", "rm", "-c", cfg, "events-0")
	require.NoError(t, err)
	_, err = run(t, "", "exports", "show", "-c", cfg, "events-0")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
