package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rtseg/blobstore"
	"github.com/hupe1980/rtseg/codec"
	"github.com/hupe1980/rtseg/resource"
	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/segment"
)

// FormatVersion is the manifest version written by this package.
const FormatVersion = 1

const (
	metadataObject = "metadata.json"
	rowsObject     = "rows.jsonl"
	checkEvery     = 1024
)

var (
	// ErrChecksumMismatch is returned when the rows object does not match
	// the manifest checksum.
	ErrChecksumMismatch = errors.New("export checksum mismatch")
	// ErrIncomplete is returned when the rows object holds fewer or more
	// documents than the manifest records.
	ErrIncomplete = errors.New("export incomplete")
	// ErrUnsupportedVersion is returned for manifests written by a newer
	// format version.
	ErrUnsupportedVersion = errors.New("unsupported export version")
)

// Source is the read-only segment surface used by an export.
type Source interface {
	NumDocs() int
	Record(docID int, reuse *row.Row) (*row.Row, error)
	Metadata() (segment.SegmentMetadata, error)
}

// Manifest describes a completed export.
type Manifest struct {
	Version     int                     `json:"version"`
	ExportID    string                  `json:"exportId"`
	Name        string                  `json:"name"`
	ExportedAt  time.Time               `json:"exportedAt"`
	NumDocs     int                     `json:"numDocs"`
	Codec       string                  `json:"codec"`
	Compression Compression             `json:"compression"`
	RowsObject  string                  `json:"rowsObject"`
	Checksum    string                  `json:"checksum"`
	RawBytes    int64                   `json:"rawBytes"`
	StoredBytes int64                   `json:"storedBytes"`
	Segment     segment.SegmentMetadata `json:"segment"`
}

// Metrics receives export timings.
type Metrics interface {
	RecordExport(d time.Duration, bytes int64, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordExport(time.Duration, int64, error) {}

// Options configures an Exporter.
type Options struct {
	Compression Compression
	// Level is the zstd level. Zero selects the default.
	Level int
	// Codec encodes rows and the manifest. It must implement
	// codec.Streamer. Defaults to codec.Default.
	Codec     codec.Codec
	Resources *resource.Controller
	Logger    *slog.Logger
	Metrics   Metrics
}

// Exporter writes segment snapshots to a blob store.
type Exporter struct {
	store blobstore.BlobStore
	opts  Options
}

// New creates an Exporter writing to store.
func New(store blobstore.BlobStore, optFns ...func(*Options)) (*Exporter, error) {
	opts := Options{
		Compression: CompressionZSTD,
		Codec:       codec.Default,
		Logger:      slog.New(slog.DiscardHandler),
		Metrics:     noopMetrics{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if _, ok := opts.Codec.(codec.Streamer); !ok {
		return nil, fmt.Errorf("codec %q cannot stream rows", opts.Codec.Name())
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	return &Exporter{store: store, opts: opts}, nil
}

// line is the encoded form of one document.
type line struct {
	Values map[string]row.Value `json:"v"`
	Nulls  []string             `json:"n,omitempty"`
}

// Export writes the first NumDocs documents of src under name. Documents
// indexed while the export runs are not included. The call holds one
// background slot of the resource controller.
func (e *Exporter) Export(ctx context.Context, src Source, name string) (*Manifest, error) {
	start := time.Now()
	m, err := e.export(ctx, src, name)
	var stored int64
	if m != nil {
		stored = m.StoredBytes
	}
	e.opts.Metrics.RecordExport(time.Since(start), stored, err)
	if err != nil {
		e.opts.Logger.ErrorContext(ctx, "export failed", "name", name, "error", err)
		return nil, err
	}
	e.opts.Logger.InfoContext(ctx, "export completed",
		"name", name, "num_docs", m.NumDocs, "stored_bytes", m.StoredBytes, "elapsed", time.Since(start))
	return m, nil
}

func (e *Exporter) export(ctx context.Context, src Source, name string) (*Manifest, error) {
	rc := e.opts.Resources
	if err := rc.AcquireBackground(ctx); err != nil {
		return nil, err
	}
	defer rc.ReleaseBackground()

	n := src.NumDocs()
	md, err := src.Metadata()
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Version:     FormatVersion,
		ExportID:    uuid.NewString(),
		Name:        name,
		NumDocs:     n,
		Codec:       e.opts.Codec.Name(),
		Compression: e.opts.Compression,
		RowsObject:  rowsObject + "." + e.opts.Compression.String(),
		Segment:     md,
	}
	rowsName := path.Join(name, m.RowsObject)

	w, err := e.store.Create(ctx, rowsName)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	hasher := xxhash.New()
	raw := &countingWriter{}
	stored := &countingWriter{}

	g, gctx := errgroup.WithContext(ctx)

	// Encode and compress.
	g.Go(func() error {
		err := e.encode(gctx, src, n, io.MultiWriter(hasher, raw), pw)
		_ = pw.CloseWithError(err)
		return err
	})

	// Upload, throttled by the IO limit.
	g.Go(func() error {
		_, err := io.Copy(io.MultiWriter(w, stored), resource.NewRateLimitedReader(gctx, pr, rc))
		if err != nil {
			_ = pr.CloseWithError(err)
			return err
		}
		if err := w.Sync(); err != nil {
			return err
		}
		return nil
	})

	err = g.Wait()
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = e.store.Delete(context.WithoutCancel(ctx), rowsName)
		return nil, fmt.Errorf("export %s: %w", name, err)
	}

	m.Checksum = strconv.FormatUint(hasher.Sum64(), 16)
	m.RawBytes = raw.n
	m.StoredBytes = stored.n
	m.ExportedAt = time.Now().UTC()

	data, err := e.opts.Codec.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := e.opts.Resources.AcquireIO(ctx, len(data)); err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, path.Join(name, metadataObject), data); err != nil {
		_ = e.store.Delete(context.WithoutCancel(ctx), rowsName)
		return nil, fmt.Errorf("export %s: %w", name, err)
	}
	m.StoredBytes += int64(len(data))
	return m, nil
}

// encode writes documents [0, n) of src as compressed JSON lines to w. tee
// receives the uncompressed bytes.
func (e *Exporter) encode(ctx context.Context, src Source, n int, tee io.Writer, w io.Writer) error {
	zw, err := e.opts.Compression.newWriter(w, e.opts.Level)
	if err != nil {
		return err
	}
	enc := e.opts.Codec.(codec.Streamer).NewEncoder(io.MultiWriter(zw, tee))

	var (
		reuse = row.New()
		ln    = line{Values: make(map[string]row.Value)}
	)
	for docID := range n {
		if docID%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		r, err := src.Record(docID, reuse)
		if err != nil {
			return fmt.Errorf("record %d: %w", docID, err)
		}
		clear(ln.Values)
		r.Range(func(col string, v row.Value) bool {
			ln.Values[col] = v
			return true
		})
		ln.Nulls = r.NullFields()
		if err := enc.Encode(&ln); err != nil {
			return err
		}
	}
	return zw.Close()
}

// ReadManifest reads the manifest of a completed export.
func (e *Exporter) ReadManifest(ctx context.Context, name string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, e.store, path.Join(name, metadataObject))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := e.opts.Codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, m.Version)
	}
	return &m, nil
}

// Scan calls fn for every exported document in docID order. The row passed
// to fn is reused between calls. After the last document the checksum and
// document count are verified against the manifest.
func (e *Exporter) Scan(ctx context.Context, name string, fn func(docID int, r *row.Row) error) (*Manifest, error) {
	m, err := e.ReadManifest(ctx, name)
	if err != nil {
		return nil, err
	}
	c, ok := codec.ByName(m.Codec)
	if !ok {
		return nil, fmt.Errorf("export %s: unknown codec %q", name, m.Codec)
	}
	streamer, ok := c.(codec.Streamer)
	if !ok {
		return nil, fmt.Errorf("export %s: codec %q cannot stream rows", name, m.Codec)
	}

	b, err := e.store.Open(ctx, path.Join(name, m.RowsObject))
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	zr, err := m.Compression.newReader(resource.NewRateLimitedReader(ctx, rc, e.opts.Resources))
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()

	hasher := xxhash.New()
	dec := streamer.NewDecoder(io.TeeReader(zr, hasher))

	var (
		docID int
		reuse = row.New()
	)
	for {
		var ln line
		if err := dec.Decode(&ln); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("export %s: document %d: %w", name, docID, err)
		}
		reuse.Clear()
		for col, v := range ln.Values {
			reuse.PutValue(col, v)
		}
		for _, col := range ln.Nulls {
			reuse.AddNullField(col)
		}
		if err := fn(docID, reuse); err != nil {
			return nil, err
		}
		docID++
	}

	if docID != m.NumDocs {
		return nil, fmt.Errorf("%w: %d of %d documents", ErrIncomplete, docID, m.NumDocs)
	}
	if sum := strconv.FormatUint(hasher.Sum64(), 16); sum != m.Checksum {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, sum, m.Checksum)
	}
	return m, nil
}

// ReadAll returns every exported document.
func (e *Exporter) ReadAll(ctx context.Context, name string) (*Manifest, []*row.Row, error) {
	var rows []*row.Row
	m, err := e.Scan(ctx, name, func(_ int, r *row.Row) error {
		rows = append(rows, r.Clone())
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return m, rows, nil
}

// List returns the names of completed exports.
func (e *Exporter) List(ctx context.Context) ([]string, error) {
	names, err := e.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if path.Base(n) == metadataObject {
			out = append(out, path.Dir(n))
		}
	}
	return out, nil
}

// Delete removes an export. The manifest goes first so a partially deleted
// export is never read as complete.
func (e *Exporter) Delete(ctx context.Context, name string) error {
	m, err := e.ReadManifest(ctx, name)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, path.Join(name, metadataObject)); err != nil {
		return err
	}
	return e.store.Delete(ctx, path.Join(name, m.RowsObject))
}

type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
