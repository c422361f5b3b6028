package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/rtseg"
	"github.com/hupe1980/rtseg/blobstore"
	miniostore "github.com/hupe1980/rtseg/blobstore/minio"
	s3store "github.com/hupe1980/rtseg/blobstore/s3"
	"github.com/hupe1980/rtseg/codec"
	"github.com/hupe1980/rtseg/export"
	"github.com/hupe1980/rtseg/resource"
	"github.com/hupe1980/rtseg/schema"
)

// Config is the TOML configuration of the rtseg command.
//
// The schema and the table config are given inline or as paths to their
// JSON documents. Relative paths are resolved against the directory of the
// config file.
type Config struct {
	SchemaFile string              `toml:"schema_file"`
	Schema     *schema.Schema      `toml:"schema"`
	TableFile  string              `toml:"table_file"`
	Table      *schema.TableConfig `toml:"table"`

	Segment   SegmentConfig  `toml:"segment"`
	Resources ResourceConfig `toml:"resources"`
	Store     StoreConfig    `toml:"store"`
	Export    ExportConfig   `toml:"export"`
	Log       LogConfig      `toml:"log"`

	dir string
}

// SegmentConfig sizes the consuming segment.
type SegmentConfig struct {
	Name              string `toml:"name"`
	ChunkSize         int    `toml:"chunk_size"`
	MaxDictionarySize int    `toml:"max_dictionary_size"`
	PostingChunkSize  int    `toml:"posting_chunk_size"`
}

// ResourceConfig bounds memory, background work and export IO.
type ResourceConfig struct {
	MemoryLimit       int64 `toml:"memory_limit"`
	BackgroundWorkers int64 `toml:"background_workers"`
	IOLimit           int64 `toml:"io_limit"`
}

// StoreConfig selects the blob store exports are written to.
type StoreConfig struct {
	// Kind is one of local, memory, s3 or minio.
	Kind      string `toml:"kind"`
	Path      string `toml:"path"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Secure    bool   `toml:"secure"`
}

// ExportConfig configures segment exports.
type ExportConfig struct {
	Compression string `toml:"compression"`
	Level       int    `toml:"level"`
	Codec       string `toml:"codec"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() *Config {
	return &Config{
		Store:  StoreConfig{Kind: "local", Path: "exports"},
		Export: ExportConfig{Compression: "zstd", Codec: "go-json"},
		Log:    LogConfig{Level: "warn", Format: "text"},
	}
}

// LoadConfig reads a TOML file over the defaults. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// LoadSchema returns the inline schema or loads SchemaFile.
func (c *Config) LoadSchema() (*schema.Schema, error) {
	switch {
	case c.SchemaFile != "":
		return schema.Load(c.resolve(c.SchemaFile))
	case c.Schema != nil:
		if err := c.Schema.Validate(); err != nil {
			return nil, err
		}
		return c.Schema, nil
	default:
		return nil, errors.New("no schema configured: set schema_file or [schema]")
	}
}

// LoadTable returns the inline table config, loads TableFile, or nil.
func (c *Config) LoadTable() (*schema.TableConfig, error) {
	switch {
	case c.TableFile != "":
		return schema.LoadTableConfig(c.resolve(c.TableFile))
	default:
		return c.Table, nil
	}
}

// NewLogger builds the configured logger writing to stderr.
func (c *Config) NewLogger() (*rtseg.Logger, error) {
	var level slog.Level
	if c.Log.Level != "" {
		if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text":
		return rtseg.NewTextLogger(level), nil
	case "json":
		return rtseg.NewJSONLogger(os.Stderr, level), nil
	default:
		return nil, fmt.Errorf("log format %q: want text or json", c.Log.Format)
	}
}

// NewResources returns a controller for the configured limits, or nil when
// nothing is limited.
func (c *Config) NewResources() *resource.Controller {
	r := c.Resources
	if r.MemoryLimit <= 0 && r.BackgroundWorkers <= 0 && r.IOLimit <= 0 {
		return nil
	}
	return resource.NewController(resource.Config{
		MemoryLimitBytes:     r.MemoryLimit,
		MaxBackgroundWorkers: r.BackgroundWorkers,
		IOLimitBytesPerSec:   r.IOLimit,
	})
}

// OpenStore connects to the configured blob store.
func (c *Config) OpenStore(ctx context.Context) (blobstore.BlobStore, error) {
	st := c.Store
	switch strings.ToLower(st.Kind) {
	case "", "local":
		p := st.Path
		if p == "" {
			p = "exports"
		}
		return blobstore.NewLocalStore(c.resolve(p)), nil
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "s3":
		if st.Bucket == "" {
			return nil, errors.New("store: s3 requires a bucket")
		}
		return s3store.New(ctx, st.Bucket, s3store.WithPrefix(st.Prefix), s3store.WithRegion(st.Region))
	case "minio":
		if st.Bucket == "" || st.Endpoint == "" {
			return nil, errors.New("store: minio requires an endpoint and a bucket")
		}
		client, err := minio.New(st.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(st.AccessKey, st.SecretKey, ""),
			Secure: st.Secure,
			Region: st.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("store: minio: %w", err)
		}
		return miniostore.NewStore(client, st.Bucket, st.Prefix), nil
	default:
		return nil, fmt.Errorf("store: unknown kind %q", st.Kind)
	}
}

// ExportOptions returns the export options for the configured codec and
// compression.
func (c *Config) ExportOptions() (func(*export.Options), error) {
	comp := export.CompressionZSTD
	if c.Export.Compression != "" {
		var err error
		if comp, err = export.ParseCompression(c.Export.Compression); err != nil {
			return nil, err
		}
	}
	cd, ok := codec.ByName(c.Export.Codec)
	if !ok {
		return nil, fmt.Errorf("export: unknown codec %q", c.Export.Codec)
	}
	return func(o *export.Options) {
		o.Compression = comp
		o.Level = c.Export.Level
		o.Codec = cd
	}, nil
}

// TableBuilder returns the Ingester builder for the configuration.
func (c *Config) TableBuilder() (rtseg.TableBuilder, error) {
	s, err := c.LoadSchema()
	if err != nil {
		return rtseg.TableBuilder{}, err
	}
	table, err := c.LoadTable()
	if err != nil {
		return rtseg.TableBuilder{}, err
	}
	b := rtseg.Table(s)
	if table != nil {
		b = b.Config(table)
	}
	if c.Segment.Name != "" {
		b = b.SegmentName(c.Segment.Name)
	}
	b = b.ChunkSize(c.Segment.ChunkSize).
		MaxDictionarySize(c.Segment.MaxDictionarySize).
		PostingChunkSize(c.Segment.PostingChunkSize)
	if rc := c.NewResources(); rc != nil {
		b = b.Resources(rc)
	}
	logger, err := c.NewLogger()
	if err != nil {
		return rtseg.TableBuilder{}, err
	}
	return b.Logger(logger), nil
}
