package rtseg

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with rtseg-specific helpers.
// This keeps field names consistent across ingestion, queries and exports.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON to w.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithSegment adds the segment name to every record.
func (l *Logger) WithSegment(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("segment", name),
	}
}

// LogIndex logs the outcome of indexing one row.
func (l *Logger) LogIndex(ctx context.Context, docID int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index failed",
			"doc_id", docID,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "row indexed",
		"doc_id", docID,
	)
}

// LogTransform logs rows the pipeline dropped or altered.
func (l *Logger) LogTransform(ctx context.Context, skipped, incomplete int, errs []error) {
	if skipped == 0 && incomplete == 0 {
		return
	}
	attrs := []any{"skipped", skipped, "incomplete", incomplete}
	if len(errs) > 0 {
		attrs = append(attrs, "error", errs[0])
	}
	l.WarnContext(ctx, "record transformed with errors", attrs...)
}

// LogIngest logs a finished IngestReader call.
func (l *Logger) LogIngest(ctx context.Context, stats IngestStats, elapsed time.Duration, err error) {
	attrs := []any{
		"records", stats.Records,
		"indexed", stats.Indexed,
		"filtered", stats.Filtered,
		"skipped", stats.Skipped,
		"rejected", stats.Rejected,
		"parse_errors", stats.ParseErrors,
		"elapsed", elapsed,
	}
	if err != nil {
		l.ErrorContext(ctx, "ingestion stopped", append(attrs, "error", err)...)
		return
	}
	l.InfoContext(ctx, "ingestion completed", attrs...)
}

// LogQuery logs an executed query.
func (l *Logger) LogQuery(ctx context.Context, query string, docsScanned int64, exceptions int) {
	if exceptions > 0 {
		l.WarnContext(ctx, "query completed with exceptions",
			"query", query,
			"docs_scanned", docsScanned,
			"exceptions", exceptions,
		)
		return
	}
	l.DebugContext(ctx, "query completed",
		"query", query,
		"docs_scanned", docsScanned,
	)
}

// LogDestroy logs the release of a segment.
func (l *Logger) LogDestroy(ctx context.Context, numDocs int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "destroy failed",
			"num_docs", numDocs,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "segment released",
		"num_docs", numDocs,
	)
}
