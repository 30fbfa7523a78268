package vecgraph

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with index-specific helpers so every operation
// logs the same field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, a text handler writing to stderr at Info is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithID adds an id field.
func (l *Logger) WithID(id uint64) *Logger {
	return &Logger{Logger: l.Logger.With("id", id)}
}

// WithK adds a k (neighbor count) field.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{Logger: l.Logger.With("k", k)}
}

// WithDimension adds a dimension field.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{Logger: l.Logger.With("dimension", dim)}
}

// WithCount adds a count field.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{Logger: l.Logger.With("count", count)}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, id uint64, inserted bool, err error) {
	lg := l.WithID(id)
	if err != nil {
		lg.ErrorContext(ctx, "insert failed", "error", err)
		return
	}
	lg.DebugContext(ctx, "insert completed", "inserted", inserted)
}

// LogBatchInsert logs a batch insert operation.
func (l *Logger) LogBatchInsert(ctx context.Context, count, inserted int, err error) {
	lg := l.WithCount(count)
	switch {
	case err != nil:
		lg.ErrorContext(ctx, "batch insert failed", "error", err)
	case inserted < count:
		lg.WarnContext(ctx, "batch insert skipped duplicates",
			"inserted", inserted,
			"skipped", count-inserted,
		)
	default:
		lg.InfoContext(ctx, "batch insert completed")
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, ef, found int, exact bool, err error) {
	lg := l.WithK(k)
	if err != nil {
		lg.ErrorContext(ctx, "search failed", "error", err)
		return
	}
	lg.DebugContext(ctx, "search completed",
		"ef", ef,
		"exact", exact,
		"results", found,
	)
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(ctx context.Context, id uint64, found bool) {
	l.WithID(id).DebugContext(ctx, "remove completed", "found", found)
}

// LogVacuum logs a rebuild.
func (l *Logger) LogVacuum(ctx context.Context, live, reclaimed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "vacuum failed", "error", err)
		return
	}
	l.InfoContext(ctx, "vacuum completed", "live", live, "reclaimed", reclaimed)
}

// LogSave logs a save to a directory or blob store.
func (l *Logger) LogSave(ctx context.Context, location string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed", "location", location, "error", err)
		return
	}
	l.InfoContext(ctx, "index saved", "location", location, "bytes", bytes)
}

// LogLoad logs a load from a directory or blob store.
func (l *Logger) LogLoad(ctx context.Context, location string, live int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed", "location", location, "error", err)
		return
	}
	l.InfoContext(ctx, "index loaded", "location", location, "live", live)
}
