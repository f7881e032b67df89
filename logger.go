package bitfunnel

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with bitfunnel-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
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

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// Error implements fault.ErrorLogger, so a *Logger can be handed directly
// to fault.Fatal and to any package (shard, termtable, recycle, ...) that
// only needs the narrow ErrorLogger interface.
func (l *Logger) Error(msg string, args ...any) {
	l.Logger.Error(msg, args...)
}

// WithShard adds a shard field to the logger.
func (l *Logger) WithShard(id uint32) *Logger {
	return &Logger{Logger: l.Logger.With("shard", id)}
}

// WithDocId adds a document id field to the logger.
func (l *Logger) WithDocId(id uint64) *Logger {
	return &Logger{Logger: l.Logger.With("doc_id", id)}
}

// LogIngest logs a document claiming a fresh slot. docID is the document's
// externally supplied core.DocId.
func (l *Logger) LogIngest(ctx context.Context, shardID uint32, docID uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed", "shard", shardID, "error", err)
		return
	}
	l.DebugContext(ctx, "ingest completed", "shard", shardID, "doc_id", docID)
}

// LogActivate logs a document's active bit being published. doc is the
// document's dense core.DocIndex within its Slice, not its core.DocId.
func (l *Logger) LogActivate(ctx context.Context, shardID uint32, doc uint32) {
	l.DebugContext(ctx, "document activated", "shard", shardID, "doc", doc)
}

// LogExpire logs a document's active bit being cleared. doc is the
// document's dense core.DocIndex within its Slice, not its core.DocId.
func (l *Logger) LogExpire(ctx context.Context, shardID uint32, doc uint32) {
	l.DebugContext(ctx, "document expired", "shard", shardID, "doc", doc)
}

// LogQuery logs a query run against one shard.
func (l *Logger) LogQuery(ctx context.Context, shardID uint32, matched int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed", "shard", shardID, "error", err)
		return
	}
	l.DebugContext(ctx, "query completed", "shard", shardID, "matched", matched)
}

// LogRecycle logs a Slice being handed to the Recycler.
func (l *Logger) LogRecycle(ctx context.Context, shardID uint32, sliceIndex int) {
	l.InfoContext(ctx, "slice queued for recycling", "shard", shardID, "slice", sliceIndex)
}

// LogCompile logs a query program being lowered by the RankDownCompiler.
func (l *Logger) LogCompile(ctx context.Context, shardID uint32, requiredRank int) {
	l.DebugContext(ctx, "query compiled", "shard", shardID, "required_rank", requiredRank)
}

// LogRewrite logs a RowMatchNode tree being normalized before compilation.
func (l *Logger) LogRewrite(ctx context.Context, shardID uint32, targetRowCount, targetCrossProductTermCount int) {
	l.DebugContext(ctx, "query plan rewritten",
		"shard", shardID,
		"target_row_count", targetRowCount,
		"target_cross_product_term_count", targetCrossProductTermCount,
	)
}
