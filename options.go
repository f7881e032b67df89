package bitfunnel

import (
	"log/slog"

	"github.com/hausdorff/bitfunnel/fs"
	"github.com/hausdorff/bitfunnel/resource"
	"github.com/hausdorff/bitfunnel/termtable"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	controller       *resource.Controller
	treatment        termtable.Treatment
	fs               fs.FileSystem
	arenaChunkSize   int
}

// Option configures an Index's ambient behavior: logging, metrics,
// resource bounds, the default row Treatment new shards are built with,
// the FileSystem backup/restore goes through, and the per-query arena's
// chunk size.
//
// Breaking changes are expected while this package is pre-release.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := bitfunnel.NewJSONLogger(slog.LevelInfo)
//	idx, _ := bitfunnel.New(bitfunnel.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &bitfunnel.BasicMetricsCollector{}
//	idx, _ := bitfunnel.New(bitfunnel.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithResourceController bounds Recycler/background-worker concurrency
// and memory. Backup writes are not I/O-throttled. Pass nil to run
// unbounded (the default).
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithTreatment sets the Treatment AddShard uses when building a new
// Shard's TermTable, unless AddShard is given a Treatment of its own.
func WithTreatment(t termtable.Treatment) Option {
	return func(o *options) {
		o.treatment = t
	}
}

// WithFileSystem configures the FileSystem Slice backups are read from
// and written to. Defaults to fs.Default (the local disk). Pass
// fsext.NewS3FileSystem(...) to back Slice persistence with S3 instead.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithArenaChunkSize sets the chunk size a query's internal/arena.Arena
// grows by. Most callers should leave this at its default
// (arena.DefaultChunkSize); a larger value trades memory for fewer
// chunk-allocation rounds on queries whose rewritten plan tree is large.
func WithArenaChunkSize(n int) Option {
	return func(o *options) {
		o.arenaChunkSize = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		treatment:        termtable.NewPrivateRank0Treatment(),
		fs:               fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}
