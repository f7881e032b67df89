// This file implements treatment-specific fluent builder APIs for creating
// and configuring Index instances. Builders are immutable - each method
// returns a new builder with the updated configuration.
package bitfunnel

import (
	"log/slog"

	"github.com/hausdorff/bitfunnel/fs"
	"github.com/hausdorff/bitfunnel/resource"
	"github.com/hausdorff/bitfunnel/termtable"
)

// =============================================================================
// PrivateRank0 Builder (Immutable)
// =============================================================================

// PrivateRank0 creates a builder for an Index whose default Treatment gives
// every term exactly one private rank-0 row and no shared rows. Private
// rows are hashed into a fixed-size pool, so two terms can still land on
// the same row.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	idx, err := bitfunnel.PrivateRank0().
//	    Logger(logger).
//	    Build()
func PrivateRank0() PrivateRank0Builder {
	return PrivateRank0Builder{}
}

// PrivateRank0Builder is an immutable fluent builder for an Index backed by
// PrivateRank0Treatment.
type PrivateRank0Builder struct {
	logger     *Logger
	metrics    MetricsCollector
	controller *resource.Controller
	fs         fs.FileSystem
}

// Logger sets the structured logger for operation tracing.
func (b PrivateRank0Builder) Logger(l *Logger) PrivateRank0Builder {
	b.logger = l
	return b
}

// LogLevel is a convenience for Logger(NewTextLogger(level)).
func (b PrivateRank0Builder) LogLevel(level slog.Level) PrivateRank0Builder {
	b.logger = NewTextLogger(level)
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b PrivateRank0Builder) Metrics(mc MetricsCollector) PrivateRank0Builder {
	b.metrics = mc
	return b
}

// ResourceController bounds Recycler concurrency. Backup writes are not
// I/O-throttled.
func (b PrivateRank0Builder) ResourceController(c *resource.Controller) PrivateRank0Builder {
	b.controller = c
	return b
}

// FileSystem configures where Slice backups are read from and written to.
func (b PrivateRank0Builder) FileSystem(fsys fs.FileSystem) PrivateRank0Builder {
	b.fs = fsys
	return b
}

// Build constructs the Index.
func (b PrivateRank0Builder) Build() (*Index, error) {
	return New(b.options(termtable.NewPrivateRank0Treatment())...)
}

// MustBuild constructs the Index, panicking on error.
func (b PrivateRank0Builder) MustBuild() *Index {
	idx, err := b.Build()
	if err != nil {
		panic(err)
	}
	return idx
}

func (b PrivateRank0Builder) options(t termtable.Treatment) []Option {
	opts := []Option{WithTreatment(t)}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	if b.metrics != nil {
		opts = append(opts, WithMetricsCollector(b.metrics))
	}
	if b.controller != nil {
		opts = append(opts, WithResourceController(b.controller))
	}
	if b.fs != nil {
		opts = append(opts, WithFileSystem(b.fs))
	}
	return opts
}

// =============================================================================
// PrivateSharedRank0 Builder (Immutable)
// =============================================================================

// PrivateSharedRank0 creates a builder for an Index whose default Treatment
// gives every term one private rank-0 row plus shared rank-0 rows drawn
// from a fixed pool, trading some row-hit precision for less memory spent
// on rare terms.
func PrivateSharedRank0() PrivateSharedRank0Builder {
	return PrivateSharedRank0Builder{density: 0.1, snr: 100}
}

// PrivateSharedRank0Builder is an immutable fluent builder for an Index
// backed by PrivateSharedRank0Treatment.
type PrivateSharedRank0Builder struct {
	density    float64
	snr        float64
	logger     *Logger
	metrics    MetricsCollector
	controller *resource.Controller
	fs         fs.FileSystem
}

// Density sets the base row density a shared row is allowed to reach for
// the least-frequent band before the treatment must add another shared row.
func (b PrivateSharedRank0Builder) Density(d float64) PrivateSharedRank0Builder {
	b.density = d
	return b
}

// SNR sets the signal-to-noise ratio snr (greater than 1); a term gets
// enough rows that density^k <= 1/snr.
func (b PrivateSharedRank0Builder) SNR(snr float64) PrivateSharedRank0Builder {
	b.snr = snr
	return b
}

// Logger sets the structured logger for operation tracing.
func (b PrivateSharedRank0Builder) Logger(l *Logger) PrivateSharedRank0Builder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b PrivateSharedRank0Builder) Metrics(mc MetricsCollector) PrivateSharedRank0Builder {
	b.metrics = mc
	return b
}

// ResourceController bounds Recycler concurrency. Backup writes are not
// I/O-throttled.
func (b PrivateSharedRank0Builder) ResourceController(c *resource.Controller) PrivateSharedRank0Builder {
	b.controller = c
	return b
}

// FileSystem configures where Slice backups are read from and written to.
func (b PrivateSharedRank0Builder) FileSystem(fsys fs.FileSystem) PrivateSharedRank0Builder {
	b.fs = fsys
	return b
}

// Build constructs the Index.
func (b PrivateSharedRank0Builder) Build() (*Index, error) {
	t := termtable.NewPrivateSharedRank0Treatment(b.density, b.snr)
	return New(b.options(t)...)
}

// MustBuild constructs the Index, panicking on error.
func (b PrivateSharedRank0Builder) MustBuild() *Index {
	idx, err := b.Build()
	if err != nil {
		panic(err)
	}
	return idx
}

func (b PrivateSharedRank0Builder) options(t termtable.Treatment) []Option {
	opts := []Option{WithTreatment(t)}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	if b.metrics != nil {
		opts = append(opts, WithMetricsCollector(b.metrics))
	}
	if b.controller != nil {
		opts = append(opts, WithResourceController(b.controller))
	}
	if b.fs != nil {
		opts = append(opts, WithFileSystem(b.fs))
	}
	return opts
}

// =============================================================================
// PrivateSharedRank0And3 Builder (Immutable)
// =============================================================================

// PrivateSharedRank0And3 creates a builder for an Index whose default
// Treatment moves frequent terms' shared rows to rank 3, where each row
// bit covers 8 documents, cutting the number of row words a query for a
// common term must read.
func PrivateSharedRank0And3() PrivateSharedRank0And3Builder {
	return PrivateSharedRank0And3Builder{density: 0.1, snr: 100}
}

// PrivateSharedRank0And3Builder is an immutable fluent builder for an Index
// backed by PrivateSharedRank0And3Treatment.
type PrivateSharedRank0And3Builder struct {
	density    float64
	snr        float64
	logger     *Logger
	metrics    MetricsCollector
	controller *resource.Controller
	fs         fs.FileSystem
}

// Density sets the base row density a shared row is allowed to reach for
// the least-frequent band.
func (b PrivateSharedRank0And3Builder) Density(d float64) PrivateSharedRank0And3Builder {
	b.density = d
	return b
}

// SNR sets the signal-to-noise ratio snr (greater than 1); a term gets
// enough rows that density^k <= 1/snr.
func (b PrivateSharedRank0And3Builder) SNR(snr float64) PrivateSharedRank0And3Builder {
	b.snr = snr
	return b
}

// Logger sets the structured logger for operation tracing.
func (b PrivateSharedRank0And3Builder) Logger(l *Logger) PrivateSharedRank0And3Builder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b PrivateSharedRank0And3Builder) Metrics(mc MetricsCollector) PrivateSharedRank0And3Builder {
	b.metrics = mc
	return b
}

// ResourceController bounds Recycler concurrency. Backup writes are not
// I/O-throttled.
func (b PrivateSharedRank0And3Builder) ResourceController(c *resource.Controller) PrivateSharedRank0And3Builder {
	b.controller = c
	return b
}

// FileSystem configures where Slice backups are read from and written to.
func (b PrivateSharedRank0And3Builder) FileSystem(fsys fs.FileSystem) PrivateSharedRank0And3Builder {
	b.fs = fsys
	return b
}

// Build constructs the Index.
func (b PrivateSharedRank0And3Builder) Build() (*Index, error) {
	t := termtable.NewPrivateSharedRank0And3Treatment(b.density, b.snr)
	return New(b.options(t)...)
}

// MustBuild constructs the Index, panicking on error.
func (b PrivateSharedRank0And3Builder) MustBuild() *Index {
	idx, err := b.Build()
	if err != nil {
		panic(err)
	}
	return idx
}

func (b PrivateSharedRank0And3Builder) options(t termtable.Treatment) []Option {
	opts := []Option{WithTreatment(t)}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	if b.metrics != nil {
		opts = append(opts, WithMetricsCollector(b.metrics))
	}
	if b.controller != nil {
		opts = append(opts, WithResourceController(b.controller))
	}
	if b.fs != nil {
		opts = append(opts, WithFileSystem(b.fs))
	}
	return opts
}
