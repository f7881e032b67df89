// Package recycle runs the single background goroutine that is the
// exclusive destroyer of Slices once every document they hold has expired
// and no query still references them (spec §4.G).
package recycle

import (
	"context"

	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/ingest"
	"github.com/hausdorff/bitfunnel/resource"
	"github.com/hausdorff/bitfunnel/slice"
)

// Backup is called on a Slice before it's freed, so its contents can be
// persisted first. A nil Backup skips persistence entirely.
type Backup func(*slice.Slice) error

// Recycler drains a queue of Slices whose documents have all expired,
// backs each one up (if configured), then releases its Buffer. It is the
// only goroutine that ever calls Slice.Close.
type Recycler struct {
	queue      *ingest.BlockingQueue[*slice.Slice]
	backup     Backup
	controller *resource.Controller
	logger     fault.ErrorLogger
	done       chan struct{}
}

// New starts a Recycler's background goroutine immediately. backup may be
// nil. controller may be nil, in which case recycling proceeds unbounded.
func New(queueCapacity int, backup Backup, controller *resource.Controller, logger fault.ErrorLogger) *Recycler {
	r := &Recycler{
		queue:      ingest.NewBlockingQueue[*slice.Slice](queueCapacity),
		backup:     backup,
		controller: controller,
		logger:     logger,
		done:       make(chan struct{}),
	}
	go r.run()
	return r
}

// Enqueue hands a Slice to the Recycler. Callers must only do this once a
// Slice's Recyclable() is true and its RefCount() has reached zero; the
// Recycler itself does not re-check either condition.
func (r *Recycler) Enqueue(s *slice.Slice) bool {
	return r.queue.TryEnqueue(s)
}

func (r *Recycler) run() {
	defer close(r.done)
	for {
		s, ok := r.queue.TryDequeue()
		if !ok {
			return
		}
		r.recycle(s)
	}
}

func (r *Recycler) recycle(s *slice.Slice) {
	ctx := context.Background()
	if r.controller != nil {
		if err := r.controller.AcquireBackground(ctx); err != nil {
			fault.Fatal(r.logger, "recycle: acquire background slot", "err", err)
		}
		defer r.controller.ReleaseBackground()
	}

	if r.backup != nil {
		if err := r.backup(s); err != nil {
			if r.logger != nil {
				r.logger.Error("recycle: backup failed", "err", err)
			}
		}
	}

	if err := s.Close(); err != nil {
		if r.logger != nil {
			r.logger.Error("recycle: close slice buffer failed", "err", err)
		}
	}
}

// Shutdown stops accepting new Slices and blocks until the goroutine has
// drained and exited.
func (r *Recycler) Shutdown() {
	r.queue.Shutdown()
	<-r.done
}
