package ingest

import (
	"sync"

	"github.com/hausdorff/bitfunnel/task"
)

// TaskPool runs a fixed number of worker goroutines draining one
// BlockingQueue[task.Task]. Grounded on the teacher's channel-based
// WorkerPool (engine/worker_pool.go: N goroutines, a Submit/Close pair,
// drain-on-close), rebuilt atop BlockingQueue so Shutdown's drain-then-
// return contract holds exactly, including for TryEnqueue callers that
// are themselves blocked waiting for queue capacity to free up.
type TaskPool struct {
	queue   *BlockingQueue[task.Task]
	wg      sync.WaitGroup
	workers int
}

// NewTaskPool starts workers goroutines, each looping TryDequeue/Execute
// against a capacity-sized BlockingQueue.
func NewTaskPool(workers, capacity int) *TaskPool {
	p := &TaskPool{
		queue:   NewBlockingQueue[task.Task](capacity),
		workers: workers,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *TaskPool) run() {
	defer p.wg.Done()
	for {
		t, ok := p.queue.TryDequeue()
		if !ok {
			return
		}
		t.Execute()
		if t.Type() == task.Exit {
			return
		}
	}
}

// Submit enqueues t, blocking if every worker is busy and the queue is at
// capacity. Returns false if Shutdown has already been called.
func (p *TaskPool) Submit(t task.Task) bool {
	return p.queue.TryEnqueue(t)
}

// Shutdown stops accepting new work, lets every already-queued task run,
// and blocks until all workers have returned.
func (p *TaskPool) Shutdown() {
	p.queue.Shutdown()
	p.wg.Wait()
}
