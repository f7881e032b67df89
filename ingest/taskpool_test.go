package ingest

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/hausdorff/bitfunnel/task"
	"github.com/stretchr/testify/assert"
)

type countingTask struct {
	counter *atomic.Int64
}

func (t countingTask) Type() task.Type { return task.Asynchronous }
func (t countingTask) Execute()        { t.counter.Add(1) }

func TestTaskPoolRunsSubmittedTasks(t *testing.T) {
	var counter atomic.Int64
	p := NewTaskPool(4, 8)

	for i := 0; i < 50; i++ {
		assert.True(t, p.Submit(countingTask{counter: &counter}))
	}

	p.Shutdown()
	assert.EqualValues(t, 50, counter.Load())
}

func TestTaskPoolRejectsSubmitAfterShutdown(t *testing.T) {
	p := NewTaskPool(2, 4)
	p.Shutdown()
	assert.False(t, p.Submit(task.ExitTask{}))
}

func TestTaskPoolWorkerStopsOnExitTask(t *testing.T) {
	p := NewTaskPool(1, 4)
	assert.True(t, p.Submit(task.ExitTask{}))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after ExitTask")
	}
}
