package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestEnqueueDequeueOrder(t *testing.T) {
	q := NewBlockingQueue[int](4)
	for i := 0; i < 4; i++ {
		require.True(t, q.TryEnqueue(i))
	}
	for i := 0; i < 4; i++ {
		v, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestTryEnqueueBlocksAtCapacity(t *testing.T) {
	q := NewBlockingQueue[int](1)
	require.True(t, q.TryEnqueue(1))

	done := make(chan struct{})
	go func() {
		q.TryEnqueue(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("TryEnqueue should have blocked at capacity")
	case <-time.After(20 * time.Millisecond):
	}

	_, _ = q.TryDequeue()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TryEnqueue should have unblocked once space freed")
	}
}

func TestShutdownDrainsThenReturns(t *testing.T) {
	q := NewBlockingQueue[int](8)
	for i := 0; i < 4; i++ {
		require.True(t, q.TryEnqueue(i))
	}

	var g errgroup.Group
	drained := 0
	g.Go(func() error {
		for {
			_, ok := q.TryDequeue()
			if !ok {
				return nil
			}
			drained++
		}
	})

	q.Shutdown()
	require.NoError(t, g.Wait())
	assert.Equal(t, 4, drained)
	assert.False(t, q.TryEnqueue(99))
}

func TestConcurrentProducersConsumers(t *testing.T) {
	q := NewBlockingQueue[int](4)
	var g errgroup.Group

	for p := 0; p < 3; p++ {
		g.Go(func() error {
			for i := 0; i < 20; i++ {
				q.TryEnqueue(i)
			}
			return nil
		})
	}

	total := 0
	done := make(chan struct{})
	go func() {
		for i := 0; i < 60; i++ {
			if _, ok := q.TryDequeue(); ok {
				total++
			}
		}
		close(done)
	}()

	require.NoError(t, g.Wait())
	<-done
	assert.Equal(t, 60, total)
}
