package bitfunnel_test

import (
	"context"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/hausdorff/bitfunnel"
	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fs"
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/plan"
	"github.com/hausdorff/bitfunnel/slice"
	"github.com/hausdorff/bitfunnel/term"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestRecycleAfterFullExpiry verifies that once every document claimed
// from a Slice has expired, the Slice is backed up to the configured
// FileSystem and removed from the Shard's visible list.
func TestRecycleAfterFullExpiry(t *testing.T) {
	tmpDir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	idx, err := bitfunnel.PrivateRank0().
		FileSystem(fs.Default).
		Build()
	require.NoError(t, err)
	defer idx.Close()

	shardID := idx.AddShard(slice.Config{Capacity: 64}, nil)

	ctx := context.Background()
	for i := 0; i < 64; i++ {
		h, err := idx.Ingest(ctx, shardID, core.InvalidDocId)
		require.NoError(t, err)
		h.AddPosting(term.NewTerm("hello", 1, 0))
		idx.Activate(ctx, h)
		idx.Expire(ctx, h)
	}

	require.Eventually(t, func() bool {
		entries, _ := os.ReadDir("slices")
		return len(entries) > 0
	}, 2*time.Second, 10*time.Millisecond, "expected a backup file under slices/")
}

// TestCloseIdempotent verifies that calling Close multiple times is safe
// and does not leak the Recycler's background goroutine.
func TestCloseIdempotent(t *testing.T) {
	idx, err := bitfunnel.PrivateRank0().Build()
	require.NoError(t, err)

	shardID := idx.AddShard(slice.Config{Capacity: 64}, nil)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		h, err := idx.Ingest(ctx, shardID, core.InvalidDocId)
		require.NoError(t, err)
		idx.Activate(ctx, h)
	}

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
}

// TestCloseDoesNotLeakGoroutines is a coarse check that Close's Shutdown
// call actually drains the Recycler goroutine it starts.
func TestCloseDoesNotLeakGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()

	idx, err := bitfunnel.PrivateRank0().Build()
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+1
	}, time.Second, 10*time.Millisecond)
}

// TestConcurrentIngestActivateQuery runs many goroutines ingesting and
// activating documents into the same Shard while a separate goroutine
// repeatedly queries it, the end-to-end scenario spec.md §8 calls out as a
// query running concurrently with ingestion. The activated documents share
// the 64-document words of the shared document-active row (spec §5), so a
// lost update there would show up as the final count coming up short.
func TestConcurrentIngestActivateQuery(t *testing.T) {
	idx, err := bitfunnel.PrivateRank0().Build()
	require.NoError(t, err)
	defer idx.Close()

	shardID := idx.AddShard(slice.Config{Capacity: 256}, nil)
	ctx := context.Background()

	const goroutines = 8
	const perGoroutine = 32
	const total = goroutines * perGoroutine

	queryHello := func(a *arena.Arena) *plan.TermMatchNode {
		return bitfunnel.Unigram(a, term.NewTerm("hello", 1, 0))
	}

	var g errgroup.Group
	for w := 0; w < goroutines; w++ {
		g.Go(func() error {
			for i := 0; i < perGoroutine; i++ {
				h, err := idx.Ingest(ctx, shardID, core.InvalidDocId)
				if err != nil {
					return err
				}
				h.AddPosting(term.NewTerm("hello", 1, 0))
				idx.Activate(ctx, h)
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < total; i++ {
			if _, err := idx.Query(ctx, shardID, queryHello, 64, 16); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())

	handles, err := idx.Query(ctx, shardID, queryHello, 64, 16)
	require.NoError(t, err)
	require.Len(t, handles, total)
}
