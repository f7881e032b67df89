package bitfunnel_test

import (
	"context"
	"testing"

	"github.com/hausdorff/bitfunnel"
	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/plan"
	"github.com/hausdorff/bitfunnel/slice"
	"github.com/hausdorff/bitfunnel/term"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) (*bitfunnel.Index, core.ShardId) {
	idx, err := bitfunnel.PrivateRank0().Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	shardID := idx.AddShard(slice.Config{
		Capacity: 256,
	}, nil)
	return idx, shardID
}

func ingestDoc(t *testing.T, idx *bitfunnel.Index, shardID core.ShardId, words ...string) {
	ctx := context.Background()
	h, err := idx.Ingest(ctx, shardID, core.InvalidDocId)
	require.NoError(t, err)
	for _, w := range words {
		h.AddPosting(term.NewTerm(w, 1, 0))
	}
	idx.Activate(ctx, h)
}

func TestIndexIngestAndQueryUnigram(t *testing.T) {
	idx, shardID := newTestIndex(t)
	ctx := context.Background()

	ingestDoc(t, idx, shardID, "hello", "world")
	ingestDoc(t, idx, shardID, "goodbye", "world")

	handles, err := idx.Query(ctx, shardID, func(a *arena.Arena) *plan.TermMatchNode {
		return bitfunnel.Unigram(a, term.NewTerm("hello", 1, 0))
	}, 64, 16)
	require.NoError(t, err)
	require.Len(t, handles, 1)
}

func TestIndexQueryAndOrNot(t *testing.T) {
	idx, shardID := newTestIndex(t)
	ctx := context.Background()

	ingestDoc(t, idx, shardID, "hello", "world")
	ingestDoc(t, idx, shardID, "hello", "there")
	ingestDoc(t, idx, shardID, "goodbye", "world")

	handles, err := idx.Query(ctx, shardID, func(a *arena.Arena) *plan.TermMatchNode {
		return bitfunnel.And(a,
			bitfunnel.Unigram(a, term.NewTerm("hello", 1, 0)),
			bitfunnel.Not(a, bitfunnel.Unigram(a, term.NewTerm("world", 1, 0))),
		)
	}, 64, 16)
	require.NoError(t, err)
	require.Len(t, handles, 1)

	handles, err = idx.Query(ctx, shardID, func(a *arena.Arena) *plan.TermMatchNode {
		return bitfunnel.Or(a,
			bitfunnel.Unigram(a, term.NewTerm("hello", 1, 0)),
			bitfunnel.Unigram(a, term.NewTerm("goodbye", 1, 0)),
		)
	}, 64, 16)
	require.NoError(t, err)
	require.Len(t, handles, 3)
}

func TestIndexQueryFact(t *testing.T) {
	idx, shardID := newTestIndex(t)
	ctx := context.Background()

	h, err := idx.Ingest(ctx, shardID, core.InvalidDocId)
	require.NoError(t, err)
	h.AssertFact(7)
	idx.Activate(ctx, h)

	h2, err := idx.Ingest(ctx, shardID, core.InvalidDocId)
	require.NoError(t, err)
	idx.Activate(ctx, h2)

	handles, err := idx.Query(ctx, shardID, func(a *arena.Arena) *plan.TermMatchNode {
		return bitfunnel.Fact(a, 7)
	}, 64, 16)
	require.NoError(t, err)
	require.Len(t, handles, 1)
}

func TestIndexExpireHidesDocument(t *testing.T) {
	idx, shardID := newTestIndex(t)
	ctx := context.Background()

	h, err := idx.Ingest(ctx, shardID, core.InvalidDocId)
	require.NoError(t, err)
	h.AddPosting(term.NewTerm("hello", 1, 0))
	idx.Activate(ctx, h)

	handles, err := idx.Query(ctx, shardID, func(a *arena.Arena) *plan.TermMatchNode {
		return bitfunnel.Unigram(a, term.NewTerm("hello", 1, 0))
	}, 64, 16)
	require.NoError(t, err)
	require.Len(t, handles, 1)

	idx.Expire(ctx, h)

	handles, err = idx.Query(ctx, shardID, func(a *arena.Arena) *plan.TermMatchNode {
		return bitfunnel.Unigram(a, term.NewTerm("hello", 1, 0))
	}, 64, 16)
	require.NoError(t, err)
	require.Empty(t, handles)
}

func TestIndexUnknownShardFatal(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.Panics(t, func() {
		_, _ = idx.Ingest(ctx, core.ShardId(99), core.InvalidDocId)
	})
}

func TestIndexCloseIdempotent(t *testing.T) {
	idx, _ := newTestIndex(t)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
}
