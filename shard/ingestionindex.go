package shard

import (
	"sync"
	"sync/atomic"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
)

// nextDocId hands out process-unique DocIds when a caller doesn't supply
// one, so every IngestionIndex in a process draws from a disjoint range.
var nextDocId atomic.Uint64

// IngestionIndex owns the shard set a corpus is partitioned across. It is
// the shardResolver every DocumentHandle carries a reference to, so a
// handle can find its Shard again without holding a direct pointer into
// one (shards never move once created, but the indirection keeps the
// resolution path uniform with how a future multi-shard router would
// work).
type IngestionIndex struct {
	mu     sync.RWMutex
	shards []*Shard
	logger fault.ErrorLogger
}

// New creates an IngestionIndex with no shards. AddShard must be called at
// least once before Ingest.
func New(logger fault.ErrorLogger) *IngestionIndex {
	return &IngestionIndex{logger: logger}
}

// AddShard registers a new Shard and returns its ShardId.
func (idx *IngestionIndex) AddShard(s *Shard) core.ShardId {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	id := core.ShardId(len(idx.shards))
	idx.shards = append(idx.shards, s)
	return id
}

func (idx *IngestionIndex) shardAt(id core.ShardId) *Shard {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if int(id) >= len(idx.shards) {
		fault.Fatal(idx.logger, "ingestionindex: shard id out of range", "id", id)
	}
	return idx.shards[id]
}

// ShardCount returns the number of shards registered so far.
func (idx *IngestionIndex) ShardCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.shards)
}

// Shard returns the Shard at id, for callers (the Matcher, the Recycler)
// that need to walk a specific shard's Slices directly.
func (idx *IngestionIndex) Shard(id core.ShardId) *Shard {
	return idx.shardAt(id)
}

// DocumentHandleAt builds a handle for (shardID, sliceIdx, doc) without
// claiming a new slot, for callers like the Matcher that discover
// already-ingested documents rather than creating them.
func (idx *IngestionIndex) DocumentHandleAt(shardID core.ShardId, sliceIdx int, doc core.DocIndex) DocumentHandle {
	return newDocumentHandle(shardID, sliceIdx, doc, idx)
}

// Ingest claims a fresh document slot in shardID and returns a handle to
// it. If id is core.InvalidDocId, a process-unique id is assigned.
func (idx *IngestionIndex) Ingest(shardID core.ShardId, id core.DocId) (DocumentHandle, error) {
	s := idx.shardAt(shardID)
	if id == core.InvalidDocId {
		id = core.DocId(nextDocId.Add(1))
	}
	return s.Claim(shardID, idx, id)
}
