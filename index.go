package bitfunnel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hausdorff/bitfunnel/backup"
	"github.com/hausdorff/bitfunnel/compile"
	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/match"
	"github.com/hausdorff/bitfunnel/plan"
	"github.com/hausdorff/bitfunnel/recycle"
	"github.com/hausdorff/bitfunnel/rewrite"
	"github.com/hausdorff/bitfunnel/shard"
	"github.com/hausdorff/bitfunnel/slice"
	"github.com/hausdorff/bitfunnel/termtable"
)

// recyclerQueueCapacity bounds how many Slices can be waiting for the
// Recycler at once before Expire's maybeRecycle call blocks.
const recyclerQueueCapacity = 64

// Index is a signature-file full-text search engine: a set of Shards, each
// with its own TermTable and Slice list, plus the background Recycler
// that reclaims Slices once every document they hold has expired.
//
// An Index is safe for concurrent use.
//
// Index does not itself own an ingest.TaskPool: that primitive is the
// shape a REPL-style caller submits its own background Ingest/Query work
// to (see DESIGN.md), not something this package's own Ingest/Query/
// Expire/Activate calls route through internally, so embedding one here
// would start idle worker goroutines with nothing to submit to them.
type Index struct {
	mu        sync.Mutex
	closed    bool
	index     *shard.IngestionIndex
	recycler  *recycle.Recycler
	opts      options
	backupSeq atomic.Uint64
}

// New constructs an Index from the given Options. Most callers should
// prefer one of the treatment-specific builders (PrivateRank0,
// PrivateSharedRank0, PrivateSharedRank0And3) instead of calling New
// directly.
func New(optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)

	idx := &Index{
		index: shard.New(o.logger),
		opts:  o,
	}
	idx.recycler = recycle.New(recyclerQueueCapacity, idx.backupSlice, o.controller, o.logger)
	return idx, nil
}

// AddShard registers a new Shard built from treatment (or the Index's
// default Treatment, if treatment is nil) and returns its ShardId.
func (idx *Index) AddShard(cfg slice.Config, treatment termtable.Treatment) core.ShardId {
	if treatment == nil {
		treatment = idx.opts.treatment
	}
	tt := termtable.New(treatment).WithLogger(idx.opts.logger)
	cfg.Logger = idx.opts.logger
	sh := shard.NewShard(tt, cfg, idx.opts.logger)
	return idx.index.AddShard(sh)
}

// Ingest claims a fresh document slot in shardID and returns a handle to
// it. The caller must still call AddPosting/AssertFact and Activate before
// the document becomes visible to queries. If id is core.InvalidDocId, a
// process-unique id is assigned.
func (idx *Index) Ingest(ctx context.Context, shardID core.ShardId, id core.DocId) (shard.DocumentHandle, error) {
	start := time.Now()
	h, err := idx.index.Ingest(shardID, id)
	idx.opts.metricsCollector.RecordIngest(time.Since(start), err)
	idx.opts.logger.LogIngest(ctx, uint32(shardID), uint64(id), err)
	return h, err
}

// Query runs the query build constructs against shardID's Shard and
// returns a DocumentHandle for every document that satisfies it and is
// currently active.
//
// Query allocates a per-call internal/arena.Arena sized by
// WithArenaChunkSize (or arena.DefaultChunkSize), hands it to build so the
// caller can construct a plan.TermMatchNode query AST (via this package's
// And/Or/Not/Unigram/Phrase/Fact helpers) against it, then uses the same
// arena for the plan/rewrite/compile pipeline, freeing it before
// returning. If the Index was given a resource.Controller, the arena's
// chunk growth draws against its memory budget.
func (idx *Index) Query(ctx context.Context, shardID core.ShardId, build func(a *arena.Arena) *plan.TermMatchNode, targetRowCount, targetCrossProductTermCount int) ([]shard.DocumentHandle, error) {
	start := time.Now()

	chunkSize := idx.opts.arenaChunkSize
	if chunkSize <= 0 {
		chunkSize = arena.DefaultChunkSize
	}
	var arenaOpts []arena.Option
	if idx.opts.controller != nil {
		arenaOpts = append(arenaOpts, arena.WithMemoryAcquirer(idx.opts.controller))
	}
	a, err := arena.New(chunkSize, arenaOpts...)
	if err != nil {
		idx.opts.metricsCollector.RecordQuery(0, time.Since(start), err)
		idx.opts.logger.LogQuery(ctx, uint32(shardID), 0, err)
		return nil, fmt.Errorf("bitfunnel: new query arena: %w", err)
	}
	defer a.Free()

	sh := idx.index.Shard(shardID)
	tt := sh.TermTable()

	root := build(a)
	rowPlan := plan.BuildRowPlan(root, tt, a)
	rowPlan = rewrite.Rewrite(rowPlan, targetRowCount, targetCrossProductTermCount, a)
	idx.opts.logger.LogRewrite(ctx, uint32(shardID), targetRowCount, targetCrossProductTermCount)

	compileStart := time.Now()
	c := compile.NewRankDownCompiler(a)
	c.Compile(rowPlan)
	program := c.CreateTree(core.Rank(0))
	idx.opts.metricsCollector.RecordCompile(time.Since(compileStart))
	idx.opts.logger.LogCompile(ctx, uint32(shardID), 0)

	m := match.NewMatcher()
	out := m.Run(program, idx.index, shardID)

	idx.opts.metricsCollector.RecordQuery(len(out), time.Since(start), nil)
	idx.opts.logger.LogQuery(ctx, uint32(shardID), len(out), nil)
	return out, nil
}

// Expire clears h's document-active bit, then checks whether h's Slice has
// become recyclable (every document it ever held has now expired, and
// nothing still references it). If so, the Slice is handed to the
// Recycler, which backs it up (if a FileSystem-backed Backup applies) and
// frees its Buffer.
func (idx *Index) Expire(ctx context.Context, h shard.DocumentHandle) {
	h.Expire()
	idx.opts.logger.LogExpire(ctx, uint32(h.ShardId()), uint32(h.DocIndex()))
	idx.maybeRecycle(h.ShardId(), h.SliceIndex())
}

// Activate publishes h, making it visible to queries that read the
// document-active bit (under the Shard's mutex) after this call returns.
func (idx *Index) Activate(ctx context.Context, h shard.DocumentHandle) {
	h.Activate()
	idx.opts.logger.LogActivate(ctx, uint32(h.ShardId()), uint32(h.DocIndex()))
}

func (idx *Index) maybeRecycle(shardID core.ShardId, sliceIndex int) {
	sh := idx.index.Shard(shardID)
	sl, ok := sh.Recycle(sliceIndex)
	if !ok {
		return
	}
	idx.opts.logger.LogRecycle(context.Background(), uint32(shardID), sliceIndex)
	if !idx.recycler.Enqueue(sl) {
		fault.Fatal(idx.opts.logger, "bitfunnel: recycler rejected slice after shutdown")
	}
}

// backupSlice is the recycle.Backup the Recycler calls before freeing a
// Slice, persisting it through the Index's configured FileSystem.
func (idx *Index) backupSlice(s *slice.Slice) error {
	seq := idx.backupSeq.Add(1)
	start := time.Now()
	path := fmt.Sprintf("slices/slice-%06d.bfns", seq)
	err := backup.WriteSlice(idx.opts.fs, path, s)
	idx.opts.metricsCollector.RecordRecycle(time.Since(start), err)
	return err
}

// Close shuts down the Index's background Recycler, blocking until it has
// drained. It does not back up or free any Slice that is not already
// recyclable; callers that need every Slice persisted before Close should
// Expire every outstanding document first.
func (idx *Index) Close() error {
	idx.mu.Lock()
	if idx.closed {
		idx.mu.Unlock()
		return nil
	}
	idx.closed = true
	idx.mu.Unlock()

	idx.recycler.Shutdown()
	return nil
}
