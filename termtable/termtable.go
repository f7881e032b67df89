package termtable

import (
	"sync"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/row"
	"github.com/hausdorff/bitfunnel/term"
)

// defaultSharedPoolSize bounds how many distinct rows a rank's shared (or,
// by default, private) row pool can have. A term's rows are selected by
// hashing term.Key() into the relevant pool, so a larger pool means fewer
// unrelated terms collide on the same row.
const defaultSharedPoolSize core.RowIndex = 1 << 12

// saltFor mixes a fixed, rank-specific constant into the hash used to pick
// a term's shared rows at that rank, so two ranks with the same pool size
// don't pick the same row index for the same term. The constants are fixed
// at compile time, not process-randomized, because the same term must map
// to the same row across runs of the same configuration.
func saltFor(rank core.Rank) uint64 {
	const base = 0x9E3779B97F4A7C15
	return base*uint64(rank+1) ^ 0xC2B2AE3D27D4EB4F
}

// privateSaltFor is saltFor's counterpart for the private-row pool, mixed
// with a different constant so a term's private and shared row indices at
// the same rank are drawn from independent hashes, not the same one.
func privateSaltFor(rank core.Rank) uint64 {
	const base = 0xD6E8FEB86659FD93
	return base*uint64(rank+1) ^ 0xA24BAED4963EE407
}

// TermTable assigns each term its rows and remembers the assignment, so
// GetRows is idempotent: calling it twice for the same Term returns the
// same Sequence.
type TermTable struct {
	mu              sync.Mutex
	treatment       Treatment
	poolSize        map[core.Rank]core.RowIndex
	privatePoolSize map[core.Rank]core.RowIndex
	reservedNext    map[core.Rank]core.RowIndex
	assigned        map[uint64]row.Sequence
	logger          fault.ErrorLogger
}

// New builds a TermTable backed by treatment. Row assignments are produced
// lazily, on first GetRows call for each distinct term.
func New(treatment Treatment) *TermTable {
	return &TermTable{
		treatment:       treatment,
		poolSize:        map[core.Rank]core.RowIndex{0: defaultSharedPoolSize, 3: defaultSharedPoolSize},
		privatePoolSize: map[core.Rank]core.RowIndex{0: defaultSharedPoolSize, 3: defaultSharedPoolSize},
		reservedNext:    map[core.Rank]core.RowIndex{},
		assigned:        map[uint64]row.Sequence{},
	}
}

// WithLogger stores l on the table. ReadTermTableFrom does not log through
// it: an unknown treatment id at decode time goes to fault.Fatal with a nil
// logger.
func (tt *TermTable) WithLogger(l fault.ErrorLogger) *TermTable {
	tt.logger = l
	return tt
}

// Treatment returns the Treatment this table was built with.
func (tt *TermTable) Treatment() Treatment {
	return tt.treatment
}

// ReservePrivate claims a private row index at rank without attaching it
// to any term, so a caller (the Shard, for its document-active row) can
// hold a row no term's own private-row assignment will ever collide with.
// A term's private rows are hashed into [0, privatePoolSize(rank)); a
// reservation is handed out starting at privatePoolSize(rank) and counting
// up, so the two ranges can never overlap regardless of call order.
func (tt *TermTable) ReservePrivate(rank core.Rank) core.RowIndex {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	pool := tt.privatePoolSizeLocked(rank)
	idx := pool + tt.reservedNext[rank]
	tt.reservedNext[rank]++
	return idx
}

// privatePoolSizeLocked returns rank's private-row pool size, lazily
// defaulting and caching it if this is the first request at rank. Callers
// must hold tt.mu.
func (tt *TermTable) privatePoolSizeLocked(rank core.Rank) core.RowIndex {
	pool := tt.privatePoolSize[rank]
	if pool == 0 {
		pool = defaultSharedPoolSize
		tt.privatePoolSize[rank] = pool
	}
	return pool
}

// GetRows returns the rows t is indexed under, sorted for matching
// (descending rank, ascending row index). The first call for a given term
// allocates its rows from the treatment's RowConfiguration; every later
// call for the same term.Key() returns the cached assignment. Both private
// and shared row indices are hashed from term.Key() into their rank's pool,
// so two TermTable instances built from the same configuration assign t
// the same rows regardless of what order each one was queried in.
func (tt *TermTable) GetRows(t term.Term) row.Sequence {
	key := t.Key()

	tt.mu.Lock()
	defer tt.mu.Unlock()

	if rows, ok := tt.assigned[key]; ok {
		return append(row.Sequence{}, rows...)
	}

	var rows row.Sequence
	for _, a := range tt.treatment.RowConfiguration(t) {
		privatePool := tt.privatePoolSizeLocked(a.Rank)
		for i := 0; i < a.Private; i++ {
			h := key ^ privateSaltFor(a.Rank) ^ (uint64(i) * 0x9E3779B1)
			idx := core.RowIndex(h % uint64(privatePool))
			rows = append(rows, row.RowId{Rank: a.Rank, Index: idx})
		}
		pool := tt.poolSize[a.Rank]
		if pool == 0 {
			pool = defaultSharedPoolSize
			tt.poolSize[a.Rank] = pool
		}
		for i := 0; i < a.Shared; i++ {
			h := key ^ saltFor(a.Rank) ^ (uint64(i) * 0x100000001b3)
			idx := core.RowIndex(h % uint64(pool))
			rows = append(rows, row.RowId{Rank: a.Rank, Index: idx})
		}
	}

	rows.SortForMatch()
	tt.assigned[key] = rows
	return append(row.Sequence{}, rows...)
}
