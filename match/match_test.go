package match

import (
	"sort"
	"testing"

	"github.com/hausdorff/bitfunnel/compile"
	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/plan"
	"github.com/hausdorff/bitfunnel/rewrite"
	"github.com/hausdorff/bitfunnel/row"
	"github.com/hausdorff/bitfunnel/shard"
	"github.com/hausdorff/bitfunnel/slice"
	"github.com/hausdorff/bitfunnel/term"
	"github.com/hausdorff/bitfunnel/termtable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// primeFactors returns d's distinct prime factors, for d in [0, 16). 0
// and 1 have none.
func primeFactors(d int) []int {
	if d < 2 {
		return nil
	}
	var factors []int
	n := d
	for _, p := range []int{2, 3, 5, 7, 11, 13} {
		if n%p == 0 {
			factors = append(factors, p)
			for n%p == 0 {
				n /= p
			}
		}
	}
	return factors
}

func compileQuery(t *testing.T, tt *termtable.TermTable, a *arena.Arena, query *plan.TermMatchNode) *plan.CompileNode {
	t.Helper()
	rowPlan := plan.BuildRowPlan(query, tt, a)
	rewritten := rewrite.Rewrite(rowPlan, 16, 4, a)
	c := compile.NewRankDownCompiler(a)
	c.Compile(rewritten)
	return c.CreateTree(core.Rank(0))
}

// TestMatcherPrimeFactorsEndToEnd ingests one document per integer in
// [0, 16), posts each one under a term per prime factor, and checks that
// Term("2") AND Term("3") matches exactly the documents divisible by
// both: {6, 12}.
func TestMatcherPrimeFactorsEndToEnd(t *testing.T) {
	tt := termtable.New(termtable.NewPrivateRank0Treatment())
	sh := shard.NewShard(tt, slice.Config{
		Capacity:      16,
		FixedBlobSize: 0,
		BlobCapacity:  0,
		RowCounts:     map[core.Rank]core.RowIndex{0: 16},
	}, nil)
	idx := shard.New(nil)
	shardID := idx.AddShard(sh)

	for d := 0; d < 16; d++ {
		h, err := idx.Ingest(shardID, core.InvalidDocId)
		require.NoError(t, err)
		for _, p := range primeFactors(d) {
			h.AddPosting(term.NewTerm(primeTermText(p), 1, 0))
		}
		h.Activate()
	}

	a, err := arena.New(1 << 16)
	require.NoError(t, err)

	query := plan.NewTermAnd(a,
		plan.NewTermUnigram(a, term.NewTerm(primeTermText(2), 1, 0)),
		plan.NewTermUnigram(a, term.NewTerm(primeTermText(3), 1, 0)),
	)
	program := compileQuery(t, tt, a, query)

	m := NewMatcher()
	got := m.Run(program, idx, shardID)

	var docs []int
	for _, h := range got {
		docs = append(docs, int(h.DocIndex()))
	}
	sort.Ints(docs)
	assert.Equal(t, []int{6, 12}, docs)
}

func primeTermText(p int) string {
	switch p {
	case 2:
		return "2"
	case 3:
		return "3"
	case 5:
		return "5"
	case 7:
		return "7"
	case 11:
		return "11"
	default:
		return "13"
	}
}

// TestMatcherSkipsDocumentsNotYetActivated checks the single-publication-
// point rule (spec.md §5): a document whose postings are set but whose
// document-active bit never got set must not be reported, even though its
// row bits alone would satisfy the query.
func TestMatcherSkipsDocumentsNotYetActivated(t *testing.T) {
	tt := termtable.New(termtable.NewPrivateRank0Treatment())
	sh := shard.NewShard(tt, slice.Config{
		Capacity:  4,
		RowCounts: map[core.Rank]core.RowIndex{0: 4},
	}, nil)
	idx := shard.New(nil)
	shardID := idx.AddShard(sh)

	h, err := idx.Ingest(shardID, core.InvalidDocId)
	require.NoError(t, err)
	h.AddPosting(term.NewTerm("hello", 1, 0))
	// Deliberately never call h.Activate().

	a, err := arena.New(4096)
	require.NoError(t, err)
	query := plan.NewTermUnigram(a, term.NewTerm("hello", 1, 0))
	program := compileQuery(t, tt, a, query)

	m := NewMatcher()
	got := m.Run(program, idx, shardID)
	assert.Empty(t, got)
}

func TestEvalNodeHandlesLoadRowAndAndRowJzDirectly(t *testing.T) {
	a, err := arena.New(4096)
	require.NoError(t, err)

	sl, err := slice.New(slice.Config{Capacity: 64, RowCounts: map[core.Rank]core.RowIndex{0: 2}})
	require.NoError(t, err)
	slice.SetBit(sl.Buffer(), mustRowTable(t, sl, 0), 0, 0)

	load := plan.NewLoadRow(a, plan.AbstractRow{Row: row.RowId{Rank: 0, Index: 0}})
	report := plan.NewCompileReport(a, nil)
	andJz := plan.NewAndRowJz(a, plan.AbstractRow{Row: row.RowId{Rank: 0, Index: 0}}, report)

	assert.True(t, evalNode(load, sl, 0))
	assert.False(t, evalNode(load, sl, 1))
	assert.True(t, evalNode(andJz, sl, 0))
	assert.False(t, evalNode(andJz, sl, 1))
}

// TestMatcherNotOverNonZeroRankRowReadsConsumedRank checks that a NOTted
// row backed by a rank above 0 still gets its bit read from that rank's
// table, not rank 0 — the rewriter zeroes the row's own Rank field on a
// Not (rewrite.rewriteNotRow), so the matcher has to fall back to
// ConsumedRank to find where the row actually lives.
func TestMatcherNotOverNonZeroRankRowReadsConsumedRank(t *testing.T) {
	tt := termtable.New(termtable.NewPrivateRank0Treatment())
	sh := shard.NewShard(tt, slice.Config{
		Capacity:  16,
		RowCounts: map[core.Rank]core.RowIndex{3: 1},
	}, nil)
	idx := shard.New(nil)
	shardID := idx.AddShard(sh)

	for d := 0; d < 16; d++ {
		h, err := idx.Ingest(shardID, core.InvalidDocId)
		require.NoError(t, err)
		h.Activate()
	}

	sl := sh.Slices()[0]
	rt3 := mustRowTable(t, sl, 3)
	// Rank 3 compresses 8 documents per bit: this sets the bit covering
	// documents 0-7, leaving the one covering 8-15 clear.
	slice.SetBit(sl.Buffer(), rt3, 0, 0)

	a, err := arena.New(4096)
	require.NoError(t, err)
	input := plan.NewNot(a, plan.NewRow(a, row.RowId{Index: 0, Rank: 3}))
	rewritten := rewrite.Rewrite(input, 4, 0, a)
	c := compile.NewRankDownCompiler(a)
	c.Compile(rewritten)
	program := c.CreateTree(core.Rank(0))

	m := NewMatcher()
	got := m.Run(program, idx, shardID)

	var docs []int
	for _, h := range got {
		docs = append(docs, int(h.DocIndex()))
	}
	sort.Ints(docs)
	// Had the matcher read rank 0 (where the rewriter zeroed Row.Rank)
	// instead of rank 3 (ConsumedRank), it would find every bit unset and
	// match all 16 documents instead of just the 8 outside the set group.
	assert.Equal(t, []int{8, 9, 10, 11, 12, 13, 14, 15}, docs)
}

func mustRowTable(t *testing.T, sl *slice.Slice, rank core.Rank) slice.RowTable {
	t.Helper()
	rt, ok := sl.RowTable(rank)
	require.True(t, ok)
	return rt
}
