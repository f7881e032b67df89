// Package match executes a compiled query program against a Shard's
// Slices, producing the set of documents it matches.
//
// Grounded on spec.md §4.K's driver description: iterate a Slice's
// documents in 64-document groups, evaluate the program, and AND-mask
// the result against the document-active row so a document whose
// postings are still mid-ingestion is never reported (spec.md §5's
// single-publication-point rule). See DESIGN.md for the per-document
// evaluation simplification this package makes in place of the
// register-file/word-replication machinery RankDown's name implies.
package match

import (
	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/plan"
	"github.com/hausdorff/bitfunnel/shard"
	"github.com/hausdorff/bitfunnel/slice"
)

// groupSize is the document-batch granularity spec.md §4.K names.
const groupSize = 64

// Matcher walks a compiled CompileNode program against a Shard's Slices.
// It carries no state of its own between calls to Run.
type Matcher struct{}

// NewMatcher returns a ready-to-use Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Run executes program against every Slice of the shard named by
// shardID, walking documents in groups of 64, and returns a
// DocumentHandle for every document that satisfies program and whose
// document-active bit is set.
func (m *Matcher) Run(program *plan.CompileNode, idx *shard.IngestionIndex, shardID core.ShardId) []shard.DocumentHandle {
	sh := idx.Shard(shardID)
	var out []shard.DocumentHandle

	for sliceIdx, sl := range sh.Slices() {
		if sl == nil {
			// Recycled: the Recycler already owns (or has freed) its
			// Buffer, so it carries no live documents to report.
			continue
		}
		capacity := sl.Capacity()
		for base := 0; base < capacity; base += groupSize {
			end := base + groupSize
			if end > capacity {
				end = capacity
			}
			for i := base; i < end; i++ {
				doc := core.DocIndex(i)
				if !evalNode(program, sl, doc) {
					continue
				}
				if !sh.IsActive(sliceIdx, doc) {
					continue
				}
				out = append(out, idx.DocumentHandleAt(shardID, sliceIdx, doc))
			}
		}
	}
	return out
}

// evalNode evaluates one CompileNode program against a single document.
// A nil node (an empty Report or Not body) evaluates to true, matching
// CompileNode's "child may be nil" convention.
func evalNode(n *plan.CompileNode, sl *slice.Slice, doc core.DocIndex) bool {
	if n == nil {
		return true
	}
	switch n.Kind {
	case plan.CompileAndTree:
		return evalNode(n.Left, sl, doc) && evalNode(n.Right, sl, doc)
	case plan.CompileOrTree:
		return evalNode(n.Left, sl, doc) || evalNode(n.Right, sl, doc)
	case plan.CompileNot:
		return !evalNode(n.Left, sl, doc)
	case plan.CompileLoadRow:
		return rowBit(sl, n.Row, doc)
	case plan.CompileAndRowJz:
		if !rowBit(sl, n.Row, doc) {
			return false
		}
		return evalNode(n.Right, sl, doc)
	case plan.CompileRankDown:
		return evalNode(n.Left, sl, doc)
	case plan.CompileReport:
		return evalNode(n.Left, sl, doc)
	default:
		fault.Fatal(nil, "match: unsupported CompileNode kind", "kind", n.Kind)
		return false
	}
}

// rowBit resolves r's bit for doc. It reads the row's table at
// ConsumedRank, not Row.Rank: a NOTted row the rewriter pushed to rank 0
// is still physically stored at its original rank, and ConsumedRank is
// the only field that still names it. A row whose rank has no table in
// this Slice never matches, rather than panicking — a query compiled
// against one TermTable generation should not fail outright against a
// Slice that happens to carry a narrower rank set.
func rowBit(sl *slice.Slice, r plan.AbstractRow, doc core.DocIndex) bool {
	rt, ok := sl.RowTable(r.ConsumedRank)
	if !ok {
		return false
	}
	return slice.GetBit(sl.Buffer(), rt, r.Row.Index, doc)
}
