// Package row defines RowId, the handle a TermTable hands back for each row
// a term is assigned to, and Sequence, the ordered list of RowIds a query
// plan walks to build a term's row-match subtree.
package row

import (
	"sort"

	"github.com/hausdorff/bitfunnel/core"
)

// RowId names one physical row: its rank, its dense index within that
// rank's RowTable, and whether the row was reused from a recycled Slice
// generation (which changes how the matcher treats its bits on first use).
type RowId struct {
	Rank     core.Rank
	Index    core.RowIndex
	Recycled bool
}

// Sequence is the ordered set of rows a single term maps to, as returned by
// termtable.TermTable.GetRows. Order matters: the plan builder and the
// rewriter both assume descending-rank order.
type Sequence []RowId

// SortForMatch orders rows by descending rank, then ascending row index
// (spec §4.D/§4.I: "sort by descending rank"). The rewriter re-sorts each
// AND-chain itself and breaks rank ties by descending index instead.
// The sort is stable: rows with equal rank and index keep their relative
// input order, which is the salt-assignment order from TermTable.GetRows.
func (s Sequence) SortForMatch() {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Rank != s[j].Rank {
			return s[i].Rank > s[j].Rank
		}
		return s[i].Index < s[j].Index
	})
}
