package plan

import (
	"unsafe"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/row"
)

// AbstractRow names the physical row a LoadRow/AndRowJz instruction reads,
// one indirection away from row.RowId so a future compiler stage could
// substitute a different row for the same logical slot (e.g. a recycled
// generation's row) without changing the instruction shape.
//
// ConsumedRank carries the rank the row is actually stored at, which for a
// NOTted row the rewriter has moved to rank 0 differs from Row.Rank — the
// matcher must still read the row's bit from its original rank's table.
type AbstractRow struct {
	Row          row.RowId
	ConsumedRank core.Rank
}

// CompileKind selects which variant a CompileNode holds.
type CompileKind uint8

const (
	CompileAndTree CompileKind = iota
	CompileOrTree
	CompileNot
	CompileLoadRow
	CompileAndRowJz
	CompileRankDown
	CompileReport
)

// CompileNode is the lowered, rank-0-executable program the matcher walks.
// Field meaning by Kind:
//
//	AndTree/OrTree: Left, Right are both non-nil.
//	Not:            Left is the child, Right is nil.
//	LoadRow:        AbstractRow names the row to load; no children.
//	AndRowJz:       AbstractRow names the row to AND in; Right is the
//	                instruction to execute next, skipped if the
//	                accumulator goes to zero.
//	RankDown:       NewRank is the rank to widen down to; Left is the
//	                child evaluated at the new rank.
//	Report:         Left is the optional child; Right is nil.
type CompileNode struct {
	Kind        CompileKind
	Left, Right *CompileNode
	Row         AbstractRow
	NewRank     core.Rank
}

func allocCompileNode(a *arena.Arena) *CompileNode {
	ptr, err := a.AllocPointer(int(unsafe.Sizeof(CompileNode{})), 8)
	if err != nil {
		fault.Fatal(nil, "plan: arena exhausted allocating CompileNode", "err", err)
	}
	return (*CompileNode)(ptr)
}

// NewAndTree allocates a bytecode AndTree node.
func NewAndTree(a *arena.Arena, left, right *CompileNode) *CompileNode {
	n := allocCompileNode(a)
	n.Kind, n.Left, n.Right = CompileAndTree, left, right
	return n
}

// NewOrTree allocates a bytecode OrTree node.
func NewOrTree(a *arena.Arena, left, right *CompileNode) *CompileNode {
	n := allocCompileNode(a)
	n.Kind, n.Left, n.Right = CompileOrTree, left, right
	return n
}

// NewCompileNot allocates a bytecode Not node.
func NewCompileNot(a *arena.Arena, child *CompileNode) *CompileNode {
	n := allocCompileNode(a)
	n.Kind, n.Left = CompileNot, child
	return n
}

// NewLoadRow allocates a LoadRow instruction.
func NewLoadRow(a *arena.Arena, r AbstractRow) *CompileNode {
	n := allocCompileNode(a)
	n.Kind, n.Row = CompileLoadRow, r
	return n
}

// NewAndRowJz allocates an AndRowJz instruction: AND r's word into the
// accumulator, then fall through to next (or skip it if the accumulator
// went to zero — that short-circuit is the matcher's job, not the node's).
func NewAndRowJz(a *arena.Arena, r AbstractRow, next *CompileNode) *CompileNode {
	n := allocCompileNode(a)
	n.Kind, n.Row, n.Right = CompileAndRowJz, r, next
	return n
}

// NewRankDown allocates a RankDown instruction widening the caller's
// accumulator from its current rank down to newRank, where child is
// evaluated.
func NewRankDown(a *arena.Arena, newRank core.Rank, child *CompileNode) *CompileNode {
	n := allocCompileNode(a)
	n.Kind, n.NewRank, n.Left = CompileRankDown, newRank, child
	return n
}

// NewCompileReport allocates a bytecode Report instruction. child may be
// nil.
func NewCompileReport(a *arena.Arena, child *CompileNode) *CompileNode {
	n := allocCompileNode(a)
	n.Kind, n.Left = CompileReport, child
	return n
}
