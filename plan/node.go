// Package plan holds the arena-allocated expression trees the query
// pipeline passes between stages: the external TermMatchNode AST, the
// row-level RowMatchNode tree the rewriter and compiler operate on, and the
// lowered CompileNode program the matcher executes.
//
// Every node is a tagged-union struct, not an interface with dynamic casts:
// a Kind field selects which of the struct's fields are meaningful. Nodes
// are allocated from an internal/arena.Arena and reference each other by
// ordinary Go pointer, but every pointer a node can hold points at another
// node from the same arena (or is nil) — never at a slice, string, or map
// living on the regular Go heap — so an arena Free/Reset can discard the
// whole tree at once without destructors and without leaving a dangling
// reference the garbage collector would otherwise need to trace into.
package plan

import (
	"unsafe"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/row"
)

// RowMatchKind selects which variant a RowMatchNode holds.
type RowMatchKind uint8

const (
	RowMatchAnd RowMatchKind = iota
	RowMatchOr
	RowMatchNot
	RowMatchRow
	RowMatchReport
)

// RowMatchNode is a row-level query expression: the output of BuildRowPlan
// and the input/output of the rewriter. Field meaning by Kind:
//
//	And/Or:    Left, Right are both non-nil children.
//	Not:       Left is the negated child, Right is nil.
//	Row:       Row names the physical row; ConsumedRank records the rank a
//	           NOTted row is tested at, when the rewriter has rewritten it.
//	Report:    Left is the optional child (nil means "no further filter
//	           below the boundary"), Right is nil.
type RowMatchNode struct {
	Kind         RowMatchKind
	Left, Right  *RowMatchNode
	Row          row.RowId
	ConsumedRank core.Rank
}

func allocRowMatchNode(a *arena.Arena) *RowMatchNode {
	ptr, err := a.AllocPointer(int(unsafe.Sizeof(RowMatchNode{})), 8)
	if err != nil {
		fault.Fatal(nil, "plan: arena exhausted allocating RowMatchNode", "err", err)
	}
	return (*RowMatchNode)(ptr)
}

// NewAnd allocates an And node. Per spec, an And/Or with fewer than two
// children is a fatal invariant violation — both left and right are
// required.
func NewAnd(a *arena.Arena, left, right *RowMatchNode) *RowMatchNode {
	if left == nil || right == nil {
		fault.Fatal(nil, "plan: And node requires two children")
	}
	n := allocRowMatchNode(a)
	n.Kind, n.Left, n.Right = RowMatchAnd, left, right
	return n
}

// NewOr allocates an Or node. Same two-child requirement as NewAnd.
func NewOr(a *arena.Arena, left, right *RowMatchNode) *RowMatchNode {
	if left == nil || right == nil {
		fault.Fatal(nil, "plan: Or node requires two children")
	}
	n := allocRowMatchNode(a)
	n.Kind, n.Left, n.Right = RowMatchOr, left, right
	return n
}

// NewNot allocates a Not node.
func NewNot(a *arena.Arena, child *RowMatchNode) *RowMatchNode {
	if child == nil {
		fault.Fatal(nil, "plan: Not node requires a child")
	}
	n := allocRowMatchNode(a)
	n.Kind, n.Left = RowMatchNot, child
	return n
}

// NewRow allocates a leaf Row node for r. ConsumedRank defaults to r.Rank;
// when the rewriter moves a NOTted row to rank 0 it sets Rank to 0 and keeps
// the original rank in ConsumedRank.
func NewRow(a *arena.Arena, r row.RowId) *RowMatchNode {
	n := allocRowMatchNode(a)
	n.Kind, n.Row, n.ConsumedRank = RowMatchRow, r, r.Rank
	return n
}

// NewReport allocates a Report node. child may be nil: a Report with no
// child marks the boundary with nothing further to evaluate below it.
func NewReport(a *arena.Arena, child *RowMatchNode) *RowMatchNode {
	n := allocRowMatchNode(a)
	n.Kind, n.Left = RowMatchReport, child
	return n
}
