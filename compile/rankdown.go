// Package compile lowers a rewritten RowMatchNode tree into the
// CompileNode bytecode the matcher executes.
//
// RankDownCompiler walks the tree from its highest-rank row down toward
// rank 0, inserting a RankDown instruction at each rank transition; once
// it reaches the Report boundary (where, post-rewrite, every remaining
// row is already rank 0) RankZeroCompiler takes over as a plain
// structural translator. Splitting the two is grounded on
// _examples/original_source/src/Plan/src/RankDownCompiler.h and
// RankZeroCompiler.cpp. See DESIGN.md for the scope note on why the
// walk itself follows spec.md §4.J's prose rather than the original's
// RankDownCompiler.cpp body, which this module's reference corpus does
// not include.
package compile

import (
	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/plan"
)

// RankDownCompiler lowers one RowMatchNode subtree into a CompileNode
// program. Compile and CreateTree are two separate calls because an Or's
// required initial rank isn't known until both of its children have been
// compiled (spec.md §4.J) — the caller compiles, learns the rank, then
// asks for the tree padded to whatever initial rank the caller needs.
type RankDownCompiler struct {
	a            *arena.Arena
	rank0        *RankZeroCompiler
	accumulator  *plan.CompileNode
	requiredRank core.Rank
}

// NewRankDownCompiler allocates a compiler that allocates its output
// program in a.
func NewRankDownCompiler(a *arena.Arena) *RankDownCompiler {
	return &RankDownCompiler{a: a, rank0: NewRankZeroCompiler(a)}
}

// Compile lowers root and records the rank at which the resulting
// program's entry point executes. Call CreateTree afterward to retrieve
// the program, optionally padded to a higher initial rank.
func (c *RankDownCompiler) Compile(root *plan.RowMatchNode) {
	c.accumulator, c.requiredRank = c.compile(root)
}

// CreateTree returns the compiled program. If initialRank is higher than
// the rank the program actually required, the program is wrapped in a
// single RankDown so it can be entered at initialRank — this is how an
// Or's lower-rank branch gets aligned with its higher-rank sibling.
func (c *RankDownCompiler) CreateTree(initialRank core.Rank) *plan.CompileNode {
	if initialRank == c.requiredRank {
		return c.accumulator
	}
	if initialRank < c.requiredRank {
		fault.Fatal(nil, "compile: initialRank is below the subtree's required rank",
			"initialRank", initialRank, "required", c.requiredRank)
	}
	return plan.NewRankDown(c.a, c.requiredRank, c.accumulator)
}

// compile returns the compiled node together with the rank at which its
// entry point executes.
func (c *RankDownCompiler) compile(node *plan.RowMatchNode) (*plan.CompileNode, core.Rank) {
	switch node.Kind {
	case plan.RowMatchAnd:
		return c.compileAndChain(node)
	case plan.RowMatchRow:
		return plan.NewLoadRow(c.a, plan.AbstractRow{Row: node.Row, ConsumedRank: node.ConsumedRank}), node.Row.Rank
	case plan.RowMatchReport:
		return plan.NewCompileReport(c.a, c.rank0.Compile(node.Left)), 0
	case plan.RowMatchOr:
		return c.compileOr(node)
	default:
		fault.Fatal(nil, "compile: unsupported RowMatchNode kind in rank-down position", "kind", node.Kind)
		return nil, 0
	}
}

// compileAndChain lowers a left-leaning AND-chain of descending-rank Row
// nodes terminated by a Report or Or boundary. It folds from the
// boundary outward so each row's AndRowJz wraps the lower-rank
// continuation, inserting exactly one RankDown at each rank change —
// never more than one node per transition, since CompileNode.RankDown's
// NewRank names the target rank directly rather than a single-step
// delta.
func (c *RankDownCompiler) compileAndChain(node *plan.RowMatchNode) (*plan.CompileNode, core.Rank) {
	elems := flattenAnd(node)

	tail, tailRank := c.compile(elems[len(elems)-1])
	for i := len(elems) - 2; i >= 0; i-- {
		row := elems[i]
		if row.Kind != plan.RowMatchRow {
			fault.Fatal(nil, "compile: non-Row element above the chain's boundary", "kind", row.Kind)
		}
		switch {
		case row.Row.Rank > tailRank:
			tail = plan.NewRankDown(c.a, tailRank, tail)
		case row.Row.Rank < tailRank:
			fault.Fatal(nil, "compile: AND-chain is not sorted by descending rank",
				"row", row.Row.Rank, "next", tailRank)
		}
		tail = plan.NewAndRowJz(c.a, plan.AbstractRow{Row: row.Row, ConsumedRank: row.ConsumedRank}, tail)
		tailRank = row.Row.Rank
	}
	return tail, tailRank
}

// flattenAnd returns a left-leaning AND-chain's operands, highest-rank
// first, ending with whatever non-AND node the chain bottoms out at.
func flattenAnd(n *plan.RowMatchNode) []*plan.RowMatchNode {
	if n.Kind != plan.RowMatchAnd {
		return []*plan.RowMatchNode{n}
	}
	return append(flattenAnd(n.Left), n.Right)
}

// compileOr compiles each branch of an Or independently, then aligns
// both to the higher of the two branches' required initial ranks.
func (c *RankDownCompiler) compileOr(node *plan.RowMatchNode) (*plan.CompileNode, core.Rank) {
	left := NewRankDownCompiler(c.a)
	left.Compile(node.Left)
	right := NewRankDownCompiler(c.a)
	right.Compile(node.Right)

	rank := left.requiredRank
	if right.requiredRank > rank {
		rank = right.requiredRank
	}
	return plan.NewOrTree(c.a, left.CreateTree(rank), right.CreateTree(rank)), rank
}
