package compile

import (
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/plan"
)

// RankZeroCompiler translates a RowMatchNode subtree straight across to
// CompileNode form: once every row below a point in the tree is known to
// be rank 0 (true of everything under a Report, post-rewrite), there is
// no rank mismatch left to resolve and the compiler collapses to a plain
// structural translator.
//
// Grounded directly on
// _examples/original_source/src/Plan/src/RankZeroCompiler.cpp's switch
// statement, reimplemented as a Go type-switch over the tagged Kind
// field instead of dynamic_cast — hence no Report case here, matching
// the original: Report is translated by RankDownCompiler itself, which
// passes only the Report's child down to this translator.
type RankZeroCompiler struct {
	a *arena.Arena
}

// NewRankZeroCompiler allocates a compiler that allocates its output
// program in a.
func NewRankZeroCompiler(a *arena.Arena) *RankZeroCompiler {
	return &RankZeroCompiler{a: a}
}

// Compile translates node and everything below it. A nil node (an empty
// Report body, or a Not with no further structure) translates to nil.
func (c *RankZeroCompiler) Compile(node *plan.RowMatchNode) *plan.CompileNode {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case plan.RowMatchAnd:
		return plan.NewAndTree(c.a, c.Compile(node.Left), c.Compile(node.Right))
	case plan.RowMatchOr:
		return plan.NewOrTree(c.a, c.Compile(node.Left), c.Compile(node.Right))
	case plan.RowMatchNot:
		return plan.NewCompileNot(c.a, c.Compile(node.Left))
	case plan.RowMatchRow:
		return plan.NewLoadRow(c.a, plan.AbstractRow{Row: node.Row, ConsumedRank: node.ConsumedRank})
	default:
		fault.Fatal(nil, "compile: unsupported RowMatchNode kind at rank zero", "kind", node.Kind)
		return nil
	}
}
