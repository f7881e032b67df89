package plan

import (
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/row"
	"github.com/hausdorff/bitfunnel/term"
	"github.com/hausdorff/bitfunnel/termtable"
)

// BuildRowPlan expands an external TermMatchNode query into a RowMatchNode
// tree: every unigram becomes an AND-chain of the rows TermTable.GetRows
// assigned it (all of a term's rows must match for the term to match), and
// phrase components AND-combine the same way. And/Or/Not structure carries
// through unchanged.
func BuildRowPlan(root *TermMatchNode, tt *termtable.TermTable, a *arena.Arena) *RowMatchNode {
	switch root.Kind {
	case TermMatchAnd:
		return NewAnd(a, BuildRowPlan(root.Left, tt, a), BuildRowPlan(root.Right, tt, a))
	case TermMatchOr:
		return NewOr(a, BuildRowPlan(root.Left, tt, a), BuildRowPlan(root.Right, tt, a))
	case TermMatchNot:
		return NewNot(a, BuildRowPlan(root.Left, tt, a))
	case TermMatchUnigram:
		return rowAndChain(a, tt.GetRows(root.Term))
	case TermMatchFact:
		return rowAndChain(a, tt.GetRows(term.FactTerm(root.FactId)))
	case TermMatchPhrase:
		return buildPhrase(root, tt, a)
	default:
		fault.Fatal(nil, "plan: unsupported TermMatchNode kind", "kind", root.Kind)
		return nil
	}
}

// rowAndChain builds a left-associative AND-chain of Row nodes, one per
// row in rows. rows must be non-empty: a term with no rows is a building
// error upstream (an empty treatment's RowConfiguration), not something
// BuildRowPlan can recover from.
func rowAndChain(a *arena.Arena, rows row.Sequence) *RowMatchNode {
	if len(rows) == 0 {
		fault.Fatal(nil, "plan: term expanded to zero rows")
	}
	chain := NewRow(a, rows[0])
	for _, r := range rows[1:] {
		chain = NewAnd(a, chain, NewRow(a, r))
	}
	return chain
}

// buildPhrase AND-combines every position's row-AND-chain, walking the
// Unigram+Phrase linked chain described in termmatch.go.
func buildPhrase(node *TermMatchNode, tt *termtable.TermTable, a *arena.Arena) *RowMatchNode {
	chain := rowAndChain(a, tt.GetRows(node.Left.Term))
	for next := node.Right; next != nil; next = next.Right {
		chain = NewAnd(a, chain, rowAndChain(a, tt.GetRows(next.Left.Term)))
	}
	return chain
}
