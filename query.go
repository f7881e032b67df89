// This file re-exports plan's TermMatchNode constructors under the root
// package, so a caller building a query for Index.Query never needs to
// import the plan package directly.
package bitfunnel

import (
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/plan"
	"github.com/hausdorff/bitfunnel/term"
)

// And requires both left and right to match.
func And(a *arena.Arena, left, right *plan.TermMatchNode) *plan.TermMatchNode {
	return plan.NewTermAnd(a, left, right)
}

// Or requires either left or right to match.
func Or(a *arena.Arena, left, right *plan.TermMatchNode) *plan.TermMatchNode {
	return plan.NewTermOr(a, left, right)
}

// Not requires child to not match.
func Not(a *arena.Arena, child *plan.TermMatchNode) *plan.TermMatchNode {
	return plan.NewTermNot(a, child)
}

// Unigram matches documents carrying a posting for t.
func Unigram(a *arena.Arena, t term.Term) *plan.TermMatchNode {
	return plan.NewTermUnigram(a, t)
}

// Fact matches documents that have asserted the boolean fact factID.
func Fact(a *arena.Arena, factID uint64) *plan.TermMatchNode {
	return plan.NewTermFact(a, factID)
}

// Phrase matches documents carrying every term in terms: each position's
// rows are ANDed together. Term order and adjacency are not checked beyond
// what the terms themselves encode. terms must have at least one element.
func Phrase(a *arena.Arena, terms []term.Term) *plan.TermMatchNode {
	return plan.NewTermPhrase(a, terms)
}
