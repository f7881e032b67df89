package plan

import (
	"unsafe"

	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/term"
)

// TermMatchKind selects which variant a TermMatchNode holds.
type TermMatchKind uint8

const (
	TermMatchAnd TermMatchKind = iota
	TermMatchOr
	TermMatchNot
	TermMatchPhrase
	TermMatchUnigram
	TermMatchFact
)

// TermMatchNode is the query AST a caller builds before handing it to
// BuildRowPlan: And/Or/Not/Phrase/Unigram/Fact nodes referencing Terms. It
// is the external input to the plan pipeline (spec's "TermMatchNode tree").
//
// Field meaning by Kind:
//
//	And/Or:   Left, Right are both non-nil children.
//	Not:      Left is the negated child.
//	Unigram:  Term names the single term.
//	Fact:     FactId names the boolean fact.
//	Phrase:   a singly-linked chain: Left is this position's Unigram node,
//	          Right is the next position's Phrase node, or nil at the last
//	          position. This avoids a slice field so phrases stay arena-safe
//	          like every other node.
type TermMatchNode struct {
	Kind        TermMatchKind
	Left, Right *TermMatchNode
	Term        term.Term
	FactId      uint64
}

func allocTermMatchNode(a *arena.Arena) *TermMatchNode {
	ptr, err := a.AllocPointer(int(unsafe.Sizeof(TermMatchNode{})), 8)
	if err != nil {
		fault.Fatal(nil, "plan: arena exhausted allocating TermMatchNode", "err", err)
	}
	return (*TermMatchNode)(ptr)
}

// NewTermAnd allocates an And node over the external query AST.
func NewTermAnd(a *arena.Arena, left, right *TermMatchNode) *TermMatchNode {
	if left == nil || right == nil {
		fault.Fatal(nil, "plan: TermMatchNode And requires two children")
	}
	n := allocTermMatchNode(a)
	n.Kind, n.Left, n.Right = TermMatchAnd, left, right
	return n
}

// NewTermOr allocates an Or node over the external query AST.
func NewTermOr(a *arena.Arena, left, right *TermMatchNode) *TermMatchNode {
	if left == nil || right == nil {
		fault.Fatal(nil, "plan: TermMatchNode Or requires two children")
	}
	n := allocTermMatchNode(a)
	n.Kind, n.Left, n.Right = TermMatchOr, left, right
	return n
}

// NewTermNot allocates a Not node over the external query AST.
func NewTermNot(a *arena.Arena, child *TermMatchNode) *TermMatchNode {
	if child == nil {
		fault.Fatal(nil, "plan: TermMatchNode Not requires a child")
	}
	n := allocTermMatchNode(a)
	n.Kind, n.Left = TermMatchNot, child
	return n
}

// NewTermUnigram allocates a single-term leaf.
func NewTermUnigram(a *arena.Arena, t term.Term) *TermMatchNode {
	n := allocTermMatchNode(a)
	n.Kind, n.Term = TermMatchUnigram, t
	return n
}

// NewTermFact allocates a boolean-fact leaf.
func NewTermFact(a *arena.Arena, factID uint64) *TermMatchNode {
	n := allocTermMatchNode(a)
	n.Kind, n.FactId = TermMatchFact, factID
	return n
}

// NewTermPhrase allocates the Unigram+Phrase chain for an ordered n-gram.
// terms must have at least one element.
func NewTermPhrase(a *arena.Arena, terms []term.Term) *TermMatchNode {
	if len(terms) == 0 {
		fault.Fatal(nil, "plan: TermMatchNode Phrase requires at least one term")
	}
	var tail *TermMatchNode
	for i := len(terms) - 1; i >= 0; i-- {
		n := allocTermMatchNode(a)
		n.Kind = TermMatchPhrase
		n.Left = NewTermUnigram(a, terms[i])
		n.Right = tail
		tail = n
	}
	return tail
}
