package compile

import (
	"testing"

	"github.com/hausdorff/bitfunnel/internal/arena"
	"github.com/hausdorff/bitfunnel/plan"
	"github.com/hausdorff/bitfunnel/row"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArena(t *testing.T) *arena.Arena {
	t.Helper()
	a, err := arena.New(4096)
	require.NoError(t, err)
	return a
}

func TestRankDownCompilerSingleRankZeroRow(t *testing.T) {
	a := newArena(t)
	root := plan.NewAnd(a,
		plan.NewRow(a, row.RowId{Index: 0, Rank: 0}),
		plan.NewReport(a, nil),
	)

	c := NewRankDownCompiler(a)
	c.Compile(root)
	got := c.CreateTree(0)

	require.Equal(t, plan.CompileAndRowJz, got.Kind)
	assert.EqualValues(t, 0, got.Row.Row.Index)
	require.Equal(t, plan.CompileReport, got.Right.Kind)
	assert.Nil(t, got.Right.Left)
}

func TestRankDownCompilerInsertsRankDownBetweenRanks(t *testing.T) {
	a := newArena(t)
	root := plan.NewAnd(a,
		plan.NewRow(a, row.RowId{Index: 1, Rank: 3}),
		plan.NewAnd(a,
			plan.NewRow(a, row.RowId{Index: 0, Rank: 0}),
			plan.NewReport(a, nil),
		),
	)

	c := NewRankDownCompiler(a)
	c.Compile(root)
	got := c.CreateTree(3)

	require.Equal(t, plan.CompileAndRowJz, got.Kind)
	assert.EqualValues(t, 3, got.Row.Row.Rank)

	rankDown := got.Right
	require.Equal(t, plan.CompileRankDown, rankDown.Kind)
	assert.EqualValues(t, 0, rankDown.NewRank)

	inner := rankDown.Left
	require.Equal(t, plan.CompileAndRowJz, inner.Kind)
	assert.EqualValues(t, 0, inner.Row.Row.Rank)
	assert.Equal(t, plan.CompileReport, inner.Right.Kind)
}

func TestRankDownCompilerCreateTreePadsToHigherInitialRank(t *testing.T) {
	a := newArena(t)
	root := plan.NewAnd(a,
		plan.NewRow(a, row.RowId{Index: 0, Rank: 0}),
		plan.NewReport(a, nil),
	)

	c := NewRankDownCompiler(a)
	c.Compile(root)
	got := c.CreateTree(2)

	require.Equal(t, plan.CompileRankDown, got.Kind)
	assert.EqualValues(t, 0, got.NewRank)
	assert.Equal(t, plan.CompileAndRowJz, got.Left.Kind)
}

func TestRankDownCompilerCreateTreeFatalsBelowRequiredRank(t *testing.T) {
	a := newArena(t)
	root := plan.NewAnd(a,
		plan.NewRow(a, row.RowId{Index: 0, Rank: 3}),
		plan.NewReport(a, nil),
	)

	c := NewRankDownCompiler(a)
	c.Compile(root)
	assert.Panics(t, func() { c.CreateTree(0) })
}

func TestRankDownCompilerOrPicksMaxRequiredRank(t *testing.T) {
	a := newArena(t)
	branchHigh := plan.NewAnd(a,
		plan.NewRow(a, row.RowId{Index: 0, Rank: 3}),
		plan.NewReport(a, nil),
	)
	branchLow := plan.NewAnd(a,
		plan.NewRow(a, row.RowId{Index: 1, Rank: 0}),
		plan.NewReport(a, nil),
	)
	root := plan.NewOr(a, branchHigh, branchLow)

	c := NewRankDownCompiler(a)
	c.Compile(root)
	got := c.CreateTree(3)

	require.Equal(t, plan.CompileOrTree, got.Kind)
	assert.Equal(t, plan.CompileAndRowJz, got.Left.Kind)
	require.Equal(t, plan.CompileRankDown, got.Right.Kind)
	assert.EqualValues(t, 0, got.Right.NewRank)
}

func TestRankZeroCompilerTranslatesAndOrNotStraightAcross(t *testing.T) {
	a := newArena(t)
	tree := NewRankZeroCompiler(a)

	notNode := plan.NewNot(a, plan.NewRow(a, row.RowId{Index: 2, Rank: 0}))
	orNode := plan.NewOr(a,
		plan.NewRow(a, row.RowId{Index: 0, Rank: 0}),
		plan.NewRow(a, row.RowId{Index: 1, Rank: 0}),
	)
	root := plan.NewAnd(a, orNode, notNode)

	got := tree.Compile(root)

	require.Equal(t, plan.CompileAndTree, got.Kind)
	assert.Equal(t, plan.CompileOrTree, got.Left.Kind)
	require.Equal(t, plan.CompileNot, got.Right.Kind)
	assert.Equal(t, plan.CompileLoadRow, got.Right.Left.Kind)
}

func TestRankZeroCompilerNilChildTranslatesToNil(t *testing.T) {
	a := newArena(t)
	tree := NewRankZeroCompiler(a)
	assert.Nil(t, tree.Compile(nil))
}
