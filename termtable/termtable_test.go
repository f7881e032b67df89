package termtable

import (
	"bytes"
	"testing"

	"github.com/hausdorff/bitfunnel/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRowsIsIdempotent(t *testing.T) {
	tt := New(NewPrivateRank0Treatment())
	tm := term.NewTerm("hello", 1, 0)

	first := tt.GetRows(tm)
	second := tt.GetRows(tm)
	assert.Equal(t, first, second)
}

func TestGetRowsDistinctTermsGetDistinctPrivateRows(t *testing.T) {
	tt := New(NewPrivateRank0Treatment())
	a := tt.GetRows(term.NewTerm("alpha", 1, 0))
	b := tt.GetRows(term.NewTerm("beta", 1, 0))
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].Index, b[0].Index)
}

func TestGetRowsSortedForMatch(t *testing.T) {
	tt := New(NewPrivateSharedRank0And3Treatment(0.1, 100))
	rows := tt.GetRows(term.NewTerm("common word", 1, 0))
	require.NotEmpty(t, rows)
	for i := 1; i < len(rows); i++ {
		assert.True(t, rows[i-1].Rank >= rows[i].Rank)
	}
}

func TestTermTableRoundTrip(t *testing.T) {
	tt := New(NewPrivateRank0Treatment())
	tt.GetRows(term.NewTerm("alpha", 1, 0))
	tt.GetRows(term.NewTerm("beta", 1, 0))

	var buf bytes.Buffer
	_, err := tt.WriteTo(&buf)
	require.NoError(t, err)

	readBack, err := ReadTermTableFrom(&buf, map[TreatmentId]Treatment{
		TreatmentIdPrivateRank0: NewPrivateRank0Treatment(),
	})
	require.NoError(t, err)
	assert.Equal(t, tt.GetRows(term.NewTerm("alpha", 1, 0)), readBack.GetRows(term.NewTerm("alpha", 1, 0)))
}

func TestGetRowsDeterministicAcrossInstancesRegardlessOfQueryOrder(t *testing.T) {
	terms := []term.Term{
		term.NewTerm("alpha", 1, 0),
		term.NewTerm("beta", 1, 0),
		term.NewTerm("gamma", 1, 0),
		term.NewTerm("delta", 1, 0),
	}

	forward := New(NewPrivateSharedRank0And3Treatment(0.1, 100))
	for _, tm := range terms {
		forward.GetRows(tm)
	}

	reversed := New(NewPrivateSharedRank0And3Treatment(0.1, 100))
	for i := len(terms) - 1; i >= 0; i-- {
		reversed.GetRows(terms[i])
	}

	for _, tm := range terms {
		assert.Equal(t, forward.GetRows(tm), reversed.GetRows(tm), "term %#x diverged across query orders", tm.Hash)
	}
}

// TestRoundTripThenNewTermDoesNotCollideWithPriorPrivateRows exercises the
// gap a round trip used to leave open: a term queried for the first time
// after a save/load cycle must land on the same private row a freshly
// built, never-persisted table would have given it, not restart from
// index 0 and alias a term already assigned before the save.
func TestRoundTripThenNewTermDoesNotCollideWithPriorPrivateRows(t *testing.T) {
	fresh := New(NewPrivateRank0Treatment())
	alpha := fresh.GetRows(term.NewTerm("alpha", 1, 0))
	beta := fresh.GetRows(term.NewTerm("beta", 1, 0))

	persisted := New(NewPrivateRank0Treatment())
	persisted.GetRows(term.NewTerm("alpha", 1, 0))

	var buf bytes.Buffer
	_, err := persisted.WriteTo(&buf)
	require.NoError(t, err)

	readBack, err := ReadTermTableFrom(&buf, map[TreatmentId]Treatment{
		TreatmentIdPrivateRank0: NewPrivateRank0Treatment(),
	})
	require.NoError(t, err)

	assert.Equal(t, alpha, readBack.GetRows(term.NewTerm("alpha", 1, 0)))
	assert.Equal(t, beta, readBack.GetRows(term.NewTerm("beta", 1, 0)))
}
