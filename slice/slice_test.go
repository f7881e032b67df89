package slice

import (
	"testing"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSlice(t *testing.T) *Slice {
	t.Helper()
	s, err := New(Config{
		Capacity:      64,
		FixedBlobSize: 8,
		BlobCapacity:  256,
		RowCounts:     map[core.Rank]core.RowIndex{0: 4},
	})
	require.NoError(t, err)
	return s
}

func TestClaimReducesUnallocated(t *testing.T) {
	s := newTestSlice(t)
	require.EqualValues(t, 64, s.UnallocatedCount())

	doc, err := s.Claim()
	require.NoError(t, err)
	assert.NotEqual(t, core.InvalidDocIndex, doc)
	assert.EqualValues(t, 63, s.UnallocatedCount())
}

func TestClaimExhaustionReturnsErrSliceFull(t *testing.T) {
	s := newTestSlice(t)
	for i := 0; i < 64; i++ {
		_, err := s.Claim()
		require.NoError(t, err)
	}
	_, err := s.Claim()
	assert.ErrorIs(t, err, fault.ErrSliceFull)
}

func TestRecyclableOnlyAfterAllCommittedExpire(t *testing.T) {
	s := newTestSlice(t)
	doc, err := s.Claim()
	require.NoError(t, err)
	assert.False(t, s.Recyclable())

	s.Expire(doc)
	assert.True(t, s.Recyclable())
}

func TestSetGetBitThroughSliceBuffer(t *testing.T) {
	s := newTestSlice(t)
	rt, ok := s.RowTable(0)
	require.True(t, ok)

	doc, err := s.Claim()
	require.NoError(t, err)

	SetBit(s.Buffer(), rt, 1, doc)
	assert.True(t, GetBit(s.Buffer(), rt, 1, doc))
}

func TestAddRefRelease(t *testing.T) {
	s := newTestSlice(t)
	s.AddRef()
	s.AddRef()
	assert.False(t, s.Release())
	assert.True(t, s.Release())
}
