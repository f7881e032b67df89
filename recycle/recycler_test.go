package recycle

import (
	"testing"
	"time"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/slice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSlice(t *testing.T) *slice.Slice {
	t.Helper()
	s, err := slice.New(slice.Config{
		Capacity:      4,
		FixedBlobSize: 0,
		BlobCapacity:  0,
		RowCounts:     map[core.Rank]core.RowIndex{0: 1},
	})
	require.NoError(t, err)
	return s
}

func TestRecyclerCallsBackupThenClosesSlice(t *testing.T) {
	backedUp := make(chan struct{}, 1)
	r := New(4, func(s *slice.Slice) error {
		backedUp <- struct{}{}
		return nil
	}, nil, nil)

	s := newTestSlice(t)
	require.True(t, r.Enqueue(s))

	select {
	case <-backedUp:
	case <-time.After(time.Second):
		t.Fatal("backup hook was never called")
	}

	r.Shutdown()
}

func TestRecyclerWithoutBackupStillCloses(t *testing.T) {
	r := New(4, nil, nil, nil)
	s := newTestSlice(t)
	assert.True(t, r.Enqueue(s))
	r.Shutdown()
}
