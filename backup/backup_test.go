package backup

import (
	"path/filepath"
	"testing"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fs"
	"github.com/hausdorff/bitfunnel/slice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSliceThenReadSliceRoundTrips(t *testing.T) {
	s, err := slice.New(slice.Config{
		Capacity:      128,
		FixedBlobSize: 4,
		BlobCapacity:  16,
		RowCounts:     map[core.Rank]core.RowIndex{0: 4, 3: 2},
	})
	require.NoError(t, err)

	for _, doc := range []core.DocIndex{0, 1, 63, 64, 127} {
		_, err := s.Claim()
		require.NoError(t, err)
		_ = doc
	}
	s.DocTable().SetDocId(s.Buffer(), 0, core.DocId(42))
	rt0, ok := s.RowTable(0)
	require.True(t, ok)
	slice.SetBit(s.Buffer(), rt0, 2, 5)
	rt3, ok := s.RowTable(3)
	require.True(t, ok)
	slice.SetBit(s.Buffer(), rt3, 1, 64)

	path := filepath.Join(t.TempDir(), "slice.bfns")
	var lfs fs.LocalFS
	require.NoError(t, WriteSlice(lfs, path, s))

	got, err := ReadSlice(lfs, path)
	require.NoError(t, err)

	assert.Equal(t, s.Capacity(), got.Capacity())
	assert.Equal(t, core.DocId(42), got.DocTable().GetDocId(got.Buffer(), 0))

	gotRT0, ok := got.RowTable(0)
	require.True(t, ok)
	assert.True(t, slice.GetBit(got.Buffer(), gotRT0, 2, 5))
	assert.False(t, slice.GetBit(got.Buffer(), gotRT0, 2, 6))

	gotRT3, ok := got.RowTable(3)
	require.True(t, ok)
	assert.True(t, slice.GetBit(got.Buffer(), gotRT3, 1, 64))
}

func TestWriteSlicePropagatesWriteFault(t *testing.T) {
	s, err := slice.New(slice.Config{Capacity: 64, RowCounts: map[core.Rank]core.RowIndex{0: 1}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "slice.bfns")
	ffs := fs.NewFaulty(fs.LocalFS{}).FailAfterBytes(8)

	err = WriteSlice(ffs, path, s)
	assert.Error(t, err)
}

func TestReadSliceRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bfns")
	var lfs fs.LocalFS
	w, err := lfs.OpenForWrite(path)
	require.NoError(t, err)
	_, _ = w.Write([]byte("not a slice backup"))
	require.NoError(t, w.Close())

	_, err = ReadSlice(lfs, path)
	assert.Error(t, err)
}
