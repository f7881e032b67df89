package slice

import (
	"testing"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetClearBitRank0(t *testing.T) {
	rt := NewRowTable(0, 0, 4, 1<<16)
	buf := make([]byte, rt.SizeBytes())

	assert.False(t, GetBit(buf, rt, 2, 100))
	SetBit(buf, rt, 2, 100)
	assert.True(t, GetBit(buf, rt, 2, 100))
	assert.False(t, GetBit(buf, rt, 2, 101))

	ClearBit(buf, rt, 2, 100)
	assert.False(t, GetBit(buf, rt, 2, 100))
}

func TestRankCompressesMultipleDocsOntoOneBit(t *testing.T) {
	rt := NewRowTable(0, 3, 1, 1<<16)
	buf := make([]byte, rt.SizeBytes())

	SetBit(buf, rt, 0, core.DocIndex(16)) // doc 16..23 compress to the same bit
	assert.True(t, GetBit(buf, rt, 0, 16))
	assert.True(t, GetBit(buf, rt, 0, 17))
	assert.True(t, GetBit(buf, rt, 0, 23))
	assert.False(t, GetBit(buf, rt, 0, 24))
}

func TestMultipleRowsDontAlias(t *testing.T) {
	rt := NewRowTable(0, 0, 3, 1<<16)
	buf := make([]byte, rt.SizeBytes())
	require.Equal(t, 3*((1<<16)/64)*8, len(buf))

	SetBit(buf, rt, 0, 5)
	assert.False(t, GetBit(buf, rt, 1, 5))
	assert.False(t, GetBit(buf, rt, 2, 5))
}
