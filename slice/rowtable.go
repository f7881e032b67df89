package slice

import (
	"encoding/binary"

	"github.com/hausdorff/bitfunnel/core"
)

// wordBits is the width of one row word. Rows are stored LSB-first within
// each 64-bit word, row-major: row 0's words, then row 1's words, and so on.
const wordBits = 64

// RowTable describes where one rank's rows live inside a Slice's Buffer.
// It carries no data itself — GetBit/SetBit/ClearBit take the backing
// []byte explicitly and do no locking of their own. Most rows are written
// by only one document's ingestion path at a time, so no lock is needed.
// The document-active row is the exception: it's shared across every
// document compressed into the same word, and its caller (shard.go's
// activate/expire/IsActive) holds Shard.mu across the full read-modify-
// write rather than relying on these functions for safety.
type RowTable struct {
	BaseOffset     int
	Rank           core.Rank
	RowCount       core.RowIndex
	DocWordsPerRow int // 64-bit words spanned by one row at this rank
}

// NewRowTable computes the word width a rank needs to cover
// documentsPerSlice documents, rounding up to a whole word.
func NewRowTable(baseOffset int, rank core.Rank, rowCount core.RowIndex, documentsPerSlice int) RowTable {
	compressedDocs := documentsPerSlice >> rank
	words := (compressedDocs + wordBits - 1) / wordBits
	if words == 0 {
		words = 1
	}
	return RowTable{
		BaseOffset:     baseOffset,
		Rank:           rank,
		RowCount:       rowCount,
		DocWordsPerRow: words,
	}
}

// SizeBytes is the number of bytes this RowTable occupies in a Buffer.
func (rt RowTable) SizeBytes() int {
	return int(rt.RowCount) * rt.DocWordsPerRow * 8
}

func (rt RowTable) wordOffset(rowIdx core.RowIndex, doc core.DocIndex) (byteOffset int, bit uint) {
	compressedDoc := uint(doc) >> rt.Rank
	word := compressedDoc / wordBits
	bit = compressedDoc % wordBits
	byteOffset = rt.BaseOffset + int(rowIdx)*rt.DocWordsPerRow*8 + int(word)*8
	return byteOffset, bit
}

// GetBit reports whether rowIdx's bit for doc is set.
func GetBit(buf []byte, rt RowTable, rowIdx core.RowIndex, doc core.DocIndex) bool {
	off, bit := rt.wordOffset(rowIdx, doc)
	w := binary.LittleEndian.Uint64(buf[off : off+8])
	return w&(1<<bit) != 0
}

// SetBit sets rowIdx's bit for doc. At ranks above 0, multiple documents
// compress onto the same bit, so SetBit never needs to read-check first:
// it is always a pure OR.
func SetBit(buf []byte, rt RowTable, rowIdx core.RowIndex, doc core.DocIndex) {
	off, bit := rt.wordOffset(rowIdx, doc)
	w := binary.LittleEndian.Uint64(buf[off : off+8])
	binary.LittleEndian.PutUint64(buf[off:off+8], w|(1<<bit))
}

// ClearBit clears rowIdx's bit for doc. At ranks above 0 this clears the
// bit for every document compressed onto it, not just doc.
func ClearBit(buf []byte, rt RowTable, rowIdx core.RowIndex, doc core.DocIndex) {
	off, bit := rt.wordOffset(rowIdx, doc)
	w := binary.LittleEndian.Uint64(buf[off : off+8])
	binary.LittleEndian.PutUint64(buf[off:off+8], w&^(1<<bit))
}

// WordAt returns row rowIdx's wordIndex'th compressed word (0..DocWordsPerRow-1).
// A caller matching raw document groups converts its group index to a
// compressed word index by shifting right rt.Rank bits first.
func WordAt(buf []byte, rt RowTable, rowIdx core.RowIndex, wordIndex uint) uint64 {
	off := rt.BaseOffset + int(rowIdx)*rt.DocWordsPerRow*8 + int(wordIndex)*8
	return binary.LittleEndian.Uint64(buf[off : off+8])
}
