package slice

import (
	"encoding/binary"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
)

// DocTable holds per-document fixed metadata (the external DocId plus a
// fixed-stride fact/payload slot) followed by a variable-size blob region
// for data that doesn't fit the fixed-size row-bit model.
type DocTable struct {
	BaseOffset    int
	Capacity      int
	FixedBlobSize int // bytes reserved per document for GetFixedSizeBlob
	BlobOffset    int
	BlobCapacity  int
	blobNext      int
}

const docIdSize = 8

// NewDocTable lays out, starting at baseOffset: a DocId array, a
// fixedBlobSize-per-document fixed region, then a blobCapacity-byte
// variable-size blob region.
func NewDocTable(baseOffset, capacity, fixedBlobSize, blobCapacity int) DocTable {
	fixedRegionStart := baseOffset + capacity*docIdSize
	return DocTable{
		BaseOffset:    baseOffset,
		Capacity:      capacity,
		FixedBlobSize: fixedBlobSize,
		BlobOffset:    fixedRegionStart + capacity*fixedBlobSize,
		BlobCapacity:  blobCapacity,
	}
}

// SizeBytes is the total size of the DocId array, the fixed-blob region,
// and the variable-size blob region.
func (dt DocTable) SizeBytes() int {
	return dt.Capacity*docIdSize + dt.Capacity*dt.FixedBlobSize + dt.BlobCapacity
}

// SetDocId records the external DocId for doc.
func (dt DocTable) SetDocId(buf []byte, doc core.DocIndex, id core.DocId) {
	off := dt.BaseOffset + int(doc)*docIdSize
	binary.LittleEndian.PutUint64(buf[off:off+docIdSize], uint64(id))
}

// GetDocId returns the external DocId stored for doc.
func (dt DocTable) GetDocId(buf []byte, doc core.DocIndex) core.DocId {
	off := dt.BaseOffset + int(doc)*docIdSize
	return core.DocId(binary.LittleEndian.Uint64(buf[off : off+docIdSize]))
}

// fixedRegionOffset is where the fixed-blob region begins, just past the
// DocId array.
func (dt DocTable) fixedRegionOffset() int {
	return dt.BaseOffset + dt.Capacity*docIdSize
}

// GetFixedSizeBlob returns doc's FixedBlobSize-byte fixed slot.
func (dt DocTable) GetFixedSizeBlob(buf []byte, doc core.DocIndex) []byte {
	off := dt.fixedRegionOffset() + int(doc)*dt.FixedBlobSize
	return buf[off : off+dt.FixedBlobSize]
}

// AllocateVariableSizeBlob carves out n fresh bytes from the blob region
// and returns them along with their offset. The region is append-only
// within a Slice's lifetime; callers record the returned offset (typically
// in a document's fixed blob) to find the bytes again later.
func (dt *DocTable) AllocateVariableSizeBlob(buf []byte, n int) ([]byte, int, error) {
	if dt.blobNext+n > dt.BlobCapacity {
		return nil, 0, fault.ErrSliceFull
	}
	off := dt.BlobOffset + dt.blobNext
	dt.blobNext += n
	return buf[off : off+n], off, nil
}

// GetVariableSizeBlob returns the n bytes previously allocated at offset.
func (dt DocTable) GetVariableSizeBlob(buf []byte, offset, n int) []byte {
	return buf[offset : offset+n]
}
