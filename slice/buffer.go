// Package slice implements the per-generation, bit-packed storage unit of
// the index: a fixed-capacity batch of documents, their RowTables (one per
// rank in use), and a DocTable for per-document metadata and blobs.
package slice

import (
	"fmt"

	"github.com/hausdorff/bitfunnel/internal/mmap"
)

// Buffer is the raw backing store for one Slice: row tables and the
// DocTable all live in subranges of the same off-heap allocation, so a
// Slice's memory footprint is one mapping, not one allocation per row.
type Buffer struct {
	mapping *mmap.Mapping
	bytes   []byte
}

// NewBuffer allocates an anonymous, zero-filled mapping of the given size.
// Off-heap because a Slice's row tables are multi-megabyte and must not be
// scanned by the garbage collector on every GC cycle.
func NewBuffer(size int) (Buffer, error) {
	m, err := mmap.MapAnon(size)
	if err != nil {
		return Buffer{}, fmt.Errorf("slice: allocate buffer: %w", err)
	}
	return Buffer{mapping: m, bytes: m.Bytes()}, nil
}

// Bytes returns the buffer's backing storage.
func (b Buffer) Bytes() []byte {
	return b.bytes
}

// Close releases the buffer's memory. After Close, the slice Bytes returns
// refers to unmapped memory and must not be read; the recycler is the only
// caller that should ever invoke this.
func (b Buffer) Close() error {
	if b.mapping == nil {
		return nil
	}
	return b.mapping.Close()
}
