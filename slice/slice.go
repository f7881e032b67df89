package slice

import (
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
)

// Slice is one fixed-capacity generation of documents: a bit-packed
// RowTable per rank in use, a DocTable, and the bookkeeping needed to claim
// fresh document slots and track which ones have since expired.
//
// A Slice is reference-counted rather than owned by a single pointer: every
// in-flight query holds a reference for its duration, and the Recycler is
// the only goroutine allowed to actually free a Slice's Buffer, once its
// refcount reaches zero and its document-active generation has no more
// readers (spec §4.G).
type Slice struct {
	buf         Buffer
	refcount    atomic.Int64
	unallocated atomic.Int64
	expired     atomic.Int64
	capacity    int

	free       *roaring.Bitmap // DocIndex values never yet claimed
	expiredSet *roaring.Bitmap // DocIndex values claimed then expired

	docTable  DocTable
	rowTables map[core.Rank]RowTable
	logger    fault.ErrorLogger
}

// Config describes the row tables a Slice needs, one entry per rank a
// TermTable's treatments actually use.
type Config struct {
	Capacity      int
	FixedBlobSize int
	BlobCapacity  int
	RowCounts     map[core.Rank]core.RowIndex
	Logger        fault.ErrorLogger
}

// New allocates a Slice's Buffer and lays out its DocTable and RowTables
// within it. All capacity document slots start unallocated.
func New(cfg Config) (*Slice, error) {
	docTable := NewDocTable(0, cfg.Capacity, cfg.FixedBlobSize, cfg.BlobCapacity)
	offset := docTable.SizeBytes()

	rowTables := make(map[core.Rank]RowTable, len(cfg.RowCounts))
	for rank, count := range cfg.RowCounts {
		rt := NewRowTable(offset, rank, count, cfg.Capacity)
		rowTables[rank] = rt
		offset += rt.SizeBytes()
	}

	buf, err := NewBuffer(offset)
	if err != nil {
		return nil, err
	}

	free := roaring.New()
	for i := 0; i < cfg.Capacity; i++ {
		free.Add(uint32(i))
	}

	s := &Slice{
		buf:        buf,
		capacity:   cfg.Capacity,
		free:       free,
		expiredSet: roaring.New(),
		docTable:   docTable,
		rowTables:  rowTables,
		logger:     cfg.Logger,
	}
	s.unallocated.Store(int64(cfg.Capacity))
	return s, nil
}

// Buffer exposes the backing bytes for RowTable/DocTable bit operations.
func (s *Slice) Buffer() []byte {
	return s.buf.Bytes()
}

// RowTable returns the row table for rank, and whether it exists.
func (s *Slice) RowTable(rank core.Rank) (RowTable, bool) {
	rt, ok := s.rowTables[rank]
	return rt, ok
}

// DocTable returns this Slice's DocTable.
func (s *Slice) DocTable() *DocTable {
	return &s.docTable
}

// Capacity is the number of document slots this Slice was built with.
func (s *Slice) Capacity() int {
	return s.capacity
}

// AddRef increments the reference count. Every in-flight query that reads
// this Slice must hold a reference until it finishes.
func (s *Slice) AddRef() {
	s.refcount.Add(1)
}

// Release decrements the reference count and reports whether it reached
// zero, which the Recycler uses to decide a Slice is safe to free.
func (s *Slice) Release() bool {
	return s.refcount.Add(-1) == 0
}

// RefCount returns the current reference count.
func (s *Slice) RefCount() int64 {
	return s.refcount.Load()
}

// Claim reserves the next free document slot and returns its DocIndex.
func (s *Slice) Claim() (core.DocIndex, error) {
	it := s.free.Iterator()
	if !it.HasNext() {
		return core.InvalidDocIndex, fault.ErrSliceFull
	}
	doc := it.Next()
	s.free.Remove(doc)
	s.unallocated.Add(-1)
	return core.DocIndex(doc), nil
}

// Expire marks doc as expired: no longer queryable, but not yet reclaimed.
// spec invariant: expired <= committed (a document must have been claimed
// before it can expire).
func (s *Slice) Expire(doc core.DocIndex) {
	u32 := uint32(doc)
	if s.free.Contains(u32) {
		fault.Fatal(s.logger, "slice: expire called on unclaimed document", "doc", doc)
	}
	if s.expiredSet.Contains(u32) {
		fault.Fatal(s.logger, "slice: expire called twice for document", "doc", doc)
	}
	s.expiredSet.Add(u32)
	s.expired.Add(1)
}

// ExpiredCount returns the number of documents expired so far.
func (s *Slice) ExpiredCount() int64 {
	return s.expired.Load()
}

// UnallocatedCount returns the number of document slots never claimed.
func (s *Slice) UnallocatedCount() int64 {
	return s.unallocated.Load()
}

// Recyclable reports whether every claimed document in this Slice has
// expired, meaning the Slice carries no more live documents and can be
// reclaimed once its refcount reaches zero.
func (s *Slice) Recyclable() bool {
	committed := int64(s.capacity) - s.unallocated.Load()
	return committed > 0 && s.expired.Load() == committed
}

// Close releases the Slice's Buffer. Only the Recycler should call this,
// and only after RefCount reaches zero (spec §4.G: the Recycler is the
// exclusive destroyer of Slices).
func (s *Slice) Close() error {
	return s.buf.Close()
}
