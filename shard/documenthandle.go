// Package shard owns the per-shard collection of Slices, the document-active
// publication point, and the non-owning DocumentHandle queries and
// ingestion workers use to address one document across shard/slice/index
// boundaries without holding a live pointer into a Slice.
package shard

import (
	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/row"
	"github.com/hausdorff/bitfunnel/slice"
	"github.com/hausdorff/bitfunnel/term"
)

// DocumentHandle addresses a single document by coordinates, not by
// pointer, so it stays valid even across a Slice being recycled out from
// under it (the caller re-resolves through the owning Shard on each use
// rather than caching a *slice.Slice). This replaces the original's
// slice-pointer-embedded-in-buffer trick (spec §9 REDESIGN FLAGS).
type DocumentHandle struct {
	shardID  core.ShardId
	sliceIdx int
	doc      core.DocIndex
	resolver shardResolver
}

// shardResolver is the subset of IngestionIndex a DocumentHandle needs to
// resolve itself back to a live Shard/Slice pair.
type shardResolver interface {
	shardAt(core.ShardId) *Shard
}

func newDocumentHandle(shardID core.ShardId, sliceIdx int, doc core.DocIndex, r shardResolver) DocumentHandle {
	return DocumentHandle{shardID: shardID, sliceIdx: sliceIdx, doc: doc, resolver: r}
}

// ShardId, SliceIndex, and DocIndex expose the handle's coordinates.
func (h DocumentHandle) ShardId() core.ShardId   { return h.shardID }
func (h DocumentHandle) SliceIndex() int         { return h.sliceIdx }
func (h DocumentHandle) DocIndex() core.DocIndex { return h.doc }

func (h DocumentHandle) resolve() *Shard {
	return h.resolver.shardAt(h.shardID)
}

// AddPosting sets the rows t is indexed under, in this document's Slice.
func (h DocumentHandle) AddPosting(t term.Term) {
	s := h.resolve()
	rows := s.termTable.GetRows(t)
	buf := s.sliceAt(h.sliceIdx).Buffer()
	for _, r := range rows {
		rt, ok := s.sliceAt(h.sliceIdx).RowTable(r.Rank)
		if !ok {
			continue
		}
		slice.SetBit(buf, rt, r.Index, h.doc)
	}
}

// AssertFact records a boolean fact about this document, which is encoded
// as a term with GramSize 0, StreamId 0 the same way AddPosting encodes a
// text posting.
func (h DocumentHandle) AssertFact(factID uint64) {
	h.AddPosting(term.FactTerm(factID))
}

// GetBit reports whether r's bit is set for this document.
func (h DocumentHandle) GetBit(r row.RowId) bool {
	s := h.resolve()
	sl := s.sliceAt(h.sliceIdx)
	rt, ok := sl.RowTable(r.Rank)
	if !ok {
		return false
	}
	return slice.GetBit(sl.Buffer(), rt, r.Index, h.doc)
}

// AllocateVariableSizeBlob carves n bytes out of this document's Slice's
// blob region.
func (h DocumentHandle) AllocateVariableSizeBlob(n int) ([]byte, int, error) {
	s := h.resolve()
	sl := s.sliceAt(h.sliceIdx)
	return sl.DocTable().AllocateVariableSizeBlob(sl.Buffer(), n)
}

// GetVariableSizeBlob returns a previously allocated blob by offset.
func (h DocumentHandle) GetVariableSizeBlob(offset, n int) []byte {
	s := h.resolve()
	sl := s.sliceAt(h.sliceIdx)
	return sl.DocTable().GetVariableSizeBlob(sl.Buffer(), offset, n)
}

// GetFixedSizeBlob returns this document's fixed-size blob slot.
func (h DocumentHandle) GetFixedSizeBlob() []byte {
	s := h.resolve()
	sl := s.sliceAt(h.sliceIdx)
	return sl.DocTable().GetFixedSizeBlob(sl.Buffer(), h.doc)
}

// Activate publishes this document by setting its document-active bit
// under the Shard's mutex, which IsActive also takes, so any query that
// reads the bit after this returns sees it set. Activating
// a document twice is a bug, not a recoverable condition.
func (h DocumentHandle) Activate() {
	h.resolve().activate(h.sliceIdx, h.doc)
}

// Expire clears this document's document-active bit, then marks its Slice
// slot expired so the Recycler can eventually reclaim it once every slot
// in the Slice has expired. Expiring a document twice is a bug.
func (h DocumentHandle) Expire() {
	h.resolve().expire(h.sliceIdx, h.doc)
}
