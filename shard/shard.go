package shard

import (
	"sync"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/row"
	"github.com/hausdorff/bitfunnel/slice"
	"github.com/hausdorff/bitfunnel/termtable"
)

// Shard owns an ordered, append-only list of Slices sharing one TermTable
// and one set of RowTable layouts. New documents are always claimed from
// the newest Slice; once it fills, ingestion appends a fresh one.
type Shard struct {
	mu                sync.Mutex
	slices            []*slice.Slice
	termTable         *termtable.TermTable
	sliceCfg          slice.Config
	documentActiveRow row.RowId
	logger            fault.ErrorLogger
}

// NewShard creates an empty Shard, reserving a private rank-0 row on tt for
// publication: a document's bit there is the sole signal a query trusts
// that the document's postings are visible (spec §5). The reservation
// happens before any term's own private rows are assigned, so no term can
// ever alias the document-active row.
func NewShard(tt *termtable.TermTable, sliceCfg slice.Config, logger fault.ErrorLogger) *Shard {
	activeIdx := tt.ReservePrivate(0)
	if sliceCfg.RowCounts == nil {
		sliceCfg.RowCounts = map[core.Rank]core.RowIndex{}
	}
	if sliceCfg.RowCounts[0] < activeIdx+1 {
		sliceCfg.RowCounts[0] = activeIdx + 1
	}
	return &Shard{
		termTable:         tt,
		sliceCfg:          sliceCfg,
		documentActiveRow: row.RowId{Rank: 0, Index: activeIdx},
		logger:            logger,
	}
}

func (s *Shard) sliceAt(idx int) *slice.Slice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slices[idx]
}

// Claim reserves a fresh document slot, appending a new Slice if the
// current one is full, and returns a non-owning handle to it plus the
// handle's external DocId slot already set.
func (s *Shard) Claim(shardID core.ShardId, r shardResolver, id core.DocId) (DocumentHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.slices) == 0 || s.slices[len(s.slices)-1] == nil {
		if err := s.appendSliceLocked(); err != nil {
			return DocumentHandle{}, err
		}
	}

	idx := len(s.slices) - 1
	sl := s.slices[idx]
	doc, err := sl.Claim()
	if err != nil {
		if err := s.appendSliceLocked(); err != nil {
			return DocumentHandle{}, err
		}
		idx = len(s.slices) - 1
		sl = s.slices[idx]
		doc, err = sl.Claim()
		if err != nil {
			return DocumentHandle{}, err
		}
	}

	sl.DocTable().SetDocId(sl.Buffer(), doc, id)
	return newDocumentHandle(shardID, idx, doc, r), nil
}

func (s *Shard) appendSliceLocked() error {
	sl, err := slice.New(s.sliceCfg)
	if err != nil {
		return err
	}
	s.slices = append(s.slices, sl)
	return nil
}

// activate sets the document-active bit for (sliceIdx, doc). Unlike a
// posting row, the document-active row is shared across every document in
// its 64-document word (spec §5), so the read-modify-write that checks
// "not already active" and sets the bit has to run under Shard.mu start to
// finish — two documents in the same word activating at once would
// otherwise be a lost-update race, not just a reordering one. Activating
// twice is a fatal invariant violation.
func (s *Shard) activate(sliceIdx int, doc core.DocIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slices[sliceIdx]
	rt, ok := sl.RowTable(s.documentActiveRow.Rank)
	if !ok {
		fault.Fatal(s.logger, "shard: missing document-active row table")
	}
	if slice.GetBit(sl.Buffer(), rt, s.documentActiveRow.Index, doc) {
		fault.Fatal(s.logger, "shard: document activated twice", "doc", doc)
	}
	slice.SetBit(sl.Buffer(), rt, s.documentActiveRow.Index, doc)
}

// expire clears the document-active bit, then marks the document's Slice
// slot expired, all under Shard.mu for the same reason activate takes it:
// the document-active row is shared, not document-partitioned. Expiring
// twice, or expiring a document never activated, is a fatal invariant
// violation.
func (s *Shard) expire(sliceIdx int, doc core.DocIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slices[sliceIdx]
	rt, ok := sl.RowTable(s.documentActiveRow.Rank)
	if !ok {
		fault.Fatal(s.logger, "shard: missing document-active row table")
	}
	if !slice.GetBit(sl.Buffer(), rt, s.documentActiveRow.Index, doc) {
		fault.Fatal(s.logger, "shard: document expired without having been activated", "doc", doc)
	}
	slice.ClearBit(sl.Buffer(), rt, s.documentActiveRow.Index, doc)
	sl.Expire(doc)
}

// IsActive reports whether doc's document-active bit is set. Reading it
// under the same Shard.mu activate/expire write under is what makes this a
// consistent read of a bit shared with up to 63 other documents, rather
// than a racing plain load.
func (s *Shard) IsActive(sliceIdx int, doc core.DocIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slices[sliceIdx]
	rt, ok := sl.RowTable(s.documentActiveRow.Rank)
	if !ok {
		return false
	}
	return slice.GetBit(sl.Buffer(), rt, s.documentActiveRow.Index, doc)
}

// Slices returns a snapshot of the Shard's current Slice list, for the
// Matcher to walk. A slot whose Slice has been handed to the Recycler via
// Recycle is nil; callers must skip nil entries rather than dereference
// them.
func (s *Shard) Slices() []*slice.Slice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*slice.Slice, len(s.slices))
	copy(out, s.slices)
	return out
}

// Recycle removes the Slice at sliceIndex from this Shard's slice list and
// returns it, if it is recyclable (every claimed document has expired) and
// has no outstanding references. It reports false without removing
// anything otherwise.
//
// Removing the Slice here, under the same lock Slices and Claim take, is
// what keeps a query that calls Slices after this point from ever
// observing a Slice the Recycler is about to free (spec: the Recycler is
// the exclusive destroyer of Slices, and a destroyed Slice must never be
// visible to a later query).
func (s *Shard) Recycle(sliceIndex int) (*slice.Slice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sliceIndex < 0 || sliceIndex >= len(s.slices) {
		return nil, false
	}
	sl := s.slices[sliceIndex]
	if sl == nil || !sl.Recyclable() || sl.RefCount() != 0 {
		return nil, false
	}
	s.slices[sliceIndex] = nil
	return sl, true
}

// TermTable returns this Shard's TermTable.
func (s *Shard) TermTable() *termtable.TermTable {
	return s.termTable
}
