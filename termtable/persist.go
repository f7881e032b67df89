package termtable

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/fault"
	"github.com/hausdorff/bitfunnel/row"
)

// termTableMagic and termTableVersion tag the persisted format so a reader
// can reject a file that isn't a TermTable, or one written by an
// incompatible version, before trusting any of the payload that follows.
const (
	termTableMagic   uint32 = 0x42465454 // "BFTT"
	termTableVersion uint32 = 2
)

// header is the fixed-size prefix of a persisted TermTable: magic, version,
// the treatment identifier, the number of distinct ranks with an allocated
// shared pool, private pool, or reservation counter, and the number of
// terms whose row assignments follow.
type header struct {
	Magic             uint32
	Version           uint32
	Treatment         uint8
	_                 [3]byte
	RankCount         uint32
	PrivateRankCount  uint32
	ReservedRankCount uint32
	TermCount         uint32
}

// WriteTo encodes the TermTable's treatment id, its per-rank shared and
// private pool sizes, its per-rank ReservePrivate counters, and every
// term-to-rows assignment made so far, little-endian.
func (tt *TermTable) WriteTo(w io.Writer) (int64, error) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	var total int64

	h := header{
		Magic:             termTableMagic,
		Version:           termTableVersion,
		Treatment:         uint8(tt.treatment.Identifier()),
		RankCount:         uint32(len(tt.poolSize)),
		PrivateRankCount:  uint32(len(tt.privatePoolSize)),
		ReservedRankCount: uint32(len(tt.reservedNext)),
		TermCount:         uint32(len(tt.assigned)),
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return total, fmt.Errorf("termtable: write header: %w", err)
	}
	total += int64(binary.Size(h))

	for rank, size := range tt.poolSize {
		if err := binary.Write(w, binary.LittleEndian, uint8(rank)); err != nil {
			return total, fmt.Errorf("termtable: write pool rank: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(size)); err != nil {
			return total, fmt.Errorf("termtable: write pool size: %w", err)
		}
		total += 5
	}

	for rank, size := range tt.privatePoolSize {
		if err := binary.Write(w, binary.LittleEndian, uint8(rank)); err != nil {
			return total, fmt.Errorf("termtable: write private pool rank: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(size)); err != nil {
			return total, fmt.Errorf("termtable: write private pool size: %w", err)
		}
		total += 5
	}

	for rank, next := range tt.reservedNext {
		if err := binary.Write(w, binary.LittleEndian, uint8(rank)); err != nil {
			return total, fmt.Errorf("termtable: write reserved rank: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(next)); err != nil {
			return total, fmt.Errorf("termtable: write reserved next: %w", err)
		}
		total += 5
	}

	for key, rows := range tt.assigned {
		if err := binary.Write(w, binary.LittleEndian, key); err != nil {
			return total, fmt.Errorf("termtable: write term key: %w", err)
		}
		total += 8
		if err := binary.Write(w, binary.LittleEndian, uint32(len(rows))); err != nil {
			return total, fmt.Errorf("termtable: write row count: %w", err)
		}
		total += 4
		for _, r := range rows {
			if err := binary.Write(w, binary.LittleEndian, uint8(r.Rank)); err != nil {
				return total, fmt.Errorf("termtable: write row rank: %w", err)
			}
			if err := binary.Write(w, binary.LittleEndian, uint32(r.Index)); err != nil {
				return total, fmt.Errorf("termtable: write row index: %w", err)
			}
			recycled := uint8(0)
			if r.Recycled {
				recycled = 1
			}
			if err := binary.Write(w, binary.LittleEndian, recycled); err != nil {
				return total, fmt.Errorf("termtable: write row recycled flag: %w", err)
			}
			total += 6
		}
	}

	return total, nil
}

// ReadTermTableFrom decodes a TermTable previously written by WriteTo. The
// treatment identifier in the header selects which Treatment the returned
// table is configured with: an id this reader doesn't recognize means the
// file was written by a newer or incompatible build, which is an invariant
// violation, not a recoverable I/O error (spec: "unknown treatment ⇒
// fatal").
func ReadTermTableFrom(r io.Reader, treatmentByID map[TreatmentId]Treatment) (*TermTable, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("termtable: read header: %w", err)
	}
	if h.Magic != termTableMagic {
		return nil, fmt.Errorf("termtable: bad magic %#x", h.Magic)
	}
	if h.Version != termTableVersion {
		return nil, fmt.Errorf("termtable: unsupported version %d", h.Version)
	}

	treatment, ok := treatmentByID[TreatmentId(h.Treatment)]
	if !ok {
		fault.Fatal(nil, "termtable: unknown treatment identifier", "id", h.Treatment)
	}

	tt := New(treatment)

	for i := uint32(0); i < h.RankCount; i++ {
		var rank uint8
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
			return nil, fmt.Errorf("termtable: read pool rank: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("termtable: read pool size: %w", err)
		}
		tt.poolSize[core.Rank(rank)] = core.RowIndex(size)
	}

	for i := uint32(0); i < h.PrivateRankCount; i++ {
		var rank uint8
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
			return nil, fmt.Errorf("termtable: read private pool rank: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("termtable: read private pool size: %w", err)
		}
		tt.privatePoolSize[core.Rank(rank)] = core.RowIndex(size)
	}

	for i := uint32(0); i < h.ReservedRankCount; i++ {
		var rank uint8
		var next uint32
		if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
			return nil, fmt.Errorf("termtable: read reserved rank: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &next); err != nil {
			return nil, fmt.Errorf("termtable: read reserved next: %w", err)
		}
		tt.reservedNext[core.Rank(rank)] = core.RowIndex(next)
	}

	for i := uint32(0); i < h.TermCount; i++ {
		var key uint64
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &key); err != nil {
			return nil, fmt.Errorf("termtable: read term key: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, fmt.Errorf("termtable: read row count: %w", err)
		}
		rows := make(row.Sequence, 0, count)
		for j := uint32(0); j < count; j++ {
			var rank uint8
			var idx uint32
			var recycled uint8
			if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
				return nil, fmt.Errorf("termtable: read row rank: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
				return nil, fmt.Errorf("termtable: read row index: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &recycled); err != nil {
				return nil, fmt.Errorf("termtable: read row recycled flag: %w", err)
			}
			rows = append(rows, row.RowId{Rank: core.Rank(rank), Index: core.RowIndex(idx), Recycled: recycled != 0})
		}
		tt.assigned[key] = rows
	}

	return tt, nil
}
