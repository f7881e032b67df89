// Package termtable maps a term.Term to the rows it is indexed under. A
// Treatment decides, per term, how many private and shared rows to spend on
// it at which ranks; the TermTable turns that decision into concrete
// row.RowIds and remembers the assignment so repeated lookups are stable.
package termtable

import (
	"math"
	"math/bits"

	"github.com/hausdorff/bitfunnel/core"
	"github.com/hausdorff/bitfunnel/term"
)

// TreatmentId tags a Treatment implementation in the persisted TermTable
// format, so a reader can reconstruct the right Treatment without encoding
// its parameters redundantly alongside every row assignment.
type TreatmentId uint8

const (
	TreatmentIdPrivateRank0 TreatmentId = iota
	TreatmentIdPrivateSharedRank0
	TreatmentIdPrivateSharedRank0And3
)

// RowAssignment is the number of private and shared rows a Treatment wants
// allocated for a term at one rank.
type RowAssignment struct {
	Rank    core.Rank
	Private int
	Shared  int
}

// RowConfiguration is the full set of row assignments, across ranks, a
// Treatment wants for one term.
type RowConfiguration []RowAssignment

// Treatment decides a term's row budget. Implementations must be
// deterministic: the same Term must always produce the same
// RowConfiguration, since the TermTable memoizes assignments keyed only by
// term.Key() and never re-derives them from corpus state.
type Treatment interface {
	RowConfiguration(t term.Term) RowConfiguration
	Identifier() TreatmentId
}

// PrivateRank0Treatment gives every term exactly one private row at rank 0.
// It uses no shared rows; the private row is hashed from the term key into
// a fixed-size per-rank pool, so two terms can still land on the same row.
type PrivateRank0Treatment struct{}

func NewPrivateRank0Treatment() PrivateRank0Treatment {
	return PrivateRank0Treatment{}
}

func (PrivateRank0Treatment) RowConfiguration(term.Term) RowConfiguration {
	return RowConfiguration{{Rank: 0, Private: 1}}
}

func (PrivateRank0Treatment) Identifier() TreatmentId {
	return TreatmentIdPrivateRank0
}

// frequencyBandCount is the number of document-frequency buckets a shared
// treatment partitions terms into. The bucket for a term is derived from its
// hash rather than a measured corpus frequency, since per-term document
// frequency is produced by an offline statistics pass outside this module's
// scope (spec Non-goals); this keeps the treatment fully deterministic from
// the Term alone.
const frequencyBandCount = 8

func frequencyBand(t term.Term) int {
	return bits.Len64(t.Hash) % frequencyBandCount
}

// rowsForBand returns the number of rows (private + shared) a band needs so
// that density^k <= 1/snr, where density doubles with each higher band and
// saturates at 0.5 (a bit that is set half the time carries no more benefit
// from further doubling).
func rowsForBand(density, snr float64, bandIdx int) int {
	d := density * math.Pow(2, float64(bandIdx))
	if d > 0.5 {
		d = 0.5
	}
	if d <= 0 {
		return 1
	}
	k := math.Ceil(math.Log(snr) / math.Log(1/d))
	if k < 1 {
		k = 1
	}
	return int(k)
}

// PrivateSharedRank0Treatment gives every term one private row at rank 0
// plus k-1 shared rank-0 rows drawn from a fixed-size pool, where k grows
// with the term's frequency band so that the combined shared rows keep the
// false-positive rate of a row hit below 1/snr.
type PrivateSharedRank0Treatment struct {
	density float64
	snr     float64
}

func NewPrivateSharedRank0Treatment(density, snr float64) *PrivateSharedRank0Treatment {
	return &PrivateSharedRank0Treatment{density: density, snr: snr}
}

func (t *PrivateSharedRank0Treatment) RowConfiguration(term term.Term) RowConfiguration {
	k := rowsForBand(t.density, t.snr, frequencyBand(term))
	return RowConfiguration{{Rank: 0, Private: 1, Shared: k - 1}}
}

func (*PrivateSharedRank0Treatment) Identifier() TreatmentId {
	return TreatmentIdPrivateSharedRank0
}

// PrivateSharedRank0And3Treatment splits terms at the midpoint frequency
// band: rarer terms (low bands) get PrivateSharedRank0Treatment's rank-0
// configuration, while frequent terms (high bands) move to rank 3, where
// each row bit already covers 8 documents, cutting the number of row words
// a query must read for a common term.
type PrivateSharedRank0And3Treatment struct {
	density float64
	snr     float64
}

func NewPrivateSharedRank0And3Treatment(density, snr float64) *PrivateSharedRank0And3Treatment {
	return &PrivateSharedRank0And3Treatment{density: density, snr: snr}
}

func (t *PrivateSharedRank0And3Treatment) RowConfiguration(term term.Term) RowConfiguration {
	band := frequencyBand(term)
	k := rowsForBand(t.density, t.snr, band)
	rank := core.Rank(0)
	if band >= frequencyBandCount/2 {
		rank = 3
	}
	return RowConfiguration{{Rank: rank, Private: 1, Shared: k - 1}}
}

func (*PrivateSharedRank0And3Treatment) Identifier() TreatmentId {
	return TreatmentIdPrivateSharedRank0And3
}
