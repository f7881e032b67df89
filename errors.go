package bitfunnel

import (
	"github.com/hausdorff/bitfunnel/fault"
)

// ErrUnknownTreatment, ErrSliceFull, and ErrDocumentNotActive are aliased
// from the fault package so callers of this package's public API can
// errors.Is/errors.As against them without importing fault directly.
// ErrArenaExhausted is deliberately not aliased here: arena exhaustion is
// fatal (spec.md §4.H/I/J), surfaced through fault.Fatal, not returned.
var (
	// ErrUnknownTreatment names a treatment identifier the caller's
	// registry doesn't recognize. Decoding a TermTable with such an id is
	// fatal; this error is not returned for it.
	ErrUnknownTreatment = fault.ErrUnknownTreatment

	// ErrSliceFull is returned when a Slice has no remaining document
	// slots, or a DocTable's variable-size blob region is exhausted.
	ErrSliceFull = fault.ErrSliceFull

	// ErrDocumentNotActive names a document whose document-active bit has
	// not been set yet. No function in this module returns it: queries skip
	// inactive documents and postings do not check the bit.
	ErrDocumentNotActive = fault.ErrDocumentNotActive
)
