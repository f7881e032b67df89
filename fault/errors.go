package fault

import "errors"

// Recoverable errors: conditions a caller is expected to handle, not bugs.
// These are plain sentinel values for errors.Is; the error WrapIO returns
// implements Unwrap so the underlying I/O cause stays reachable.
var (
	// ErrUnknownTreatment names a treatment identifier the caller's
	// registry doesn't recognize. termtable.ReadTermTableFrom treats that
	// case as fatal (fault.Fatal) and does not return this error.
	ErrUnknownTreatment = errors.New("termtable: unknown treatment identifier")

	// ErrSliceFull is returned when a Slice has no remaining document
	// slots, or a DocTable's variable-size blob region is exhausted.
	ErrSliceFull = errors.New("slice: full")

	// ErrDocumentNotActive names a document whose document-active bit has
	// not been set yet. No function in this module returns it: the Matcher
	// skips inactive documents and AddPosting does not check the bit.
	ErrDocumentNotActive = errors.New("shard: document not active")
)

// WrapIO wraps an I/O error from the FileSystem interface with op context,
// without retrying: the core never retries I/O internally (spec: "no
// retries inside the core").
func WrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ioError{op: op, cause: err}
}

type ioError struct {
	op    string
	cause error
}

func (e *ioError) Error() string {
	return e.op + ": " + e.cause.Error()
}

func (e *ioError) Unwrap() error {
	return e.cause
}
