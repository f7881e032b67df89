// Package fault distinguishes the two error families the core uses: typed
// recoverable errors callers can inspect with errors.Is/errors.As, and
// invariant violations, which are bugs rather than conditions a caller can
// recover from.
package fault

import "fmt"

// InvariantError marks a violated invariant: a condition the core assumes
// can never happen and does not attempt to recover from.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return e.Msg
}

// ErrorLogger is the minimal logging surface Fatal needs. The concrete
// *bitfunnel.Logger satisfies it without fault importing the root package.
type ErrorLogger interface {
	Error(msg string, args ...any)
}

// Fatal logs msg at Error level on l with the given slog-style key/value
// pairs, then panics with an *InvariantError carrying msg. It never returns.
// Callers at trust boundaries (a TaskPool worker loop, a REPL adapter) may
// recover the panic and convert it to a process-visible abort; nothing
// inside the core recovers from its own invariant violations.
func Fatal(l ErrorLogger, msg string, args ...any) {
	if l != nil {
		l.Error(msg, args...)
	}
	if len(args) == 0 {
		panic(&InvariantError{Msg: msg})
	}
	panic(&InvariantError{Msg: fmt.Sprintf("%s %v", msg, args)})
}
