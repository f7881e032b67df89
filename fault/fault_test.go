package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	msgs []string
}

func (r *recordingLogger) Error(msg string, args ...any) {
	r.msgs = append(r.msgs, msg)
}

func TestFatalPanicsWithInvariantError(t *testing.T) {
	l := &recordingLogger{}
	assert.PanicsWithValue(t, &InvariantError{Msg: "unsupported node variant"}, func() {
		Fatal(l, "unsupported node variant")
	})
	assert.Equal(t, []string{"unsupported node variant"}, l.msgs)
}

func TestFatalNilLoggerStillPanics(t *testing.T) {
	assert.Panics(t, func() {
		Fatal(nil, "boom")
	})
}

func TestWrapIOPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("disk offline")
	wrapped := WrapIO("writeSlice", cause)
	assert.True(t, errors.Is(wrapped, cause))
	assert.Equal(t, "writeSlice: disk offline", wrapped.Error())
}

func TestWrapIONilIsNil(t *testing.T) {
	assert.NoError(t, WrapIO("op", nil))
}

func TestRecoverableErrorsAreDistinguishable(t *testing.T) {
	err := fmt.Errorf("lookup: %w", ErrUnknownTreatment)
	assert.True(t, errors.Is(err, ErrUnknownTreatment))
	assert.False(t, errors.Is(err, ErrSliceFull))
}
