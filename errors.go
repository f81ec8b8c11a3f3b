package ringpipe

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the pipe's error surface.
var (
	// ErrClosedWriteChannel is returned by writer operations after the
	// channel was closed without a cause.
	ErrClosedWriteChannel = errors.New("ringpipe: write to closed channel")

	// ErrClosedReceiveChannel is returned by readFully-style operations
	// that hit end-of-stream before satisfying their request.
	ErrClosedReceiveChannel = errors.New("ringpipe: closed receive channel")

	// ErrCancellation is used as the close cause when a channel is
	// cancelled without an explicit cause.
	ErrCancellation = errors.New("ringpipe: cancelled")

	// errJoined marks a writer-side lease attempted on a pipe that has
	// become a join source; acquireWriteLeaseLocked turns it into an
	// IllegalStateError, so it never escapes to a caller as is.
	errJoined = errors.New("ringpipe: writer delegated via join")

	// errNoDataYet signals setupStateForRead found IdleEmpty with no close
	// recorded: the caller should suspend, not fail.
	errNoDataYet = errors.New("ringpipe: no data yet")
)

// IllegalStateError reports an API misuse: concurrent readers, concurrent
// writers, or a zero-copy visitor that reported a byte count outside the
// view it was offered.
type IllegalStateError struct {
	Msg string
}

func newIllegalStateError(msg string) *IllegalStateError {
	return &IllegalStateError{Msg: msg}
}

func (e *IllegalStateError) Error() string {
	return "ringpipe: illegal state: " + e.Msg
}

// TooLongLineError is raised by ReadUTF8Line/ReadUTF8LineTo when no line
// terminator appears within the configured limit.
type TooLongLineError struct {
	Limit int
}

func (e *TooLongLineError) Error() string {
	return fmt.Sprintf("ringpipe: line exceeds limit of %d bytes", e.Limit)
}

// MalformedInputError is raised by the text-line helpers when the bytes
// consumed do not form valid UTF-8.
type MalformedInputError struct {
	Offset int
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("ringpipe: malformed UTF-8 at offset %d", e.Offset)
}
