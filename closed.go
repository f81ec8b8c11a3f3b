package ringpipe

import "sync/atomic"

// closeInfo is the payload of a closedMarker once it has been set. cause is
// nil for a normal (EOF-style) close and non-nil for an abortive close.
type closeInfo struct {
	cause error
}

// closedMarker is a one-shot, lock-free sticky record: None -> Some(cause?)
// exactly once. It is read from both the reader and writer goroutines
// without holding Pipe.mu (isClosedForRead/isClosedForWrite are meant to be
// cheap), so it is backed by an atomic.Pointer rather than the mutex used
// for the rest of the protocol.
type closedMarker struct {
	v atomic.Pointer[closeInfo]
}

// trySet installs cause as the sticky close cause. It returns true if this
// call won the race and installed the value, false if the marker was
// already set (in which case the existing value is left untouched).
func (m *closedMarker) trySet(cause error) bool {
	return m.v.CompareAndSwap(nil, &closeInfo{cause: cause})
}

// isSet reports whether the marker has been set, and if so the recorded
// cause (nil for a normal close).
func (m *closedMarker) isSet() (cause error, ok bool) {
	info := m.v.Load()
	if info == nil {
		return nil, false
	}
	return info.cause, true
}
