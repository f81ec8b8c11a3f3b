package ringpipe

import "sync"

// slot is a single cell that holds at most one parked waiter: a boolean
// "someone is waiting here" flag guarded by the same mutex as the rest of
// the pipe, with parking done via sync.Cond.Wait under that mutex.
//
// The single-waiter invariant is enforced explicitly: a second goroutine
// trying to enter the same slot while one is already parked means two
// concurrent readers (or two concurrent writers) are racing on the same
// pipe half, a programming error that fails fast with an IllegalStateError
// instead of silently queueing behind sync.Cond's internal wait list.
type slot struct {
	cond    *sync.Cond
	waiting bool
}

func newSlot(mu *sync.Mutex) *slot {
	return &slot{cond: sync.NewCond(mu)}
}

// awaitLocked blocks, with the pipe mutex held, until predicate reports
// true. It returns immediately without parking if predicate is already
// true. It returns an IllegalStateError if another goroutine is already
// parked in this slot.
func (s *slot) awaitLocked(predicate func() bool) error {
	if predicate() {
		return nil
	}
	if s.waiting {
		return newIllegalStateError("operation already in progress")
	}
	s.waiting = true
	defer func() { s.waiting = false }()
	for !predicate() {
		s.cond.Wait()
	}
	return nil
}

// signal wakes at most the one goroutine parked in this slot, if any.
func (s *slot) signal() {
	s.cond.Signal()
}

// broadcast wakes every goroutine parked in this slot. In steady state at
// most one is ever parked (see awaitLocked), but close/cancel use
// broadcast defensively since it is called outside the normal
// enter/leave discipline.
func (s *slot) broadcast() {
	s.cond.Broadcast()
}
