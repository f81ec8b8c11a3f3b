package ringpipe

// Visitor is a zero-copy callback. It is handed a slice directly over the
// pipe's internal ring — no copy — and must return how many of the leading
// bytes it actually consumed (read visitors) or produced (write visitors).
//
// Go slices are passed by value, so a Visitor cannot resize or re-slice
// the caller's view out from under it; it can only report how many of the
// leading bytes it used, and that count must be in [0, len(view)], checked
// below.
type Visitor func(view []byte) (n int, err error)

// ReadZeroCopy hands the visitor a contiguous view of at least min bytes,
// suspending until that many are available or the pipe closes. Because the
// view must be a single contiguous slice, min is also implicitly bounded
// by the ring's physical wrap boundary; a request that cannot be satisfied
// by one contiguous run even after enough bytes have accumulated returns
// an IllegalStateError naming the shortfall, rather than silently handing
// back less than min.
func (r *PipeReader) ReadZeroCopy(min int, visitor Visitor) (int, error) {
	if r.p.join.Load() != nil {
		return -1, nil
	}
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()

	backing, err := p.acquireReadLeaseLocked()
	if err != nil {
		if err == ErrClosedReceiveChannel {
			return -1, nil
		}
		return 0, err
	}
	defer p.restoreStateAfterRead()

	if werr := p.readSlot.awaitLocked(func() bool {
		if p.capacity.availableForRead >= min {
			return true
		}
		_, closed := p.closed.isSet()
		return closed
	}); werr != nil {
		return 0, werr
	}
	if p.capacity.availableForRead < min {
		cause, _ := p.closed.isSet()
		if cause != nil {
			return 0, cause
		}
		return -1, nil
	}
	return p.runReadVisitorLocked(backing, min, visitor)
}

// ReadAvailableZeroCopy is the non-suspending variant: it returns -1
// immediately, without visiting anything, if fewer than min bytes are
// currently available.
func (r *PipeReader) ReadAvailableZeroCopy(min int, visitor Visitor) (int, error) {
	if r.p.join.Load() != nil {
		return -1, nil
	}
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateIdleEmpty || p.state == stateTerminated {
		if cause, closed := p.closed.isSet(); closed {
			if cause != nil {
				return 0, cause
			}
			return -1, nil
		}
		return -1, nil
	}

	backing, err := p.setupStateForRead()
	if err != nil {
		return 0, err
	}
	defer p.restoreStateAfterRead()

	if p.capacity.availableForRead < min {
		if cause, closed := p.closed.isSet(); closed {
			if cause != nil {
				return 0, cause
			}
			return -1, nil
		}
		return -1, nil
	}
	return p.runReadVisitorLocked(backing, min, visitor)
}

func (p *Pipe) runReadVisitorLocked(backing *backingStore, min int, visitor Visitor) (int, error) {
	contiguous := backing.dataCapacity - backing.readPos
	locked := p.capacity.availableForRead
	if locked > contiguous {
		locked = contiguous
	}
	if locked < min {
		return 0, newIllegalStateError("requested minimum straddles the ring wrap boundary")
	}
	if p.capacity.tryReadAtMost(locked) != locked {
		return 0, newIllegalStateError("capacity accounting drifted on zero-copy read")
	}

	view := backing.data[backing.readPos : backing.readPos+locked]
	consumed, verr := visitor(view)
	if consumed < 0 || consumed > locked {
		p.capacity.refundRead(locked)
		return 0, newIllegalStateError("visitor returned a position outside the offered view")
	}

	backing.advanceRead(consumed)
	p.capacity.completeRead(consumed)
	if refund := locked - consumed; refund > 0 {
		p.capacity.refundRead(refund)
	}
	if consumed > 0 {
		p.totalBytesRead.Add(uint64(consumed))
		p.writeSlot.signal()
	}
	return consumed, verr
}

// WriteZeroCopy hands the visitor a writable contiguous view of at least
// min bytes, suspending until that much write space is available.
func (w *PipeWriter) WriteZeroCopy(min int, visitor Visitor) (int, error) {
	if j := w.p.join.Load(); j != nil {
		return j.delegateTo.WriteZeroCopy(min, visitor)
	}
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()

	backing, err := p.acquireWriteLeaseLocked()
	if err != nil {
		return 0, err
	}
	defer p.restoreStateAfterWrite()

	if werr := p.writeSlot.awaitLocked(func() bool {
		if p.capacity.availableForWrite >= min {
			return true
		}
		_, closed := p.closed.isSet()
		return closed
	}); werr != nil {
		return 0, werr
	}
	if p.capacity.availableForWrite < min {
		cause, _ := p.closed.isSet()
		if cause != nil {
			return 0, cause
		}
		return 0, ErrClosedWriteChannel
	}
	return p.runWriteVisitorLocked(backing, min, visitor)
}

// WriteAvailableZeroCopy is the non-suspending variant: it returns 0
// immediately, without visiting anything, if fewer than min bytes of
// write space are currently free.
func (w *PipeWriter) WriteAvailableZeroCopy(min int, visitor Visitor) (int, error) {
	if j := w.p.join.Load(); j != nil {
		return j.delegateTo.WriteAvailableZeroCopy(min, visitor)
	}
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if cause, closed := p.closed.isSet(); closed {
		if cause != nil {
			return 0, cause
		}
		return 0, ErrClosedWriteChannel
	}
	backing, err := p.acquireWriteLeaseLocked()
	if err != nil {
		return 0, err
	}
	defer p.restoreStateAfterWrite()

	if p.capacity.availableForWrite < min {
		return 0, nil
	}
	return p.runWriteVisitorLocked(backing, min, visitor)
}

func (p *Pipe) runWriteVisitorLocked(backing *backingStore, min int, visitor Visitor) (int, error) {
	contiguous := backing.dataCapacity - backing.writePos
	locked := p.capacity.availableForWrite
	if locked > contiguous {
		locked = contiguous
	}
	if locked < min {
		return 0, newIllegalStateError("requested minimum straddles the ring wrap boundary")
	}
	if p.capacity.tryWriteAtMost(locked) != locked {
		return 0, newIllegalStateError("capacity accounting drifted on zero-copy write")
	}

	view := backing.data[backing.writePos : backing.writePos+locked]
	produced, verr := visitor(view)
	if produced < 0 || produced > locked {
		p.capacity.refundWrite(locked)
		return 0, newIllegalStateError("visitor returned a position outside the offered view")
	}

	backing.advanceWrite(produced)
	p.capacity.completeWrite(produced)
	if refund := locked - produced; refund > 0 {
		p.capacity.refundWrite(refund)
	}
	if produced > 0 {
		p.totalBytesWritten.Add(uint64(produced))
		p.readSlot.signal()
	}
	if verr == nil && (p.autoFlush || p.capacity.isFull()) {
		p.flushLocked()
	}
	return produced, verr
}

// WriteWhile repeatedly hands the visitor a writable view until it returns
// keepGoing=false or an error, or the pipe closes for write.
func (w *PipeWriter) WriteWhile(visitor func(view []byte) (n int, keepGoing bool, err error)) error {
	for {
		keepGoing := true
		var verr error
		_, err := w.WriteZeroCopy(1, func(view []byte) (int, error) {
			n, kg, e := visitor(view)
			keepGoing = kg
			verr = e
			return n, e
		})
		if err != nil {
			return err
		}
		if verr != nil {
			return verr
		}
		if !keepGoing {
			return nil
		}
	}
}

// Session lets a caller perform several zero-copy writes back to back
// while holding a single write lease, avoiding the per-call lease
// acquire/release overhead of separate WriteZeroCopy calls. The Session is
// only valid for the duration of the WriteSuspendSession callback.
type Session struct {
	p       *Pipe
	backing *backingStore
}

// Write behaves like WriteZeroCopy but assumes the write lease and p.mu
// are already held by the enclosing WriteSuspendSession call.
func (s *Session) Write(min int, visitor Visitor) (int, error) {
	if werr := s.p.writeSlot.awaitLocked(func() bool {
		if s.p.capacity.availableForWrite >= min {
			return true
		}
		_, closed := s.p.closed.isSet()
		return closed
	}); werr != nil {
		return 0, werr
	}
	if s.p.capacity.availableForWrite < min {
		cause, _ := s.p.closed.isSet()
		if cause != nil {
			return 0, cause
		}
		return 0, ErrClosedWriteChannel
	}
	return s.p.runWriteVisitorLocked(s.backing, min, visitor)
}

// Flush flushes pending writes from within a session.
func (s *Session) Flush() { s.p.flushLocked() }

// WriteSuspendSession acquires a write lease, runs fn with a Session bound
// to it, flushes, then releases the lease.
func (w *PipeWriter) WriteSuspendSession(fn func(*Session) error) error {
	if j := w.p.join.Load(); j != nil {
		return j.delegateTo.WriteSuspendSession(fn)
	}
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()

	backing, err := p.acquireWriteLeaseLocked()
	if err != nil {
		return err
	}
	defer p.restoreStateAfterWrite()

	err = fn(&Session{p: p, backing: backing})
	p.flushLocked()
	return err
}
