package ringpipe

// joinState records that a Pipe is delegating all further writes to
// another pipe's writer half, optionally forwarding close. It is installed
// on the *source* pipe: src.join != nil means "src's writes now go to
// js.delegateTo".
//
// delegateTo is a *PipeWriter, not a *Pipe: every write-path operation
// (Write, WriteAvailable, the zero-copy variants, the primitive writers)
// is defined on PipeWriter, so redirecting a write means calling through
// that wrapper rather than the bare Pipe core.
type joinState struct {
	delegateTo    *PipeWriter
	delegateClose bool
	done          chan struct{}
}

// resolveDelegation walks a chain of joins starting at p and returns the
// pipe at the end of it — the effective destination once every intermediate
// splice has been followed. A pipe with no join field set is its own end of
// chain.
func resolveDelegation(p *Pipe) *Pipe {
	for {
		j := p.join.Load()
		if j == nil {
			return p
		}
		p = j.delegateTo.p
	}
}

// JoinFrom splices src's future writes into dst. If delegateClose is true,
// closing src later also closes dst with the same cause. JoinFrom forbids
// self-join, including through an existing chain.
func (dst *Pipe) JoinFrom(src *Pipe, delegateClose bool) error {
	if resolveDelegation(src) == dst || resolveDelegation(dst) == src || src == dst {
		return newIllegalStateError("self-join")
	}

	src.mu.Lock()
	if src.join.Load() != nil {
		src.mu.Unlock()
		return newIllegalStateError("source already joined")
	}
	if src.state == stateTerminated {
		cause, _ := src.closed.isSet()
		src.mu.Unlock()
		if delegateClose {
			return dst.CloseWithCause(cause)
		}
		return nil
	}
	if dstCause, dstClosed := dst.closed.isSet(); dstClosed {
		src.mu.Unlock()
		if dstCause != nil {
			_ = src.CloseWithCause(dstCause)
			return dstCause
		}
		_ = src.Flush()
		return nil
	}

	js := &joinState{delegateTo: &PipeWriter{p: dst}, delegateClose: delegateClose, done: make(chan struct{})}
	src.join.Store(js)
	src.writeSlot.broadcast()
	src.readSlot.broadcast()

	releasable := src.tryCompleteJoiningLocked(js)
	src.mu.Unlock()

	if releasable {
		return nil
	}
	go src.copyDirectJoin(js)
	return nil
}

// tryCompleteJoiningLocked implements the fast path: if src's buffer is
// already idle and empty there is nothing to drain, so the source can be
// terminated immediately. Must be called with src.mu held.
func (src *Pipe) tryCompleteJoiningLocked(js *joinState) bool {
	if src.state != stateIdleEmpty && src.state != stateIdleNonEmpty {
		return false
	}
	if src.backing != nil && (!src.capacity.isEmpty() || src.capacity.pendingToFlush != 0) {
		return false
	}
	src.terminateLocked(nil)
	src.writeSlot.broadcast()
	src.readSlot.broadcast()
	close(js.done)
	return true
}

// copyDirectJoin drains any bytes already buffered in src into js.delegateTo
// and then terminates src. It is the fallback bulk-copy path for a source
// that still has buffered bytes at join time, and it is the only reader of
// src while src is joined.
//
// copyDirectJoin never holds src.mu and dst.mu simultaneously: it reads a
// chunk out of src under src.mu, releases it, then writes that chunk into
// dst under dst.mu. This sidesteps any lock-ordering hazard between the two
// independent pipes at the cost of not being a single atomic splice, which
// is fine here because src is already unreachable to new writers (redirect
// happens in PipeWriter.Write once src.join is set).
func (src *Pipe) copyDirectJoin(js *joinState) {
	defer close(js.done)
	buf := make([]byte, 4096)
	for {
		n, err := src.readAvailableDrain(buf)
		if n > 0 {
			if _, werr := js.delegateTo.WriteFully(buf[:n]); werr != nil {
				break
			}
		}
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}
	src.mu.Lock()
	src.terminateLocked(nil)
	src.writeSlot.broadcast()
	src.readSlot.broadcast()
	src.mu.Unlock()
}

// readAvailableDrain is a package-internal variant of ReadAvailable used
// only by the join drain loop: it does not consult src.join (src is by
// definition already joined here). An open pipe with no buffer yet reads as
// (0, nil); a terminated one returns ErrClosedReceiveChannel or the close
// cause.
func (p *Pipe) readAvailableDrain(dst []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	backing, err := p.setupStateForRead()
	if err != nil {
		if err == errNoDataYet {
			return 0, nil
		}
		return 0, err
	}
	n := p.readAsMuchAsPossibleLocked(backing, dst)
	p.restoreStateAfterRead()
	if n > 0 {
		p.writeSlot.signal()
	}
	return n, nil
}
