package ringpipe

import "io"

// readAsMuchAsPossibleLocked loops reserving and copying contiguous runs
// out of backing until either dst is full or the capacity has nothing left
// to give. Must be called with p.mu held and a read lease already acquired.
func (p *Pipe) readAsMuchAsPossibleLocked(backing *backingStore, dst []byte) int {
	total := 0
	for len(dst) > 0 {
		contiguous := backing.dataCapacity - backing.readPos
		want := min(len(dst), contiguous)
		n := p.capacity.tryReadAtMost(want)
		if n == 0 {
			break
		}
		copy(dst[:n], backing.data[backing.readPos:backing.readPos+n])
		backing.advanceRead(n)
		p.capacity.completeRead(n)
		dst = dst[n:]
		total += n
	}
	return total
}

// writeAsMuchAsPossibleLocked is the write-side mirror of
// readAsMuchAsPossibleLocked. Must be called with p.mu held and a write
// lease already acquired.
func (p *Pipe) writeAsMuchAsPossibleLocked(backing *backingStore, src []byte) int {
	total := 0
	for len(src) > 0 {
		contiguous := backing.dataCapacity - backing.writePos
		want := min(len(src), contiguous)
		n := p.capacity.tryWriteAtMost(want)
		if n == 0 {
			break
		}
		copy(backing.data[backing.writePos:backing.writePos+n], src[:n])
		p.capacity.completeWrite(n)
		backing.advanceWrite(n)
		src = src[n:]
		total += n
	}
	return total
}

// acquireWriteLeaseLocked wraps setupStateForWrite, collapsing the
// defensive errJoined case (a race between JoinFrom and a concurrent
// writer, which the strict single-writer invariant means callers should
// not hit in practice) into an IllegalStateError rather than trying to
// transparently redirect while already holding p.mu.
func (p *Pipe) acquireWriteLeaseLocked() (*backingStore, error) {
	backing, err := p.setupStateForWrite()
	if err == errJoined {
		return nil, newIllegalStateError("writer raced with JoinFrom")
	}
	return backing, err
}

// acquireReadLeaseLocked wraps setupStateForRead, additionally waiting out
// the IdleEmpty-with-no-close case (nothing has ever been written yet) on
// the read slot until a writer creates a backing store or the pipe closes.
func (p *Pipe) acquireReadLeaseLocked() (*backingStore, error) {
	for {
		backing, err := p.setupStateForRead()
		if err != errNoDataYet {
			return backing, err
		}
		if werr := p.readSlot.awaitLocked(func() bool {
			if p.state != stateIdleEmpty {
				return true
			}
			_, closed := p.closed.isSet()
			return closed
		}); werr != nil {
			return nil, werr
		}
	}
}

// Read implements io.Reader. It blocks until at least one byte is
// available or the pipe closes, then returns whatever is available
// without waiting to fill dst completely.
func (r *PipeReader) Read(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if r.p.join.Load() != nil {
		return 0, io.EOF
	}
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()

	backing, err := p.acquireReadLeaseLocked()
	if err != nil {
		if err == ErrClosedReceiveChannel {
			return 0, io.EOF
		}
		return 0, err
	}
	defer p.restoreStateAfterRead()

	if werr := p.readSlot.awaitLocked(func() bool {
		if p.capacity.availableForRead > 0 {
			return true
		}
		_, closed := p.closed.isSet()
		return closed
	}); werr != nil {
		return 0, werr
	}

	if p.capacity.availableForRead == 0 {
		cause, _ := p.closed.isSet()
		if cause != nil {
			return 0, cause
		}
		return 0, io.EOF
	}

	n := p.readAsMuchAsPossibleLocked(backing, dst)
	p.totalBytesRead.Add(uint64(n))
	if n > 0 {
		p.writeSlot.signal()
	}
	return n, nil
}

// ReadFull suspends until dst is completely filled or the pipe closes. On
// premature close it returns however many bytes it managed to read
// together with ErrClosedReceiveChannel, matching io.ReadFull's contract
// but with the pipe's own sentinel error.
func (r *PipeReader) ReadFull(dst []byte) (int, error) {
	total := 0
	for total < len(dst) {
		n, err := r.Read(dst[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				return total, ErrClosedReceiveChannel
			}
			return total, err
		}
		if n == 0 {
			// defensive: Read never returns (0, nil), but avoid a busy loop
			// if that invariant is ever violated.
			return total, newIllegalStateError("Read returned no bytes and no error")
		}
	}
	return total, nil
}

// ReadAvailable returns immediately with whatever is available: n>0 bytes
// read, 0 if nothing is ready yet but the pipe is still open, or -1 if the
// pipe is closed and has nothing left to give.
func (r *PipeReader) ReadAvailable(dst []byte) (int, error) {
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
		if p.state == stateTerminated {
			return -1, nil
		}
		return 0, nil
	}

	backing, err := p.setupStateForRead()
	if err != nil {
		return 0, err
	}
	defer p.restoreStateAfterRead()

	n := p.readAsMuchAsPossibleLocked(backing, dst)
	if n > 0 {
		p.totalBytesRead.Add(uint64(n))
		p.writeSlot.signal()
		return n, nil
	}
	if cause, closed := p.closed.isSet(); closed {
		if cause != nil {
			return 0, cause
		}
		return -1, nil
	}
	return 0, nil
}

// WriteTo implements io.WriterTo, streaming bytes to w until the pipe
// closes cleanly or either side errors.
func (r *PipeReader) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
			if wn != n {
				return total, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

// Discard reads and drops up to maxBytes bytes, blocking as Read does. It
// stops early, without error, if the pipe closes cleanly before maxBytes
// have been discarded.
func (r *PipeReader) Discard(maxBytes int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for total < maxBytes {
		want := maxBytes - total
		if want > int64(len(buf)) {
			want = int64(len(buf))
		}
		n, err := r.Read(buf[:want])
		total += int64(n)
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}

// AwaitAtLeast blocks until n bytes are available to read, or the pipe
// closes. It reports whether the requirement was met before the pipe
// closed; a non-nil error is only returned for an abortive close.
func (r *PipeReader) AwaitAtLeast(n int) (bool, error) {
	if r.p.join.Load() != nil {
		return false, nil
	}
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.acquireReadLeaseLocked()
	if err != nil {
		if cause, closed := p.closed.isSet(); closed {
			if cause != nil {
				return false, cause
			}
			return false, nil
		}
		return false, err
	}
	defer p.restoreStateAfterRead()

	if werr := p.readSlot.awaitLocked(func() bool {
		if p.capacity.availableForRead >= n {
			return true
		}
		_, closed := p.closed.isSet()
		return closed
	}); werr != nil {
		return false, werr
	}

	if p.capacity.availableForRead >= n {
		return true, nil
	}
	cause, _ := p.closed.isSet()
	return false, cause
}

// AwaitContent blocks until at least one byte is available to read or the
// pipe closes.
func (r *PipeReader) AwaitContent() error {
	_, err := r.AwaitAtLeast(1)
	return err
}

// PeekTo copies up to max bytes starting at logical offset off past the
// current read position into dst[dstOff:], without consuming them, and
// blocks until at least min bytes are available at that offset or the
// pipe closes. It returns the number of bytes copied.
func (r *PipeReader) PeekTo(dst []byte, dstOff, off, minBytes, maxBytes int) (int64, error) {
	if r.p.join.Load() != nil {
		return 0, ErrClosedReceiveChannel
	}
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()

	backing, err := p.acquireReadLeaseLocked()
	if err != nil {
		return 0, err
	}
	defer p.restoreStateAfterRead()

	need := off + minBytes
	if werr := p.readSlot.awaitLocked(func() bool {
		if p.capacity.availableForRead >= need {
			return true
		}
		_, closed := p.closed.isSet()
		return closed
	}); werr != nil {
		return 0, werr
	}

	available := p.capacity.availableForRead - off
	if available <= 0 {
		cause, closed := p.closed.isSet()
		if closed && cause != nil {
			return 0, cause
		}
		return 0, ErrClosedReceiveChannel
	}
	n := min(available, maxBytes)
	n = min(n, len(dst)-dstOff)

	copied := 0
	pos := (backing.readPos + off) % backing.dataCapacity
	for copied < n {
		contiguous := backing.dataCapacity - pos
		chunk := min(n-copied, contiguous)
		copy(dst[dstOff+copied:dstOff+copied+chunk], backing.data[pos:pos+chunk])
		copied += chunk
		pos = (pos + chunk) % backing.dataCapacity
	}
	return int64(copied), nil
}

// Write implements io.Writer: it blocks until every byte of src has been
// accepted into the ring or the pipe closes.
func (w *PipeWriter) Write(src []byte) (int, error) {
	if j := w.p.join.Load(); j != nil {
		return j.delegateTo.Write(src)
	}
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()

	backing, err := p.acquireWriteLeaseLocked()
	if err != nil {
		return 0, err
	}
	defer p.restoreStateAfterWrite()

	total := 0
	for len(src) > 0 {
		if werr := p.writeSlot.awaitLocked(func() bool {
			if p.capacity.availableForWrite > 0 {
				return true
			}
			_, closed := p.closed.isSet()
			return closed
		}); werr != nil {
			return total, werr
		}
		if p.capacity.availableForWrite == 0 {
			if cause, closed := p.closed.isSet(); closed {
				if cause != nil {
					return total, cause
				}
				return total, ErrClosedWriteChannel
			}
		}

		n := p.writeAsMuchAsPossibleLocked(backing, src)
		src = src[n:]
		total += n
		if n > 0 {
			p.totalBytesWritten.Add(uint64(n))
			p.readSlot.signal()
		}
		if p.capacity.isFull() || (p.autoFlush && len(src) == 0) {
			p.flushLocked()
		}
	}
	return total, nil
}

// WriteFully is an explicit alias of Write; io.Writer's contract already
// requires Write to behave this way (all of p or an error), so there is
// nothing further to add.
func (w *PipeWriter) WriteFully(src []byte) (int, error) {
	return w.Write(src)
}

// WriteAvailable writes as much of src as currently fits without blocking
// and returns the number of bytes accepted.
func (w *PipeWriter) WriteAvailable(src []byte) (int, error) {
	if j := w.p.join.Load(); j != nil {
		return j.delegateTo.WriteAvailable(src)
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

	n := p.writeAsMuchAsPossibleLocked(backing, src)
	if n > 0 {
		p.totalBytesWritten.Add(uint64(n))
		p.readSlot.signal()
	}
	if p.autoFlush || p.capacity.isFull() {
		p.flushLocked()
	}
	return n, nil
}

// ReadFrom implements io.ReaderFrom, pulling from r until EOF and writing
// every byte read into the pipe.
func (w *PipeWriter) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

// AwaitFreeSpace blocks until at least one byte of write space is
// available, or the pipe closes for write.
func (w *PipeWriter) AwaitFreeSpace() error {
	if j := w.p.join.Load(); j != nil {
		return j.delegateTo.AwaitFreeSpace()
	}
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.acquireWriteLeaseLocked()
	if err != nil {
		return err
	}
	defer p.restoreStateAfterWrite()

	if werr := p.writeSlot.awaitLocked(func() bool {
		if p.capacity.availableForWrite > 0 {
			return true
		}
		_, closed := p.closed.isSet()
		return closed
	}); werr != nil {
		return werr
	}
	if p.capacity.availableForWrite == 0 {
		cause, _ := p.closed.isSet()
		if cause != nil {
			return cause
		}
		return ErrClosedWriteChannel
	}
	return nil
}
