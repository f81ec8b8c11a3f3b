package ringpipe

// ringCapacity accounts for occupancy of a ring buffer of totalCapacity
// bytes, split into three disjoint counters:
//
//	availableForRead + availableForWrite + pendingToFlush == totalCapacity
//
// The invariant holds at every point where no try* call is mid-reservation.
// A try* call reserves bytes optimistically; the caller must follow up with
// the matching complete* call once it knows how many bytes it actually
// consumed or produced.
//
// ringCapacity is not safe for concurrent use on its own: every method here
// is called with Pipe.mu held, which is what gives the reservations their
// linearizability. Splitting the counters into named fields costs nothing
// here because there is no competing goroutine peeking at them without the
// lock.
type ringCapacity struct {
	availableForRead  int
	availableForWrite int
	pendingToFlush    int
	totalCapacity     int

	// released is set by tryLockForRelease/forceLockForRelease and poisons
	// every subsequent try* call, letting exclusive termination preempt
	// concurrent readers and writers.
	released bool
}

func newRingCapacity(size int) *ringCapacity {
	return &ringCapacity{
		availableForWrite: size,
		totalCapacity:     size,
	}
}

// tryWriteExact reserves exactly n bytes of write space, moving them from
// availableForWrite into pendingToFlush. It fails if fewer than n bytes are
// available or the capacity has been locked for release.
func (c *ringCapacity) tryWriteExact(n int) bool {
	if c.released || n < 0 || c.availableForWrite < n {
		return false
	}
	c.availableForWrite -= n
	c.pendingToFlush += n
	return true
}

// tryWriteAtMost reserves up to k bytes of write space and returns the
// amount actually reserved.
func (c *ringCapacity) tryWriteAtMost(k int) int {
	if c.released || k <= 0 {
		return 0
	}
	n := min(k, c.availableForWrite)
	c.availableForWrite -= n
	c.pendingToFlush += n
	return n
}

// tryReadExact reserves exactly n bytes from availableForRead.
func (c *ringCapacity) tryReadExact(n int) bool {
	if c.released || n < 0 || c.availableForRead < n {
		return false
	}
	c.availableForRead -= n
	return true
}

// tryReadAtMost reserves up to k bytes from availableForRead and returns
// the amount actually reserved.
func (c *ringCapacity) tryReadAtMost(k int) int {
	if c.released || k <= 0 {
		return 0
	}
	n := min(k, c.availableForRead)
	c.availableForRead -= n
	return n
}

// completeWrite commits n reserved-for-write bytes as consumed by the
// caller's copy into the backing store. It does not itself make the bytes
// readable; flush does that.
func (c *ringCapacity) completeWrite(n int) {
	// no-op beyond bookkeeping already performed by tryWrite*: pendingToFlush
	// already holds the reservation. completeWrite exists so every write
	// path (bulk, primitive and zero-copy) commits through one accounting
	// entry point; unused reservations go back through refundWrite.
}

// completeRead returns n previously-reserved-for-read bytes to
// availableForWrite, i.e. the space they occupied is now free again.
func (c *ringCapacity) completeRead(n int) {
	c.availableForWrite += n
}

// flush moves pendingToFlush into availableForRead and reports whether any
// bytes moved.
func (c *ringCapacity) flush() bool {
	if c.pendingToFlush == 0 {
		return false
	}
	c.availableForRead += c.pendingToFlush
	c.pendingToFlush = 0
	return true
}

// refundRead returns n bytes that were reserved via tryReadAtMost/AtLeast
// but never actually consumed back to availableForRead. Used by the
// zero-copy read visitor path when the visitor consumes fewer bytes than
// it was offered.
func (c *ringCapacity) refundRead(n int) {
	c.availableForRead += n
}

// refundWrite returns n bytes that were reserved via tryWriteAtMost/AtLeast
// but never actually produced back to availableForWrite, undoing the
// corresponding pendingToFlush increment. Used by the zero-copy write
// visitor path.
func (c *ringCapacity) refundWrite(n int) {
	c.pendingToFlush -= n
	c.availableForWrite += n
}

// isFull reports whether a writer has nowhere left to put more bytes, i.e.
// the ring holds no free write space regardless of whether what's already
// there has been flushed to readers yet.
func (c *ringCapacity) isFull() bool {
	return c.availableForWrite == 0
}

func (c *ringCapacity) isEmpty() bool {
	return c.availableForRead == 0
}

// resetForRead discards whatever is currently available to read, returning
// it to availableForWrite. Used when a backing store is recycled without
// having been fully drained (e.g. an abortive close).
func (c *ringCapacity) resetForRead() {
	c.availableForWrite += c.availableForRead
	c.availableForRead = 0
}

// resetForWrite discards any pending, not-yet-flushed writes.
func (c *ringCapacity) resetForWrite() {
	c.availableForWrite += c.pendingToFlush
	c.pendingToFlush = 0
}

// tryLockForRelease succeeds only when the ring is fully idle: nothing
// pending, nothing outstanding to read. Once it succeeds, every subsequent
// try* call fails, which is what lets the terminator evict the backing
// store out from under a channel that has gone Terminated.
func (c *ringCapacity) tryLockForRelease() bool {
	if c.released {
		return false
	}
	if c.pendingToFlush != 0 || c.availableForRead != 0 {
		return false
	}
	c.released = true
	return true
}

// forceLockForRelease poisons the capacity unconditionally, used when a
// cause forces termination regardless of outstanding bytes.
func (c *ringCapacity) forceLockForRelease() {
	c.released = true
}
