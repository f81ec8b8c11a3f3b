package ringpipe

import "testing"

// checkCapacityInvariant asserts availableForRead + availableForWrite +
// pendingToFlush == totalCapacity, which must hold at every observable
// point outside a mid-reservation try* call.
func checkCapacityInvariant(t *testing.T, c *ringCapacity) {
	t.Helper()
	sum := c.availableForRead + c.availableForWrite + c.pendingToFlush
	if sum != c.totalCapacity {
		t.Fatalf("capacity invariant broken: %d+%d+%d != %d",
			c.availableForRead, c.availableForWrite, c.pendingToFlush, c.totalCapacity)
	}
}

func TestRingCapacityWriteReadFlushCycle(t *testing.T) {
	c := newRingCapacity(10)
	checkCapacityInvariant(t, c)

	if n := c.tryWriteAtMost(4); n != 4 {
		t.Fatalf("tryWriteAtMost: got %d", n)
	}
	checkCapacityInvariant(t, c)
	c.completeWrite(4)
	checkCapacityInvariant(t, c)

	if !c.flush() {
		t.Fatalf("expected flush to report bytes moved")
	}
	if c.availableForRead != 4 {
		t.Fatalf("expected 4 readable bytes, got %d", c.availableForRead)
	}
	checkCapacityInvariant(t, c)

	if n := c.tryReadAtMost(3); n != 3 {
		t.Fatalf("tryReadAtMost: got %d", n)
	}
	c.completeRead(3)
	checkCapacityInvariant(t, c)

	if c.availableForRead != 1 || c.availableForWrite != 9 {
		t.Fatalf("unexpected final state: read=%d write=%d", c.availableForRead, c.availableForWrite)
	}
}

func TestRingCapacityExactFailsWhenShort(t *testing.T) {
	c := newRingCapacity(4)
	if c.tryWriteExact(5) {
		t.Fatalf("tryWriteExact should fail when requesting more than capacity")
	}
	if !c.tryWriteExact(4) {
		t.Fatalf("tryWriteExact should succeed at exactly capacity")
	}
	if c.tryWriteExact(1) {
		t.Fatalf("tryWriteExact should fail once capacity is exhausted")
	}
}

func TestRingCapacityRefundRead(t *testing.T) {
	c := newRingCapacity(10)
	c.tryWriteAtMost(10)
	c.completeWrite(10)
	c.flush()
	checkCapacityInvariant(t, c)

	locked := c.tryReadAtMost(10)
	if locked != 10 {
		t.Fatalf("expected to lock 10 bytes, got %d", locked)
	}
	// Mid-reservation the locked bytes are held by no counter, so the sum
	// invariant does not apply here; they have all left availableForRead.
	if c.availableForRead != 0 {
		t.Fatalf("expected 0 bytes readable while 10 are locked, got %d", c.availableForRead)
	}

	consumed := 3
	c.completeRead(consumed)
	c.refundRead(locked - consumed)
	checkCapacityInvariant(t, c)

	if c.availableForRead != locked-consumed {
		t.Fatalf("expected %d bytes still readable, got %d", locked-consumed, c.availableForRead)
	}
	if c.availableForWrite != consumed {
		t.Fatalf("expected %d bytes freed for write, got %d", consumed, c.availableForWrite)
	}
}

func TestRingCapacityRefundWrite(t *testing.T) {
	c := newRingCapacity(10)

	locked := c.tryWriteAtMost(10)
	if locked != 10 {
		t.Fatalf("expected to lock 10 bytes, got %d", locked)
	}
	checkCapacityInvariant(t, c)

	produced := 4
	c.completeWrite(produced)
	c.refundWrite(locked - produced)
	checkCapacityInvariant(t, c)

	if c.pendingToFlush != produced {
		t.Fatalf("expected %d bytes pending flush, got %d", produced, c.pendingToFlush)
	}
	if c.availableForWrite != 10-produced {
		t.Fatalf("expected %d bytes still writable, got %d", 10-produced, c.availableForWrite)
	}
}

// TestRingCapacityIsFullTracksWriteSpaceNotFlushState checks isFull reports
// true the instant availableForWrite hits zero, before anything has been
// flushed to availableForRead. A definition gated on pendingToFlush too
// would never fire for a writer that fills the ring and never flushes.
func TestRingCapacityIsFullTracksWriteSpaceNotFlushState(t *testing.T) {
	c := newRingCapacity(4)
	if c.isFull() {
		t.Fatalf("empty ring should not report full")
	}

	locked := c.tryWriteAtMost(4)
	c.completeWrite(locked)
	if !c.isFull() {
		t.Fatalf("expected isFull once availableForWrite reaches 0, before any flush")
	}

	c.flush()
	if !c.isFull() {
		t.Fatalf("expected isFull to remain true after flush moves bytes to availableForRead")
	}
}

func TestRingCapacityLockForRelease(t *testing.T) {
	c := newRingCapacity(4)
	c.tryWriteAtMost(4)
	if c.tryLockForRelease() {
		t.Fatalf("tryLockForRelease should fail while bytes are pending flush")
	}
	c.completeWrite(4)
	c.flush()
	if c.tryLockForRelease() {
		t.Fatalf("tryLockForRelease should fail while bytes are readable")
	}
	c.tryReadAtMost(4)
	c.completeRead(4)
	if !c.tryLockForRelease() {
		t.Fatalf("tryLockForRelease should succeed once idle and empty")
	}
	if c.tryWriteAtMost(1) != 0 {
		t.Fatalf("try* calls should fail once released")
	}
}
