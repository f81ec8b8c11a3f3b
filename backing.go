package ringpipe

// backingStore is a single contiguous byte region of length
// dataCapacity+reservedSize. Logical indices readPos/writePos live in
// [0, dataCapacity) and advance modulo dataCapacity; the reservedSize bytes
// past dataCapacity exist only to let a primitive value (2/4/8 bytes) that
// straddles the wrap boundary be written or read as one linear slice via
// carry/rollBytes.
//
// Full/empty are disambiguated by the separate ringCapacity counters rather
// than the classic "capacity+1" slot trick, so no byte of the region ever
// goes unused.
//
// A backingStore is exclusively owned by the Pipe that leased it between
// borrow and recycle; it has no internal synchronization of its own — every
// method here runs with Pipe.mu held.
type backingStore struct {
	data         []byte
	dataCapacity int
	reservedSize int
	readPos      int
	writePos     int
}

func newBackingStore(buf []byte, dataCapacity, reservedSize int) *backingStore {
	need := dataCapacity + reservedSize
	if len(buf) < need {
		buf = make([]byte, need)
	}
	return &backingStore{
		data:         buf[:need],
		dataCapacity: dataCapacity,
		reservedSize: reservedSize,
	}
}

func (b *backingStore) advanceWrite(n int) {
	b.writePos = (b.writePos + n) % b.dataCapacity
}

func (b *backingStore) advanceRead(n int) {
	b.readPos = (b.readPos + n) % b.dataCapacity
}

// primitiveWriteSlice returns a linear n-byte slice at the current write
// position, using the reserved tail via carry to linearise a value that
// would otherwise straddle the wrap boundary. n must be <= reservedSize.
// The caller must call carry() immediately after filling the slice and
// before advanceWrite(n).
func (b *backingStore) primitiveWriteSlice(n int) []byte {
	return b.data[b.writePos : b.writePos+n]
}

// carry copies the bytes that primitiveWriteSlice placed past the logical
// end of the region back to the start, so a subsequent contiguous read
// sees them at their proper wrapped-around offset.
func (b *backingStore) carry(n int) {
	remaining := b.dataCapacity - b.writePos
	if remaining >= n {
		return
	}
	overflow := n - remaining
	copy(b.data[:overflow], b.data[b.dataCapacity:b.dataCapacity+overflow])
}

// primitiveReadSlice mirrors primitiveWriteSlice: it returns a linear
// n-byte slice at the current read position, after rollBytes has copied
// any wrap-straddling prefix into the reserved tail so the slice is
// contiguous in memory.
func (b *backingStore) primitiveReadSlice(n int) []byte {
	b.rollBytes(n)
	return b.data[b.readPos : b.readPos+n]
}

// rollBytes copies the n-remaining bytes at the start of the region into
// the reserved tail immediately following readPos's contiguous run, so a
// primitive of size n can be read as one linear slice even though it
// straddles the wrap boundary.
func (b *backingStore) rollBytes(n int) {
	remaining := b.dataCapacity - b.readPos
	if remaining >= n {
		return
	}
	overflow := n - remaining
	copy(b.data[b.dataCapacity:b.dataCapacity+overflow], b.data[:overflow])
}
