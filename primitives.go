package ringpipe

import (
	"encoding/binary"
	"math"
)

// All primitive I/O is fixed big-endian. There is no byte-order knob on
// this interface; callers reverse bytes themselves if they need another
// order.

// readExactLocked blocks until n bytes are available to read (or the pipe
// closes), then returns a private copy of those n bytes, having advanced
// the read position past them and refunded the freed capacity. Must be
// called with a read lease already held.
func (p *Pipe) readExactLocked(backing *backingStore, n int) ([]byte, error) {
	if werr := p.readSlot.awaitLocked(func() bool {
		if p.capacity.availableForRead >= n {
			return true
		}
		_, closed := p.closed.isSet()
		return closed
	}); werr != nil {
		return nil, werr
	}
	if p.capacity.availableForRead < n {
		cause, _ := p.closed.isSet()
		if cause != nil {
			return nil, cause
		}
		return nil, ErrClosedReceiveChannel
	}

	if !p.capacity.tryReadExact(n) {
		return nil, newIllegalStateError("capacity accounting drifted on primitive read")
	}
	src := backing.primitiveReadSlice(n)
	out := make([]byte, n)
	copy(out, src)
	backing.advanceRead(n)
	p.capacity.completeRead(n)
	p.totalBytesRead.Add(uint64(n))
	p.writeSlot.signal()
	return out, nil
}

// writeExactLocked blocks until n bytes of write space are available (or
// the pipe closes for write), copies encoded into the ring, and applies
// auto-flush. Must be called with a write lease already held.
func (p *Pipe) writeExactLocked(backing *backingStore, encoded []byte) error {
	n := len(encoded)
	if werr := p.writeSlot.awaitLocked(func() bool {
		if p.capacity.availableForWrite >= n {
			return true
		}
		_, closed := p.closed.isSet()
		return closed
	}); werr != nil {
		return werr
	}
	if p.capacity.availableForWrite < n {
		cause, _ := p.closed.isSet()
		if cause != nil {
			return cause
		}
		return ErrClosedWriteChannel
	}

	if !p.capacity.tryWriteExact(n) {
		return newIllegalStateError("capacity accounting drifted on primitive write")
	}
	dst := backing.primitiveWriteSlice(n)
	copy(dst, encoded)
	backing.carry(n)
	backing.advanceWrite(n)
	p.capacity.completeWrite(n)
	p.totalBytesWritten.Add(uint64(n))
	p.readSlot.signal()
	if p.autoFlush || p.capacity.isFull() {
		p.flushLocked()
	}
	return nil
}

func (r *PipeReader) readPrimitive(n int) ([]byte, error) {
	if r.p.join.Load() != nil {
		return nil, ErrClosedReceiveChannel
	}
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	backing, err := p.acquireReadLeaseLocked()
	if err != nil {
		return nil, err
	}
	defer p.restoreStateAfterRead()
	return p.readExactLocked(backing, n)
}

func (w *PipeWriter) writePrimitive(encoded []byte) error {
	if j := w.p.join.Load(); j != nil {
		return j.delegateTo.writePrimitive(encoded)
	}
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()
	backing, err := p.acquireWriteLeaseLocked()
	if err != nil {
		return err
	}
	defer p.restoreStateAfterWrite()
	return p.writeExactLocked(backing, encoded)
}

// ReadByte implements io.ByteReader.
func (r *PipeReader) ReadByte() (byte, error) {
	b, err := r.readPrimitive(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt16 reads a big-endian 16-bit signed integer.
func (r *PipeReader) ReadInt16() (int16, error) {
	b, err := r.readPrimitive(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// ReadInt32 reads a big-endian 32-bit signed integer.
func (r *PipeReader) ReadInt32() (int32, error) {
	b, err := r.readPrimitive(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadInt64 reads a big-endian 64-bit signed integer.
func (r *PipeReader) ReadInt64() (int64, error) {
	b, err := r.readPrimitive(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ReadFloat32 reads a big-endian IEEE-754 single-precision float via its
// exact bit pattern.
func (r *PipeReader) ReadFloat32() (float32, error) {
	b, err := r.readPrimitive(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// ReadFloat64 reads a big-endian IEEE-754 double-precision float via its
// exact bit pattern.
func (r *PipeReader) ReadFloat64() (float64, error) {
	b, err := r.readPrimitive(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// WriteByte implements io.ByteWriter.
func (w *PipeWriter) WriteByte(b byte) error {
	return w.writePrimitive([]byte{b})
}

// WriteInt16 writes v as a big-endian 16-bit signed integer.
func (w *PipeWriter) WriteInt16(v int16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	return w.writePrimitive(b[:])
}

// WriteInt32 writes v as a big-endian 32-bit signed integer.
func (w *PipeWriter) WriteInt32(v int32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return w.writePrimitive(b[:])
}

// WriteInt64 writes v as a big-endian 64-bit signed integer.
func (w *PipeWriter) WriteInt64(v int64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return w.writePrimitive(b[:])
}

// WriteFloat32 writes v's exact IEEE-754 bit pattern, big-endian.
func (w *PipeWriter) WriteFloat32(v float32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(v))
	return w.writePrimitive(b[:])
}

// WriteFloat64 writes v's exact IEEE-754 bit pattern, big-endian.
func (w *PipeWriter) WriteFloat64(v float64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	return w.writePrimitive(b[:])
}
