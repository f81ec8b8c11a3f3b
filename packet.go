package ringpipe

import (
	"bytes"
	"io"
)

// Packet is a growable byte buffer that ReadPacket/WritePacket move whole
// values through. It is not a framing library — callers own whatever
// length-prefix or delimiter convention their protocol needs.
type Packet struct {
	buf *bytes.Buffer
}

// NewPacket creates an empty Packet, using sizeHint as bytes.Buffer's
// initial capacity hint to avoid reallocation when the final size is known
// in advance.
func NewPacket(sizeHint int) *Packet {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Packet{buf: bytes.NewBuffer(make([]byte, 0, sizeHint))}
}

// Bytes returns the packet's contents. The returned slice aliases the
// Packet's internal buffer and must not be retained past the next write to
// the Packet.
func (pk *Packet) Bytes() []byte { return pk.buf.Bytes() }

// Len returns the number of bytes currently held by the packet.
func (pk *Packet) Len() int { return pk.buf.Len() }

// Write appends p to the packet, implementing io.Writer so a Packet can be
// built up with the same helpers (fmt.Fprintf, io.Copy) any byte sink
// supports.
func (pk *Packet) Write(p []byte) (int, error) { return pk.buf.Write(p) }

// ReadPacket reads exactly size bytes into a new Packet, suspending until
// they are all available or the pipe closes. headerHint sizes the Packet's
// backing buffer; it does not change how many bytes are read.
func (r *PipeReader) ReadPacket(size, headerHint int) (*Packet, error) {
	pk := NewPacket(headerHint)
	dst := make([]byte, size)
	n, err := r.ReadFull(dst)
	pk.buf.Write(dst[:n])
	if err != nil {
		return pk, err
	}
	return pk, nil
}

// ReadRemaining reads up to limit bytes, stopping early (without error) if
// the pipe closes cleanly first. headerHint sizes the returned Packet's
// backing buffer.
func (r *PipeReader) ReadRemaining(limit, headerHint int) (*Packet, error) {
	pk := NewPacket(headerHint)
	buf := make([]byte, 32*1024)
	remaining := limit
	for remaining > 0 {
		want := len(buf)
		if want > remaining {
			want = remaining
		}
		n, err := r.Read(buf[:want])
		if n > 0 {
			pk.buf.Write(buf[:n])
			remaining -= n
		}
		if err != nil {
			if err == io.EOF {
				return pk, nil
			}
			return pk, err
		}
	}
	return pk, nil
}

// WritePacket writes a packet's full contents, suspending as WriteFully
// does.
func (w *PipeWriter) WritePacket(pk *Packet) error {
	_, err := w.WriteFully(pk.Bytes())
	return err
}
