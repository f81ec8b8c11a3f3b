package ringpipe

import (
	"io"
	"unicode/utf8"
)

// ReadUTF8Line reads bytes up to and including the next '\n' (a preceding
// '\r' is stripped, matching the common CRLF/LF text-line convention), or
// until the pipe closes cleanly with a trailing partial line. It fails with
// *TooLongLineError if no terminator appears within limit bytes, and with
// *MalformedInputError if the collected bytes are not valid UTF-8.
func (r *PipeReader) ReadUTF8Line(limit int) (string, error) {
	buf := make([]byte, 0, 128)
	n, err := r.readLineInto(&buf, limit)
	if err != nil {
		return "", err
	}
	line := buf[:n]
	if !utf8.Valid(line) {
		return "", &MalformedInputError{Offset: firstInvalidUTF8Offset(line)}
	}
	return string(line), nil
}

// ReadUTF8LineTo behaves like ReadUTF8Line but appends into out instead of
// allocating a new string, returning the number of bytes appended.
func (r *PipeReader) ReadUTF8LineTo(out []byte, limit int) (int, error) {
	buf := out[:0]
	n, err := r.readLineInto(&buf, limit)
	if err != nil {
		return 0, err
	}
	if !utf8.Valid(buf[:n]) {
		return 0, &MalformedInputError{Offset: firstInvalidUTF8Offset(buf[:n])}
	}
	return n, nil
}

// readLineInto accumulates bytes one at a time into *buf until '\n', EOF, or
// limit is exceeded. Reading one byte at a time keeps this helper on top of
// the same ReadByte primitive every other typed accessor uses, at the cost
// of a lock/unlock per byte; callers needing line-rate throughput should use
// the zero-copy visitor path directly instead.
func (r *PipeReader) readLineInto(buf *[]byte, limit int) (int, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF || err == ErrClosedReceiveChannel {
				if len(*buf) == 0 {
					return 0, ErrClosedReceiveChannel
				}
				return len(*buf), nil
			}
			return 0, err
		}
		if b == '\n' {
			if n := len(*buf); n > 0 && (*buf)[n-1] == '\r' {
				*buf = (*buf)[:n-1]
			}
			return len(*buf), nil
		}
		if len(*buf) >= limit {
			return 0, &TooLongLineError{Limit: limit}
		}
		*buf = append(*buf, b)
	}
}

// firstInvalidUTF8Offset returns the byte offset of the first invalid UTF-8
// sequence in b.
func firstInvalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}
