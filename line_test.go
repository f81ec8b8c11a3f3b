package ringpipe_test

import (
	"errors"
	"testing"

	"github.com/arolla-oss/ringpipe"
)

func TestReadUTF8Line(t *testing.T) {
	r, w := newTestPipe(t, 64)

	go func() {
		defer w.Close()
		mustWrite(t, w, []byte("first line\r\nsecond line\nlast line, no terminator"))
	}()

	line, err := r.ReadUTF8Line(1024)
	if err != nil || line != "first line" {
		t.Fatalf("line 1: %q, err %v", line, err)
	}
	line, err = r.ReadUTF8Line(1024)
	if err != nil || line != "second line" {
		t.Fatalf("line 2: %q, err %v", line, err)
	}
	line, err = r.ReadUTF8Line(1024)
	if err != nil || line != "last line, no terminator" {
		t.Fatalf("line 3: %q, err %v", line, err)
	}
}

func TestReadUTF8LineTooLong(t *testing.T) {
	r, w := newTestPipe(t, 64)

	go func() {
		defer w.Close()
		mustWrite(t, w, []byte("this line is much too long\n"))
	}()

	_, err := r.ReadUTF8Line(4)
	var tle *ringpipe.TooLongLineError
	if !errors.As(err, &tle) {
		t.Fatalf("expected TooLongLineError, got %v", err)
	}
}

func TestReadUTF8LineMalformed(t *testing.T) {
	r, w := newTestPipe(t, 64)

	go func() {
		defer w.Close()
		mustWrite(t, w, []byte{0xff, 0xfe, '\n'})
	}()

	_, err := r.ReadUTF8Line(64)
	var mie *ringpipe.MalformedInputError
	if !errors.As(err, &mie) {
		t.Fatalf("expected MalformedInputError, got %v", err)
	}
}

func TestReadUTF8LineTo(t *testing.T) {
	r, w := newTestPipe(t, 64)

	go func() {
		defer w.Close()
		mustWrite(t, w, []byte("hello\n"))
	}()

	buf := make([]byte, 0, 32)
	n, err := r.ReadUTF8LineTo(buf, 1024)
	if err != nil {
		t.Fatalf("ReadUTF8LineTo: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", buf[:n])
	}
}
