package ringpipe_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/arolla-oss/ringpipe"
)

func newTestPipe(t *testing.T, size int) (*ringpipe.PipeReader, *ringpipe.PipeWriter) {
	t.Helper()
	r, w := ringpipe.NewPipe(size, ringpipe.WithAutoFlush(true))
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func mustWrite(t *testing.T, w *ringpipe.PipeWriter, data []byte) int {
	t.Helper()
	n, err := w.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Fatalf("expected to write %d bytes, wrote %d", len(data), n)
	}
	return n
}

// mustReadFull drives the pipe's own ReadFull rather than the stdlib
// io.ReadFull helper, so this suite exercises the method directly.
func mustReadFull(t *testing.T, r *ringpipe.PipeReader, buf []byte) int {
	t.Helper()
	n, err := r.ReadFull(buf)
	if err != nil {
		t.Fatalf("ReadFull failed: %v", err)
	}
	return n
}

func expectError(t *testing.T, err, expected error) {
	t.Helper()
	if !errors.Is(err, expected) {
		t.Fatalf("expected %v, got %v", expected, err)
	}
}

func expectEOF(t *testing.T, r *ringpipe.PipeReader) {
	t.Helper()
	buf := make([]byte, 1)
	_, err := r.Read(buf)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

// TestPipeBasic covers the fundamental round trip: write, blocking read via
// ReadFull, clean close surfacing as io.EOF from Read.
func TestPipeBasic(t *testing.T) {
	r, w := newTestPipe(t, 10)

	data := []byte("hello world")
	go func() {
		mustWrite(t, w, data)
		w.Close()
	}()

	buf := make([]byte, len(data))
	mustReadFull(t, r, buf)
	if !bytes.Equal(buf, data) {
		t.Fatalf("expected %q, got %q", data, buf)
	}
	expectEOF(t, r)
}

// TestPipeBlocking checks a writer that overruns the ring's capacity parks
// until the reader drains enough to make room.
func TestPipeBlocking(t *testing.T) {
	r, w := newTestPipe(t, 2)

	data := []byte("hello")
	var (
		wg       sync.WaitGroup
		writeErr error
	)
	wg.Go(func() {
		_, writeErr = w.Write(data)
	})

	time.Sleep(10 * time.Millisecond)
	buf := make([]byte, len(data))
	mustReadFull(t, r, buf)
	wg.Wait()

	if writeErr != nil {
		t.Fatalf("Write failed: %v", writeErr)
	}
	if !bytes.Equal(buf, data) {
		t.Fatalf("expected %q, got %q", data, buf)
	}
}

func TestWriteFailsAfterReaderClose(t *testing.T) {
	r, w := newTestPipe(t, 10)
	r.Close()

	_, err := w.Write([]byte("test"))
	expectError(t, err, ringpipe.ErrClosedWriteChannel)
}

// TestReadAfterWriterClose runs several write/read rounds, closes the writer
// cleanly once the ring is drained, and checks every reader entry point
// agrees the pipe is exhausted: Read as io.EOF, ReadAvailable as -1,
// AwaitAtLeast as false.
func TestReadAfterWriterClose(t *testing.T) {
	r, w := newTestPipe(t, 4)

	for range 3 {
		mustWrite(t, w, []byte("ab"))
		buf := make([]byte, 2)
		mustReadFull(t, r, buf)
		if !bytes.Equal(buf, []byte("ab")) {
			t.Fatalf("expected %q, got %q", "ab", buf)
		}
	}
	w.Close()

	expectEOF(t, r)
	if n, err := r.ReadAvailable(make([]byte, 4)); n != -1 || err != nil {
		t.Fatalf("ReadAvailable after drain: n=%d err=%v, want -1, nil", n, err)
	}
	if ok, err := r.AwaitAtLeast(1); ok || err != nil {
		t.Fatalf("AwaitAtLeast after drain: ok=%v err=%v, want false, nil", ok, err)
	}
}

// TestRepeatedReadAfterAbortiveCloseKeepsCause checks that once a pipe has
// settled into Terminated from an abortive close, the cause keeps surfacing
// on every subsequent Read rather than only the first.
func TestRepeatedReadAfterAbortiveCloseKeepsCause(t *testing.T) {
	r, w := newTestPipe(t, 8)

	boom := errors.New("boom")
	w.CloseWithError(boom)

	buf := make([]byte, 4)
	for range 2 {
		_, err := r.Read(buf)
		expectError(t, err, boom)
	}
}

func TestPipeCloseWithError(t *testing.T) {
	t.Run("WriterCloseWithError", func(t *testing.T) {
		r, w := newTestPipe(t, 10)

		customErr := errors.New("custom write error")
		w.CloseWithError(customErr)

		buf := make([]byte, 10)
		_, err := r.Read(buf)
		expectError(t, err, customErr)
	})

	t.Run("WriterCloseWithNilErrorViaReadAvailable", func(t *testing.T) {
		r, w := newTestPipe(t, 10)
		w.CloseWithError(nil)

		if n, err := r.ReadAvailable(make([]byte, 10)); n != -1 || err != nil {
			t.Fatalf("ReadAvailable: n=%d err=%v, want -1, nil", n, err)
		}
	})

	t.Run("ReaderCloseWithError", func(t *testing.T) {
		r, w := newTestPipe(t, 10)

		customErr := errors.New("custom read error")
		r.CloseWithError(customErr)

		_, err := w.Write([]byte("test"))
		expectError(t, err, customErr)
	})

	t.Run("ReaderCloseWithNilError", func(t *testing.T) {
		r, w := newTestPipe(t, 10)
		r.CloseWithError(nil)

		_, err := w.Write([]byte("test"))
		expectError(t, err, ringpipe.ErrClosedWriteChannel)
	})

	t.Run("CloseWithErrorDoesNotOverwrite", func(t *testing.T) {
		r, w := newTestPipe(t, 10)

		firstErr := errors.New("first error")
		secondErr := errors.New("second error")
		w.CloseWithError(firstErr)
		w.CloseWithError(secondErr)

		buf := make([]byte, 10)
		_, err := r.Read(buf)
		expectError(t, err, firstErr)
	})
}

// TestWriteTo and TestReadFrom drive the pipe through WriteTo (directly, and
// via io.Copy), which treats only a literal io.EOF from Read as clean
// termination — this is the exact contract a bare ErrClosedReceiveChannel
// from a drained Terminated pipe would violate.
func TestWriteTo(t *testing.T) {
	r, w := newTestPipe(t, 10)

	input := "hello world from WriteTo"
	output := &bytes.Buffer{}
	go func() {
		defer w.Close()
		mustWrite(t, w, []byte(input))
	}()

	n, err := r.WriteTo(output)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if int(n) != len(input) {
		t.Fatalf("expected to copy %d bytes, copied %d", len(input), n)
	}
	if output.String() != input {
		t.Fatalf("expected %q, got %q", input, output.String())
	}
}

func TestReadFrom(t *testing.T) {
	r, w := newTestPipe(t, 10)

	input := "hello world from ReadFrom"
	source := bytes.NewReader([]byte(input))
	output := &bytes.Buffer{}
	go func() {
		defer w.Close()
		if _, err := w.ReadFrom(source); err != nil {
			t.Errorf("ReadFrom failed: %v", err)
		}
	}()

	n, err := io.Copy(output, r)
	if err != nil {
		t.Fatalf("io.Copy failed: %v", err)
	}
	if int(n) != len(input) {
		t.Fatalf("expected to copy %d bytes, copied %d", len(input), n)
	}
	if output.String() != input {
		t.Fatalf("expected %q, got %q", input, output.String())
	}
}

func TestBackpressure(t *testing.T) {
	r, w := newTestPipe(t, 4088)

	data := make([]byte, 10000)
	for i := range data {
		data[i] = byte(i)
	}

	var wg sync.WaitGroup
	var writeErr error
	wg.Go(func() {
		defer w.Close()
		_, writeErr = w.Write(data)
	})

	got := make([]byte, 0, len(data))
	buf := make([]byte, 2000)
	for {
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Read failed: %v", err)
		}
	}
	wg.Wait()

	if writeErr != nil {
		t.Fatalf("Write failed: %v", writeErr)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("data corrupted across backpressure boundary")
	}
}

func TestAbortiveCloseWakesParkedWriter(t *testing.T) {
	r, w := newTestPipe(t, 2)

	boom := errors.New("boom")
	var wg sync.WaitGroup
	var writeErr error
	wg.Go(func() {
		_, writeErr = w.Write([]byte("hello"))
	})

	time.Sleep(10 * time.Millisecond)
	r.CloseWithError(boom)
	wg.Wait()

	expectError(t, writeErr, boom)
}

func TestAttachContextCancel(t *testing.T) {
	_, w := newTestPipe(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	w.AttachContext(ctx)
	cancel()

	time.Sleep(10 * time.Millisecond)
	_, err := w.Write([]byte("x"))
	if err == nil {
		t.Fatalf("expected write to fail after context cancellation")
	}
}

func TestFlushIsRequiredWithoutAutoFlush(t *testing.T) {
	r, w := ringpipe.NewPipe(10)
	t.Cleanup(func() { r.Close(); w.Close() })

	n, err := w.WriteAvailable([]byte("ab"))
	if err != nil || n != 2 {
		t.Fatalf("WriteAvailable: n=%d err=%v", n, err)
	}
	if got := r.AvailableForRead(); got != 0 {
		t.Fatalf("expected 0 bytes readable before Flush, got %d", got)
	}

	_ = w.Flush()
	if got := r.AvailableForRead(); got != 2 {
		t.Fatalf("expected 2 bytes readable after Flush, got %d", got)
	}
}

// TestFullRingFlushesWithoutAutoFlush is a regression test for a producer
// that fills the ring exactly with no WithAutoFlush option set: a second
// write must still see the first write's bytes flushed to the reader,
// rather than parking forever with nothing left to free it.
func TestFullRingFlushesWithoutAutoFlush(t *testing.T) {
	r, w := ringpipe.NewPipe(4)
	t.Cleanup(func() { r.Close(); w.Close() })

	if n, err := w.Write([]byte{1, 2, 3, 4}); err != nil || n != 4 {
		t.Fatalf("first Write: n=%d err=%v", n, err)
	}
	if got := r.AvailableForRead(); got != 4 {
		t.Fatalf("expected the full ring flushed after filling it, got %d readable", got)
	}

	done := make(chan struct{})
	var secondErr error
	go func() {
		defer close(done)
		_, secondErr = w.Write([]byte{5})
	}()

	buf := make([]byte, 4)
	if _, err := r.ReadFull(buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second Write never unblocked; full ring never flushed")
	}
	if secondErr != nil {
		t.Fatalf("second Write failed: %v", secondErr)
	}

	// The second write only occupied one of four free bytes, so without
	// autoFlush it stays pending until explicitly flushed.
	_ = w.Flush()
	last := make([]byte, 1)
	if _, err := r.ReadFull(last); err != nil || last[0] != 5 {
		t.Fatalf("expected byte 5 after drain, got %v err=%v", last, err)
	}
}

// TestPeekToDoesNotConsume checks PeekTo returns bytes ahead of the read
// position without advancing it, and that a subsequent Read still sees
// everything, including the peeked prefix.
func TestPeekToDoesNotConsume(t *testing.T) {
	r, w := newTestPipe(t, 32)
	mustWrite(t, w, []byte("peekme"))

	dst := make([]byte, 4)
	n, err := r.PeekTo(dst, 0, 0, 4, 4)
	if err != nil {
		t.Fatalf("PeekTo: %v", err)
	}
	if n != 4 || string(dst) != "peek" {
		t.Fatalf("expected to peek %q, got %q (n=%d)", "peek", dst, n)
	}

	buf := make([]byte, 6)
	mustReadFull(t, r, buf)
	if string(buf) != "peekme" {
		t.Fatalf("expected Read to still see the peeked bytes, got %q", buf)
	}
}

func TestDiscard(t *testing.T) {
	r, w := newTestPipe(t, 32)
	mustWrite(t, w, []byte("throwawaykeepme"))

	n, err := r.Discard(9)
	if err != nil || n != 9 {
		t.Fatalf("Discard: n=%d err=%v", n, err)
	}

	buf := make([]byte, 6)
	mustReadFull(t, r, buf)
	if string(buf) != "keepme" {
		t.Fatalf("expected %q after discard, got %q", "keepme", buf)
	}
}
