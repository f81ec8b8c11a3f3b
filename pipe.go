// Package ringpipe implements a single-producer/single-consumer
// asynchronous byte pipe backed by a bounded ring buffer with in-place,
// zero-copy access to the underlying storage.
//
// It plays the same role io.Pipe plays in the standard library — coupling
// one goroutine's writes to another goroutine's reads without an
// intervening buffer allocation per call — but adds a bounded ring buffer
// so a bursty producer does not stall the instant the consumer falls
// behind, plus primitive-typed I/O, a zero-copy visitor path over the
// internal buffer, and the ability to splice one pipe's output into
// another (Join).
package ringpipe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Pipe is the shared core between a PipeReader and a PipeWriter. All of its
// state is protected by mu except closedMarker (lock-free, sticky), the
// atomic join pointer, and the two atomic byte counters (read without the lock so callers can observe
// throughput without contending with the hot path).
type Pipe struct {
	mu        sync.Mutex
	readSlot  *slot
	writeSlot *slot

	state    channelState
	backing  *backingStore
	capacity *ringCapacity

	closed closedMarker
	join   atomic.Pointer[joinState]

	pool         Pool
	dataCapacity int
	reservedSize int
	autoFlush    bool

	totalBytesRead    atomic.Uint64
	totalBytesWritten atomic.Uint64

	watchCancel context.CancelFunc
}

// config holds the options accumulated by Option before NewPipe builds a
// Pipe from them.
type config struct {
	reservedSize int
	autoFlush    bool
	pool         Pool
}

// Option configures a Pipe at construction time.
type Option func(*config)

// WithAutoFlush enables autoFlush: every write that completes a write path
// implicitly flushes. Off by default, which means producers must call
// Flush explicitly to make writes visible.
func WithAutoFlush(enabled bool) Option {
	return func(c *config) { c.autoFlush = enabled }
}

// WithReservedSize overrides the wrap-tail size used to linearise a
// primitive write/read that straddles the ring boundary. It must be at
// least 8, the size of the largest primitive.
func WithReservedSize(n int) Option {
	return func(c *config) {
		if n < 8 {
			n = 8
		}
		c.reservedSize = n
	}
}

// WithPool overrides the backing-store allocation strategy. The default is
// a sync.Pool-backed allocator sized to this pipe's capacity.
func WithPool(p Pool) Option {
	return func(c *config) { c.pool = p }
}

// NewPipe creates a pipe with the given logical ring capacity and returns
// its reader and writer halves. capacity must be positive; it is clamped
// to 1 otherwise.
func NewPipe(capacity int, opts ...Option) (*PipeReader, *PipeWriter) {
	if capacity <= 0 {
		capacity = 1
	}
	cfg := config{reservedSize: 8}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.pool == nil {
		cfg.pool = NewSyncPool(capacity + cfg.reservedSize)
	}

	p := &Pipe{
		state:        stateIdleEmpty,
		capacity:     newRingCapacity(capacity),
		pool:         cfg.pool,
		dataCapacity: capacity,
		reservedSize: cfg.reservedSize,
		autoFlush:    cfg.autoFlush,
	}
	p.readSlot = newSlot(&p.mu)
	p.writeSlot = newSlot(&p.mu)
	return &PipeReader{p}, &PipeWriter{p}
}

// AvailableForRead returns the number of bytes currently available to a
// reader without blocking.
func (p *Pipe) AvailableForRead() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backing == nil {
		return 0
	}
	return p.capacity.availableForRead
}

// AvailableForWrite returns the number of bytes a writer can currently
// write without blocking.
func (p *Pipe) AvailableForWrite() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backing == nil {
		return p.dataCapacity
	}
	return p.capacity.availableForWrite
}

// IsClosedForRead reports whether the channel has been closed and fully
// drained, i.e. a reader will observe end-of-stream on its next call.
func (p *Pipe) IsClosedForRead() bool {
	_, closed := p.closed.isSet()
	if !closed {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity.isEmpty() && p.capacity.pendingToFlush == 0
}

// IsClosedForWrite reports whether the channel has been closed (regardless
// of what remains buffered for the reader to drain).
func (p *Pipe) IsClosedForWrite() bool {
	_, closed := p.closed.isSet()
	return closed
}

// TotalBytesRead returns the cumulative number of bytes delivered to the
// reader so far.
func (p *Pipe) TotalBytesRead() uint64 { return p.totalBytesRead.Load() }

// TotalBytesWritten returns the cumulative number of bytes accepted from
// the writer so far.
func (p *Pipe) TotalBytesWritten() uint64 { return p.totalBytesWritten.Load() }

// AutoFlush reports whether this pipe implicitly flushes after every
// completed write.
func (p *Pipe) AutoFlush() bool { return p.autoFlush }

// Flush promotes pending writes to readable and wakes a parked reader if
// one is now unblocked. If this pipe is a join source, the delegate is
// flushed first.
func (p *Pipe) Flush() error {
	if j := p.join.Load(); j != nil {
		if err := j.delegateTo.Flush(); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked()
}

func (p *Pipe) flushLocked() error {
	if p.backing == nil {
		return nil
	}
	if p.capacity.flush() {
		if p.capacity.availableForRead >= 1 {
			p.readSlot.signal()
		}
	}
	if p.capacity.availableForWrite >= 1 {
		p.writeSlot.signal()
	}
	return nil
}

// Close closes the writer side without a cause: pending bytes remain
// readable, and the reader observes end-of-stream once it has drained
// them. Close is idempotent; only the first call has any effect.
func (p *Pipe) Close() error {
	return p.closeWithCause(nil)
}

// CloseWithCause is an abortive close: cause becomes sticky and is
// delivered to both a currently parked reader/writer and to any future
// call. A nil cause behaves like Close.
func (p *Pipe) CloseWithCause(cause error) error {
	return p.closeWithCause(cause)
}

// Cancel is equivalent to CloseWithCause(cause), defaulting to
// ErrCancellation when cause is nil.
func (p *Pipe) Cancel(cause error) error {
	if cause == nil {
		cause = ErrCancellation
	}
	return p.closeWithCause(cause)
}

func (p *Pipe) closeWithCause(cause error) error {
	first := p.closed.trySet(cause)

	p.mu.Lock()
	p.flushLocked()
	if first {
		if p.backing == nil || (p.capacity.isEmpty() && p.capacity.pendingToFlush == 0) || cause != nil {
			p.terminateLocked(cause)
		}
	}
	p.flushLocked()
	p.readSlot.broadcast()
	p.writeSlot.broadcast()
	js := p.join.Load()
	p.mu.Unlock()

	if first && p.watchCancel != nil {
		p.watchCancel()
	}
	if first && js != nil && js.delegateClose {
		_ = js.delegateTo.p.closeWithCause(cause)
	}
	return nil
}

// AttachContext ties this pipe's lifetime to ctx: when ctx is done, the
// pipe is closed with ctx.Err() as cause. It spawns one watcher goroutine
// per call; callers typically call it once, right after NewPipe.
func (p *Pipe) AttachContext(ctx context.Context) {
	watchCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.watchCancel = cancel
	p.mu.Unlock()
	go func() {
		<-watchCtx.Done()
		if watchCtx.Err() == context.Canceled && ctx.Err() == nil {
			// cancelled locally by a normal close, not by ctx itself.
			return
		}
		_ = p.closeWithCause(ctx.Err())
	}()
}

// PipeReader is the read half of a Pipe. It implements io.Reader,
// io.WriterTo and io.Closer.
type PipeReader struct {
	p *Pipe
}

// PipeWriter is the write half of a Pipe. It implements io.Writer,
// io.ReaderFrom and io.Closer.
type PipeWriter struct {
	p *Pipe
}

func (r *PipeReader) AvailableForRead() int          { return r.p.AvailableForRead() }
func (r *PipeReader) IsClosedForRead() bool          { return r.p.IsClosedForRead() }
func (r *PipeReader) TotalBytesRead() uint64         { return r.p.TotalBytesRead() }
func (r *PipeReader) Close() error                   { return r.p.Close() }
func (r *PipeReader) CloseWithError(err error) error { return r.p.CloseWithCause(err) }

func (w *PipeWriter) AvailableForWrite() int            { return w.p.AvailableForWrite() }
func (w *PipeWriter) IsClosedForWrite() bool            { return w.p.IsClosedForWrite() }
func (w *PipeWriter) TotalBytesWritten() uint64         { return w.p.TotalBytesWritten() }
func (w *PipeWriter) AutoFlush() bool                   { return w.p.AutoFlush() }
func (w *PipeWriter) Flush() error                      { return w.p.Flush() }
func (w *PipeWriter) Close() error                      { return w.p.Close() }
func (w *PipeWriter) CloseWithError(err error) error    { return w.p.CloseWithCause(err) }
func (w *PipeWriter) AttachContext(ctx context.Context) { w.p.AttachContext(ctx) }

// JoinFrom splices src's future output into w's pipe. Once joined, src is
// no longer independently readable: reads on src return as
// if the channel were closed, and any concurrent write to src is
// redirected into w's pipe. If delegateClose is true, src's eventual close
// also closes w's pipe with the same cause.
func (w *PipeWriter) JoinFrom(src *PipeReader, delegateClose bool) error {
	return w.p.JoinFrom(src.p, delegateClose)
}
