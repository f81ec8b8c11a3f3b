package ringpipe

import "sync"

// Pool is the pipe's backing-store allocation strategy. A Pipe never
// inspects what a Pool does internally; it only ever calls Get to borrow a
// backing array and Put to recycle one.
type Pool interface {
	// Get returns a []byte of length at least size. Implementations may
	// return a larger slice; the Pipe truncates to what it needs.
	Get(size int) []byte
	// Put returns a backing array previously obtained from Get. Pipe never
	// calls Put twice for the same Get without an intervening Get.
	Put(buf []byte)
}

// syncPool is the default and only Pool implementation, built directly on
// sync.Pool.
type syncPool struct {
	p sync.Pool
}

// NewSyncPool returns a Pool that recycles buffers of size bytes through a
// sync.Pool. Put pools every buffer it is given without checking its size;
// Get allocates a fresh buffer when a pooled one is too small. A Pipe only
// ever recycles what it borrowed.
func NewSyncPool(size int) Pool {
	sp := &syncPool{}
	sp.p.New = func() any {
		return make([]byte, size)
	}
	return sp
}

func (sp *syncPool) Get(size int) []byte {
	buf := sp.p.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size)
	}
	return buf[:size]
}

func (sp *syncPool) Put(buf []byte) {
	sp.p.Put(buf)
}
