// Package bufpool provides pooled byte slices for the read-modify-write
// buffers the translation engine allocates once per block touched by an
// unaligned pwrite/zero, to avoid a hot-path allocation per RMW on large
// object sizes.
package bufpool

import "sync"

// Buffer size thresholds. Requests smaller than size128k are allocated
// directly: most configured object sizes in the small/test range do not
// benefit from pooling, and forcing every tiny block through a 128KB
// bucket would waste far more memory than it saves allocations.
const (
	size128k = 128 * 1024
	size256k = 256 * 1024
	size512k = 512 * 1024
	size1m   = 1024 * 1024
)

// globalPool is the shared buffer pool for every Engine. Uses the
// pointer-to-slice pattern to avoid sync.Pool's interface allocation
// overhead.
var globalPool = struct {
	pool128k sync.Pool
	pool256k sync.Pool
	pool512k sync.Pool
	pool1m   sync.Pool
}{
	pool128k: sync.Pool{New: func() any { b := make([]byte, size128k); return &b }},
	pool256k: sync.Pool{New: func() any { b := make([]byte, size256k); return &b }},
	pool512k: sync.Pool{New: func() any { b := make([]byte, size512k); return &b }},
	pool1m:   sync.Pool{New: func() any { b := make([]byte, size1m); return &b }},
}

// Get returns a buffer of exactly the requested size. Sizes at or above
// size128k are served from a size-bucketed pool; smaller sizes are
// allocated directly. Callers that obtain a pooled buffer must call Put
// when done; callers are not required to track which path was taken.
//
// A pooled buffer carries whatever bytes a previous Put left in it: Get
// does not zero it. Callers that need a zeroed buffer (e.g. substituting
// for a sparse/missing block) must use GetZeroed instead.
func Get(size uint64) []byte {
	switch {
	case size < size128k:
		return make([]byte, size)
	case size <= size128k:
		return (*globalPool.pool128k.Get().(*[]byte))[:size]
	case size <= size256k:
		return (*globalPool.pool256k.Get().(*[]byte))[:size]
	case size <= size512k:
		return (*globalPool.pool512k.Get().(*[]byte))[:size]
	case size <= size1m:
		return (*globalPool.pool1m.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// GetZeroed returns a buffer of exactly the requested size with every
// byte set to zero, for callers substituting a buffer for sparse/missing
// data rather than scratch space they are about to overwrite entirely.
func GetZeroed(size uint64) []byte {
	buf := Get(size)
	clear(buf)
	return buf
}

// Put returns buf to the pool it came from, inferred from its capacity.
// Buffers with a non-standard capacity (including every direct
// allocation from Get) are simply dropped.
func Put(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size128k:
		globalPool.pool128k.Put(&buf)
	case size256k:
		globalPool.pool256k.Put(&buf)
	case size512k:
		globalPool.pool512k.Put(&buf)
	case size1m:
		globalPool.pool1m.Put(&buf)
	}
}
