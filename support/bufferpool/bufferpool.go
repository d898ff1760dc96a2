// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package bufferpool offers reference-counted, reusable frame buffers.
package bufferpool

import (
	"sync"
	"sync/atomic"
)

// Pool maintains a pool of buffers. It offers a new buffer when one is
// unavailable.
type Pool struct {
	// Size is the minimum capacity of the buffers in this pool.
	Size int

	base sync.Pool

	// outstanding is the number of buffers that have been handed out and not
	// released.
	outstanding int64
}

// Get returns a buffer, allocating one if one is not available. The returned
// buffer holds Size bytes and has a reference count of 1.
//
// The caller should return the buffer to the pool by calling its Release method
// when done with it.
func (bp *Pool) Get() *Buffer {
	b, ok := bp.base.Get().(*Buffer)
	if !ok || cap(b.bytes) < bp.Size {
		// Create a blank buffer. When it is released, it will be added back to
		// pool.
		b = &Buffer{
			bytes: make([]byte, bp.Size),
		}
	}

	b.pool = bp
	b.bytes = b.bytes[:bp.Size]
	b.refcount = 1
	atomic.AddInt64(&bp.outstanding, 1)
	return b
}

// Snapshot returns a buffer holding a copy of src.
//
// If src is larger than the pool's Size, the pool's Size is not changed, but
// the returned buffer will still hold all of src.
func (bp *Pool) Snapshot(src []byte) *Buffer {
	b := bp.Get()
	if cap(b.bytes) < len(src) {
		b.bytes = make([]byte, len(src))
	}
	b.bytes = b.bytes[:len(src)]
	copy(b.bytes, src)
	return b
}

// Outstanding returns the number of buffers that have been taken from the
// pool and not yet released.
func (bp *Pool) Outstanding() int64 { return atomic.LoadInt64(&bp.outstanding) }

func (bp *Pool) releaseNode(b *Buffer) {
	atomic.AddInt64(&bp.outstanding, -1)
	bp.base.Put(b)
}

// Buffer contains a byte buffer that can be released into a Pool for reuse.
//
// Buffer is reference counted, and can be retained and released appropriately.
// Failure to release Buffer will not cause a memory leak, but will prevent the
// reuse of the Buffer.
type Buffer struct {
	refcount int64

	bytes []byte
	pool  *Pool
}

// Bytes returns this buffer's byte slice.
func (b *Buffer) Bytes() []byte { return b.bytes }

// Len returns the number of bytes in the buffer.
func (b *Buffer) Len() int { return len(b.bytes) }

// Truncate caps the number of bytes returned by Bytes. It cannot grow the
// buffer.
func (b *Buffer) Truncate(size int) {
	if size < len(b.bytes) {
		b.bytes = b.bytes[:size]
	}
}

// Release returns the buffer to its buffer pool.
//
// Release is safe for concurrent use.
//
// A Buffer must only be released once per reference.
func (b *Buffer) Release() {
	if atomic.AddInt64(&b.refcount, -1) != 0 {
		return
	}

	var pool *Pool
	pool, b.pool = b.pool, nil
	pool.releaseNode(b)
}

// Retain increases the Buffer's reference count. It should be accompanied by
// a Release call to reuse the buffer when it's finished.
func (b *Buffer) Retain() { atomic.AddInt64(&b.refcount, 1) }
