package wal

import "sync"

// bufferPool recycles the staging buffers WriteRecord encodes records into
// before they're copied to the ring buffer's mmap/file region, avoiding a
// per-write allocation on the group-commit hot path.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 0, 8192)
		return &buf
	},
}

// AcquireBuffer obtains a pooled byte buffer.
func AcquireBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// ReleaseBuffer returns buf to the pool.
func ReleaseBuffer(buf *[]byte) {
	*buf = (*buf)[:0]
	bufferPool.Put(buf)
}
