package util

import "sync"

// ReadBufSize is the chunk size used when draining a shell socket.
// Interactive shells rarely emit more than a screenful per read.
const ReadBufSize = 4 * 1024

// BufPool provides reusable read buffers for socket pumps, one per
// live session.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReadBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
