package strms

import (
	"io"
	"sync/atomic"
)

//CountingReader tallies the bytes read through it, the count may be sampled
// from another goroutine (ex. a progress ticker) while reads continue
type CountingReader struct {
	rdr         io.Reader
	atomicCount int64
}

var _ io.Reader = (*CountingReader)(nil)

//NewCountingReader wraps rdr
func NewCountingReader(rdr io.Reader) *CountingReader {
	return &CountingReader{rdr: rdr}
}

func (cr *CountingReader) Read(buf []byte) (int, error) {
	n, err := cr.rdr.Read(buf)
	atomic.AddInt64(&cr.atomicCount, int64(n))
	return n, err
}

//Count of bytes read so far
func (cr *CountingReader) Count() int64 {
	return atomic.LoadInt64(&cr.atomicCount)
}
