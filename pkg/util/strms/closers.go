package strms

import (
	"io"
)

type stackedReadCloser struct {
	io.Reader
	closers []io.Closer
}

var _ io.ReadCloser = (*stackedReadCloser)(nil)

//NewStackedReadCloser reads from rdr but when closed closes each provided
// closer, last first, like deferred calls. A decompressor wrapping an image
// file is passed as (decompressor, file, decompressor).
func NewStackedReadCloser(rdr io.Reader, closers ...io.Closer) io.ReadCloser {
	return &stackedReadCloser{
		Reader:  rdr,
		closers: closers,
	}
}

//Close closes every closer even after a failure and reports the first error
func (src *stackedReadCloser) Close() (err error) {
	for i := len(src.closers) - 1; i >= 0; i-- {
		if clsrErr := src.closers[i].Close(); clsrErr != nil && err == nil {
			err = clsrErr
		}
	}
	src.closers = nil
	return err
}
