//go:build !windows

package asyncio

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/ncw/directio"
)

//posixFile completes each transfer on its own goroutine with positional I/O,
// the descriptor's own file position is never used
type posixFile struct {
	*os.File
}

func openFile(path string, access Access, _ ShareMode, disposition Disposition, attrs Attributes) (file, error) {
	var flag int
	switch access {
	case AccessRead:
		flag = os.O_RDONLY
	case AccessWrite:
		flag = os.O_WRONLY
	case AccessReadWrite:
		flag = os.O_RDWR
	default:
		return nil, ErrInvalidAccess
	}

	switch disposition {
	case CreateNew:
		flag |= os.O_CREATE | os.O_EXCL
	case CreateAlways:
		flag |= os.O_CREATE | os.O_TRUNC
	case OpenExisting:
	case OpenAlways:
		flag |= os.O_CREATE
	case TruncateExisting:
		flag |= os.O_TRUNC
	default:
		return nil, ErrInvalidDisposition
	}

	if attrs&AttrWriteThrough != 0 {
		flag |= os.O_SYNC
	}

	const perm = 0o666
	var f *os.File
	var err error
	if attrs&AttrNoBuffering != 0 {
		f, err = directio.OpenFile(path, flag, perm)
	} else {
		f, err = os.OpenFile(path, flag, perm)
	}
	if err != nil {
		return nil, err
	}
	return posixFile{File: f}, nil
}

func (pf posixFile) start(op opKind, buf []byte, offset int64) (transfer, error) {
	tr := &goroutineTransfer{done: make(chan struct{})}
	go func() {
		defer close(tr.done)
		if op == opRead {
			tr.count, tr.err = pf.ReadAt(buf, offset)
			if errors.Is(tr.err, io.EOF) {
				tr.err = nil
			}
			return
		}
		tr.count, tr.err = pf.WriteAt(buf, offset)
	}()
	return tr, nil
}

func (pf posixFile) close() error {
	return pf.Close()
}

type goroutineTransfer struct {
	done  chan struct{}
	count int
	err   error
}

//abort returns at once, the goroutine keeps the buffer reachable until its
// ReadAt/WriteAt returns
func (tr *goroutineTransfer) abort() {}

func (tr *goroutineTransfer) poll(timeout time.Duration) (bool, int, error) {
	if timeout <= 0 {
		select {
		case <-tr.done:
			return true, tr.count, tr.err
		default:
			return false, 0, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-tr.done:
		return true, tr.count, tr.err
	case <-timer.C:
		return false, 0, nil
	}
}
