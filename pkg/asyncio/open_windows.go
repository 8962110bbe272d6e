//go:build windows

package asyncio

import (
	"errors"
	"math"
	"time"

	"golang.org/x/sys/windows"
)

//overlappedFile issues overlapped transfers signalled through one manual
// reset event, the handle has at most one transfer in flight
type overlappedFile struct {
	handle windows.Handle
	event  windows.Handle
}

func openFile(path string, access Access, share ShareMode, disposition Disposition, attrs Attributes) (file, error) {
	var desiredAccess uint32
	if access&AccessRead != 0 {
		desiredAccess |= windows.GENERIC_READ
	}
	if access&AccessWrite != 0 {
		desiredAccess |= windows.GENERIC_WRITE
	}
	if desiredAccess == 0 {
		return nil, ErrInvalidAccess
	}
	if disposition < CreateNew || disposition > TruncateExisting {
		return nil, ErrInvalidDisposition
	}

	var shareMode uint32
	if share&ShareRead != 0 {
		shareMode |= windows.FILE_SHARE_READ
	}
	if share&ShareWrite != 0 {
		shareMode |= windows.FILE_SHARE_WRITE
	}
	if share&ShareDelete != 0 {
		shareMode |= windows.FILE_SHARE_DELETE
	}

	flags := uint32(windows.FILE_ATTRIBUTE_NORMAL | windows.FILE_FLAG_OVERLAPPED)
	if attrs&AttrNoBuffering != 0 {
		flags |= windows.FILE_FLAG_NO_BUFFERING
	}
	if attrs&AttrWriteThrough != 0 {
		flags |= windows.FILE_FLAG_WRITE_THROUGH
	}

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	handle, err := windows.CreateFile(pathPtr, desiredAccess, shareMode, nil, uint32(disposition), flags, 0)
	if err != nil {
		return nil, err
	}

	event, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, err
	}
	return &overlappedFile{handle: handle, event: event}, nil
}

func (of *overlappedFile) start(op opKind, buf []byte, offset int64) (transfer, error) {
	if err := windows.ResetEvent(of.event); err != nil {
		return nil, err
	}

	tr := &overlappedTransfer{
		file: of,
		op:   op,
		buf:  buf,
		ov: &windows.Overlapped{
			Offset:     uint32(offset),
			OffsetHigh: uint32(offset >> 32),
			HEvent:     of.event,
		},
	}

	var count uint32
	var err error
	if op == opRead {
		err = windows.ReadFile(of.handle, buf, &count, tr.ov)
	} else {
		err = windows.WriteFile(of.handle, buf, &count, tr.ov)
	}

	switch {
	case err == nil, errors.Is(err, windows.ERROR_IO_PENDING):
		return tr, nil
	case op == opRead && errors.Is(err, windows.ERROR_HANDLE_EOF):
		tr.done = true
		return tr, nil
	}
	return nil, err
}

func (of *overlappedFile) close() error {
	eventErr := windows.CloseHandle(of.event)
	if err := windows.CloseHandle(of.handle); err != nil {
		return err
	}
	return eventErr
}

type overlappedTransfer struct {
	file *overlappedFile
	op   opKind
	ov   *windows.Overlapped
	buf  []byte //referenced until completion so it stays alive

	done  bool
	count int
	err   error
}

//abort cancels the transfer and waits for the kernel to release ov and buf.
// CancelIoEx fails with ERROR_NOT_FOUND when the transfer already finished, the
// wait returns at once then.
func (tr *overlappedTransfer) abort() {
	if tr.done {
		return
	}
	windows.CancelIoEx(tr.file.handle, tr.ov)

	var count uint32
	windows.GetOverlappedResult(tr.file.handle, tr.ov, &count, true)
	tr.done, tr.err, tr.buf = true, windows.ERROR_OPERATION_ABORTED, nil
}

func (tr *overlappedTransfer) poll(timeout time.Duration) (bool, int, error) {
	if tr.done {
		return true, tr.count, tr.err
	}

	millis := uint32(0)
	if timeout > 0 {
		millis = uint32(math.MaxUint32 - 1)
		if ms := timeout.Milliseconds(); ms < int64(millis) {
			millis = uint32(ms)
		}
	}

	event, err := windows.WaitForSingleObject(tr.file.event, millis)
	switch {
	case err != nil:
		tr.done, tr.err = true, err
		return true, 0, err
	case event == uint32(windows.WAIT_TIMEOUT):
		return false, 0, nil
	case event != windows.WAIT_OBJECT_0:
		tr.done, tr.err = true, windows.ERROR_INVALID_HANDLE
		return true, 0, tr.err
	}

	var count uint32
	err = windows.GetOverlappedResult(tr.file.handle, tr.ov, &count, false)
	if errors.Is(err, windows.ERROR_IO_INCOMPLETE) {
		return false, 0, nil
	}
	if tr.op == opRead && errors.Is(err, windows.ERROR_HANDLE_EOF) {
		err = nil
	}

	tr.done, tr.count, tr.err, tr.buf = true, int(count), err, nil
	return true, tr.count, tr.err
}
