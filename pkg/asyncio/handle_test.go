package asyncio

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStart struct {
	op     opKind
	length int
	offset int64
}

type fakeTransfer struct {
	file  *fakeFile
	done  bool
	count int
	err   error

	aborts         int
	abortedOpenFile bool
}

func (ft *fakeTransfer) poll(time.Duration) (bool, int, error) {
	return ft.done, ft.count, ft.err
}

func (ft *fakeTransfer) abort() {
	ft.aborts++
	ft.abortedOpenFile = ft.file.closes == 0
}

type fakeFile struct {
	starts    []fakeStart
	transfers []*fakeTransfer
	startErr  error
	closes    int
}

func (ff *fakeFile) start(op opKind, buf []byte, offset int64) (transfer, error) {
	if ff.startErr != nil {
		return nil, ff.startErr
	}
	ff.starts = append(ff.starts, fakeStart{op: op, length: len(buf), offset: offset})
	tr := &fakeTransfer{file: ff}
	ff.transfers = append(ff.transfers, tr)
	return tr, nil
}

func (ff *fakeFile) close() error {
	ff.closes++
	return nil
}

func (ff *fakeFile) complete(count int, err error) {
	tr := ff.transfers[len(ff.transfers)-1]
	tr.done, tr.count, tr.err = true, count, err
}

func newFakeHandle() (*Handle, *fakeFile) {
	ff := new(fakeFile)
	return newHandle("fake", ff, log.New(io.Discard, "", 0)), ff
}

func TestSecondInitiateWhilePending(t *testing.T) {
	h, ff := newFakeHandle()

	require.NoError(t, h.Read(make([]byte, 512)))
	require.ErrorIs(t, h.Read(make([]byte, 512)), ErrOperationPending)
	require.ErrorIs(t, h.Write(make([]byte, 512)), ErrOperationPending)
	require.Len(t, ff.starts, 1)

	ff.complete(512, nil)
	require.NoError(t, h.Read(make([]byte, 512)))
	require.Equal(t, []fakeStart{{opRead, 512, 0}, {opRead, 512, 512}}, ff.starts)
}

func TestSequentialOffsets(t *testing.T) {
	h, ff := newFakeHandle()
	const l1, l2 = 4096, 1000

	require.NoError(t, h.Write(make([]byte, l1)))
	ff.complete(l1, nil)
	require.NoError(t, h.Wait(time.Second))

	size, err := h.TransferredSize()
	require.NoError(t, err)
	require.EqualValues(t, l1, size)

	require.NoError(t, h.Write(make([]byte, l2)))
	size, err = h.TransferredSize()
	require.NoError(t, err)
	require.EqualValues(t, l1, size, "in-flight transfer must not be counted")

	ff.complete(l2, nil)
	size, err = h.TransferredSize()
	require.NoError(t, err)
	require.EqualValues(t, l1+l2, size)

	require.Equal(t, []fakeStart{{opWrite, l1, 0}, {opWrite, l2, l1}}, ff.starts)
}

func TestWaitTimeoutDoesNotCancel(t *testing.T) {
	h, ff := newFakeHandle()

	require.NoError(t, h.Write(make([]byte, 64)))
	require.ErrorIs(t, h.Wait(time.Millisecond), ErrWaitTimeout)
	require.ErrorIs(t, h.Wait(0), ErrWaitTimeout)

	ff.complete(64, nil)
	require.NoError(t, h.Wait(time.Millisecond))
	size, err := h.TransferredSize()
	require.NoError(t, err)
	require.EqualValues(t, 64, size)
}

func TestWaitWhenIdle(t *testing.T) {
	h, ff := newFakeHandle()
	require.NoError(t, h.Wait(time.Hour))

	errMedium := errors.New("medium error")
	require.NoError(t, h.Read(make([]byte, 64)))
	ff.complete(10, errMedium)
	require.ErrorIs(t, h.Wait(time.Hour), errMedium)

	//Completed, nothing in flight, the last result is reported without blocking
	require.ErrorIs(t, h.Wait(time.Hour), errMedium)

	//Bytes moved before the failure still advance the cursor
	size, err := h.TransferredSize()
	require.NoError(t, err)
	require.EqualValues(t, 10, size)
}

func TestZeroCountDoesNotAdvance(t *testing.T) {
	h, ff := newFakeHandle()

	require.NoError(t, h.Read(make([]byte, 64)))
	ff.complete(0, nil)
	require.NoError(t, h.Read(make([]byte, 64)))
	require.EqualValues(t, 0, ff.starts[1].offset)
}

func TestStartFailure(t *testing.T) {
	h, ff := newFakeHandle()
	ff.startErr = errors.New("device gone")

	require.ErrorIs(t, h.Write(make([]byte, 64)), ff.startErr)
	require.NoError(t, h.Wait(0), "a failed start leaves nothing in flight")
}

func TestClose(t *testing.T) {
	var nilHandle *Handle
	require.NoError(t, nilHandle.Close())
	require.ErrorIs(t, nilHandle.Read(nil), ErrClosed)

	h, ff := newFakeHandle()
	require.NoError(t, h.Write(make([]byte, 8)))
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	require.Equal(t, 1, ff.closes)

	require.ErrorIs(t, h.Write(nil), ErrClosed)
	require.ErrorIs(t, h.Wait(0), ErrClosed)
	_, err := h.TransferredSize()
	require.ErrorIs(t, err, ErrClosed)
}

func TestCloseAbortsPending(t *testing.T) {
	h, ff := newFakeHandle()
	require.NoError(t, h.Write(make([]byte, 8)))
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	tr := ff.transfers[0]
	require.Equal(t, 1, tr.aborts, "Pending transfer should be aborted exactly once")
	require.True(t, tr.abortedOpenFile, "Transfer should be aborted before the file is closed")
	require.Equal(t, 1, ff.closes)
}

func TestCloseAfterCompletionDoesNotAbort(t *testing.T) {
	h, ff := newFakeHandle()
	require.NoError(t, h.Write(make([]byte, 8)))
	ff.complete(8, nil)
	require.NoError(t, h.Wait(time.Second))
	require.NoError(t, h.Close())

	require.Zero(t, ff.transfers[0].aborts)
	require.Equal(t, 1, ff.closes)
}
