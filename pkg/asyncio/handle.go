//Package asyncio provides handles with at most one asynchronous transfer in
// flight. Each transfer starts where the previous one ended, so callers get
// sequential semantics without tracking offsets.
package asyncio

import (
	"fmt"
	"log"
	"time"

	"github.com/tarndt/rawblk/pkg/util/consterr"
)

const (
	ErrClosed             = consterr.ConstErr("Handle is closed")
	ErrOperationPending   = consterr.ConstErr("An operation is already in flight on this handle")
	ErrWaitTimeout        = consterr.ConstErr("Timed out waiting for the operation to complete")
	ErrInvalidAccess      = consterr.ConstErr("Access must include read and/or write")
	ErrInvalidDisposition = consterr.ConstErr("Unknown creation disposition")
)

//Logger receives diagnostics; *log.Logger satisfies it
type Logger interface {
	Printf(format string, args ...interface{})
}

//Option is a Handle option
type Option interface {
	apply(*Handle)
}

//OptLogger instructs a Handle to send diagnostics to the provided logger
type OptLogger struct {
	Logger
}

func (optLogger OptLogger) apply(h *Handle) {
	if optLogger.Logger != nil {
		h.logger = optLogger.Logger
	}
}

type opKind int

const (
	opRead opKind = iota
	opWrite
)

func (op opKind) String() string {
	if op == opRead {
		return "read"
	}
	return "write"
}

type state int

const (
	stateIdle state = iota
	statePending
	stateCompleted
	stateClosed
)

//file is the platform descriptor transfers are started on
type file interface {
	start(op opKind, buf []byte, offset int64) (transfer, error)
	close() error
}

//transfer is one in-flight platform operation
type transfer interface {
	//poll waits up to timeout (not at all if <= 0) for completion
	poll(timeout time.Duration) (done bool, count int, err error)
	//abort cancels the transfer where the platform can and returns once the
	// platform no longer references its buffer
	abort()
}

//Handle is an open file or device with a sequential cursor. Callers serialize
// calls on a Handle; distinct Handles share nothing.
type Handle struct {
	path   string
	file   file
	logger Logger

	cursor int64
	state  state

	//valid while statePending
	inFlight transfer
	op       opKind
	length   int

	//valid while stateCompleted
	completedCount int
	lastErr        error
}

//Open opens path for asynchronous access, nil is returned along with any error
func Open(path string, access Access, share ShareMode, disposition Disposition, attrs Attributes, opts ...Option) (*Handle, error) {
	h := &Handle{path: path, logger: log.Default()}
	for _, opt := range opts {
		opt.apply(h)
	}

	f, err := openFile(path, access, share, disposition, attrs)
	if err != nil {
		h.logger.Printf("asyncio::Open(): Could not open %q (access = %s, disposition = %s, attributes = %s); Details: %s",
			path, access, disposition, attrs, err)
		return nil, fmt.Errorf("Could not open %q for asynchronous I/O: %w", path, err)
	}
	h.file = f
	return h, nil
}

func newHandle(path string, f file, logger Logger) *Handle {
	return &Handle{path: path, file: f, logger: logger}
}

//Path the handle was opened with
func (h *Handle) Path() string {
	return h.path
}

//Read starts reading len(buf) bytes at the cursor into buf, buf must not be
// touched until the transfer completes
func (h *Handle) Read(buf []byte) error {
	return h.initiate(opRead, buf)
}

//Write starts writing buf at the cursor, buf must not be touched until the
// transfer completes
func (h *Handle) Write(buf []byte) error {
	return h.initiate(opWrite, buf)
}

func (h *Handle) initiate(op opKind, buf []byte) error {
	if h == nil || h.state == stateClosed {
		return ErrClosed
	}

	if h.state == statePending {
		if h.poll(0); h.state == statePending {
			h.logger.Printf("Handle::%s(): Attempted while a %s of %d bytes at %d is still in flight on %q",
				op, h.op, h.length, h.cursor, h.path)
			return ErrOperationPending
		}
	}
	h.fold()

	tr, err := h.file.start(op, buf, h.cursor)
	if err != nil {
		h.logger.Printf("Handle::%s(): Could not start %s of %d bytes at %d on %q; Details: %s", op, op, len(buf), h.cursor, h.path, err)
		return fmt.Errorf("Could not start %s of %d bytes at offset %d: %w", op, len(buf), h.cursor, err)
	}

	h.state, h.inFlight, h.op, h.length = statePending, tr, op, len(buf)
	h.lastErr = nil
	return nil
}

//Wait blocks until the in-flight transfer completes or timeout elapses. A
// timeout does not cancel the transfer, a later Wait may still observe it
// complete. With nothing in flight the result of the last transfer is returned
// immediately.
func (h *Handle) Wait(timeout time.Duration) error {
	if h == nil || h.state == stateClosed {
		return ErrClosed
	}
	if h.state != statePending {
		return h.lastErr
	}

	if h.poll(timeout); h.state == statePending {
		return ErrWaitTimeout
	}
	return h.lastErr
}

//TransferredSize folds any completed transfer into the cursor and returns it,
// it never blocks
func (h *Handle) TransferredSize() (int64, error) {
	if h == nil || h.state == stateClosed {
		return 0, ErrClosed
	}
	if h.state == statePending {
		h.poll(0)
	}
	h.fold()
	return h.cursor, nil
}

//Close releases the descriptor, a nil Handle is a no-op. A transfer still in
// flight is aborted first, whether any of it completed is undefined.
func (h *Handle) Close() error {
	if h == nil || h.state == stateClosed {
		return nil
	}
	if h.state == statePending {
		h.inFlight.abort()
	}
	h.state, h.inFlight = stateClosed, nil

	if err := h.file.close(); err != nil {
		h.logger.Printf("Handle::Close(): Could not close %q; Details: %s", h.path, err)
		return fmt.Errorf("Could not close %q: %w", h.path, err)
	}
	return nil
}

//poll moves a pending handle to completed if its transfer finished in time
func (h *Handle) poll(timeout time.Duration) {
	done, count, err := h.inFlight.poll(timeout)
	if !done {
		return
	}

	if err != nil {
		h.logger.Printf("Handle::Wait(): %s of %d bytes at %d on %q failed after %d bytes; Details: %s",
			h.op, h.length, h.cursor, h.path, count, err)
		err = fmt.Errorf("Asynchronous %s of %d bytes at offset %d failed: %w", h.op, h.length, h.cursor, err)
	}
	h.state, h.inFlight = stateCompleted, nil
	h.completedCount, h.lastErr = count, err
}

//fold advances the cursor past a completed transfer
func (h *Handle) fold() {
	if h.state != stateCompleted {
		return
	}
	if h.completedCount > 0 {
		h.cursor += int64(h.completedCount)
	}
	h.state, h.completedCount = stateIdle, 0
}
