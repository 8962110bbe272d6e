//Package devices holds the backing stores raw sector I/O runs against, a
// physical drive or image file in production and memory in tests
package devices

import (
	"io"

	"github.com/tarndt/rawblk/pkg/sectorio"
	"github.com/tarndt/rawblk/pkg/util/consterr"
)

const (
	//ErrClosed is returned by every operation on a closed device
	ErrClosed = consterr.ConstErr("Device is closed")
	//ErrNoSpace is returned by writes extending past the end of a device
	ErrNoSpace = consterr.ConstErr("Write extends past the end of the device")
)

//Device is a seekable raw device that can also be accessed positionally
type Device interface {
	sectorio.Device
	io.ReaderAt
	io.WriterAt
	io.Closer

	//Size of the device in bytes
	Size() int64
	//Flush persists writes to stable storage
	Flush() error
}

//Seek resolves a whence relative offset against cur and size, the helper each
// device implementation shares for io.Seeker semantics
func Seek(cur, size, offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = cur + offset
	case io.SeekEnd:
		abs = size + offset
	default:
		return cur, ErrBadWhence
	}
	if abs < 0 {
		return cur, ErrNegativeOffset
	}
	return abs, nil
}

const (
	//ErrBadWhence is returned by Seek for an unknown whence
	ErrBadWhence = consterr.ConstErr("Invalid seek whence")
	//ErrNegativeOffset is returned by Seek for a position before the start of a device
	ErrNegativeOffset = consterr.ConstErr("Seek to a negative position")
)
