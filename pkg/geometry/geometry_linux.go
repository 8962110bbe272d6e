//go:build linux

package geometry

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func probeDevice(f *os.File) (Geometry, error) {
	fd := int(f.Fd())

	logical, err := unix.IoctlGetInt(fd, unix.BLKSSZGET)
	if err != nil {
		return Geometry{}, err
	}
	physical, err := unix.IoctlGetUint32(fd, unix.BLKPBSZGET)
	if err != nil {
		physical = uint32(logical)
	}

	var capacity uint64
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&capacity))); errno != 0 {
		return Geometry{}, errno
	}

	return Geometry{
		LogicalSectorSize:  uint64(logical),
		PhysicalSectorSize: uint64(physical),
		Capacity:           capacity,
	}, nil
}
