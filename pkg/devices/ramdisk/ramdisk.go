package ramdisk

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/tarndt/rawblk/pkg/devices"
)

//RAMDisk is a memory (heap) backed raw device, it counts the operations made
// against it so tests can assert how much I/O a layer performed
type RAMDisk struct {
	mu   sync.Mutex
	disk []byte
	pos  int64

	atomicOnline uint64
	atomicReads  uint64
	atomicWrites uint64
	atomicSeeks  uint64
}

var _ devices.Device = (*RAMDisk)(nil)

//NewRAMDisk constructs a zero filled memory backed device of the provided size
func NewRAMDisk(size int64) *RAMDisk {
	return NewRAMDiskFrom(make([]byte, int(size)))
}

//NewRAMDiskFrom constructs a device over existing memory (ex. a memory map),
// the device size is len(disk)
func NewRAMDiskFrom(disk []byte) *RAMDisk {
	return &RAMDisk{
		disk:         disk,
		atomicOnline: 1,
	}
}

//Size of this device in bytes
func (rdsk *RAMDisk) Size() int64 {
	return int64(len(rdsk.disk))
}

//Bytes exposes the backing memory, only safe while no I/O is in progress
func (rdsk *RAMDisk) Bytes() []byte {
	return rdsk.disk
}

//Ops returns the number of reads, writes and seeks performed so far
func (rdsk *RAMDisk) Ops() (reads, writes, seeks uint64) {
	return atomic.LoadUint64(&rdsk.atomicReads), atomic.LoadUint64(&rdsk.atomicWrites), atomic.LoadUint64(&rdsk.atomicSeeks)
}

//Read fufills io.Reader from the current position
func (rdsk *RAMDisk) Read(buf []byte) (int, error) {
	rdsk.mu.Lock()
	defer rdsk.mu.Unlock()

	count, err := rdsk.readAt(buf, rdsk.pos)
	rdsk.pos += int64(count)
	return count, err
}

//Write fufills io.Writer at the current position
func (rdsk *RAMDisk) Write(buf []byte) (int, error) {
	rdsk.mu.Lock()
	defer rdsk.mu.Unlock()

	count, err := rdsk.writeAt(buf, rdsk.pos)
	rdsk.pos += int64(count)
	return count, err
}

//Seek fufills io.Seeker, positions beyond the end are allowed as with files
func (rdsk *RAMDisk) Seek(offset int64, whence int) (int64, error) {
	if atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		return 0, devices.ErrClosed
	}
	atomic.AddUint64(&rdsk.atomicSeeks, 1)

	rdsk.mu.Lock()
	defer rdsk.mu.Unlock()

	pos, err := devices.Seek(rdsk.pos, rdsk.Size(), offset, whence)
	if err != nil {
		return pos, err
	}
	rdsk.pos = pos
	return pos, nil
}

//ReadAt fufills io.ReaderAt
func (rdsk *RAMDisk) ReadAt(buf []byte, pos int64) (int, error) {
	count, err := rdsk.readAt(buf, pos)
	if err == nil && count < len(buf) {
		err = io.EOF
	}
	return count, err
}

//WriteAt fufills io.WriterAt
func (rdsk *RAMDisk) WriteAt(buf []byte, pos int64) (int, error) {
	return rdsk.writeAt(buf, pos)
}

func (rdsk *RAMDisk) readAt(buf []byte, pos int64) (int, error) {
	if atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		return 0, devices.ErrClosed
	}
	atomic.AddUint64(&rdsk.atomicReads, 1)

	if pos >= rdsk.Size() {
		if len(buf) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	return copy(buf, rdsk.disk[pos:]), nil
}

func (rdsk *RAMDisk) writeAt(buf []byte, pos int64) (int, error) {
	if atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		return 0, devices.ErrClosed
	}
	atomic.AddUint64(&rdsk.atomicWrites, 1)

	if pos >= rdsk.Size() {
		if len(buf) == 0 {
			return 0, nil
		}
		return 0, devices.ErrNoSpace
	}
	count := copy(rdsk.disk[pos:], buf)
	if count < len(buf) {
		return count, devices.ErrNoSpace
	}
	return count, nil
}

//Flush fufills part of devices.Device
func (rdsk *RAMDisk) Flush() error {
	if atomic.LoadUint64(&rdsk.atomicOnline) != 1 {
		return devices.ErrClosed
	}
	return nil
}

//Close fufills io.Closer and in turn part of devices.Device
func (rdsk *RAMDisk) Close() error {
	atomic.StoreUint64(&rdsk.atomicOnline, 0)
	return nil
}
