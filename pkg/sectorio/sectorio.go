//Package sectorio performs whole-sector reads and writes against a raw block
// device (or an image of one). Every transfer is an absolute seek followed by
// exactly one read or write of numSectors*sectorSize bytes.
package sectorio

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/tarndt/rawblk/pkg/util/consterr"
)

const (
	//MaxTransferLen is the largest byte count a single sector transfer may move
	MaxTransferLen = math.MaxUint32

	ErrInvalidSectorSize = consterr.ConstErr("Sector size must be greater than zero")
	ErrTransferTooLarge  = consterr.ConstErr("Transfer exceeds the 32-bit byte count limit")
	ErrOffsetOutOfRange  = consterr.ConstErr("Start sector is beyond the addressable range")
	ErrBufferTooSmall    = consterr.ConstErr("Buffer is smaller than the requested sector span")
	ErrShortWrite        = consterr.ConstErr("Device wrote fewer bytes than requested")
	ErrShortRead         = consterr.ConstErr("Device read fewer bytes than requested")
)

//Device is an open block device or image positioned by absolute seeks. Callers
// serialize access to a given Device.
type Device interface {
	io.ReadWriteSeeker
}

//Logger receives diagnostics; *log.Logger satisfies it
type Logger interface {
	Printf(format string, args ...interface{})
}

//SectorIO performs sector granular transfers for one sector geometry. It keeps
// no per-call state so one instance may serve many devices of that geometry.
type SectorIO struct {
	sectorSize uint64
	largeDrive LargeDrivePredicate
	logger     Logger
	metrics    *sectorMetrics
}

//New returns a SectorIO for devices with the provided sector size
func New(sectorSize uint64, opts ...Option) (*SectorIO, error) {
	if sectorSize == 0 {
		return nil, ErrInvalidSectorSize
	}

	sio := &SectorIO{
		sectorSize: sectorSize,
		largeDrive: LargeDrive(false),
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt.apply(sio)
	}
	return sio, nil
}

//SectorSize in bytes
func (sio *SectorIO) SectorSize() uint64 {
	return sio.sectorSize
}

//Logger diagnostics are sent to, layers built on this one share it
func (sio *SectorIO) Logger() Logger {
	return sio.logger
}

//WriteSectors writes numSectors sectors from buf starting at startSector. The
// only tolerated mismatch is a zero byte write on a large drive, which is
// logged and reported as (0, nil).
func (sio *SectorIO) WriteSectors(dev Device, startSector, numSectors uint64, buf []byte) (int64, error) {
	size, err := sio.prepare("WriteSectors", dev, startSector, numSectors, buf)
	if err != nil {
		return 0, err
	}

	count, err := dev.Write(buf[:size])
	switch {
	case err == nil && uint64(count) == size:
		return int64(count), nil

	case count == 0 && size > 0 && (err == nil || errors.Is(err, io.ErrShortWrite)) && sio.largeDrive():
		sio.logger.Printf("SectorIO::WriteSectors(): WARNING: Possible short write of 0 bytes to sector %d (count = %d, sector size = %d); tolerated as drive is large",
			startSector, numSectors, sio.sectorSize)
		sio.metrics.toleratedShortWrite()
		return 0, nil
	}

	if err == nil {
		err = ErrShortWrite
	}
	sio.logger.Printf("SectorIO::WriteSectors(): Write error: wrote %d of %s (%d bytes) at sector %d (count = %d, sector size = %d); Details: %s",
		count, humanize.IBytes(size), size, startSector, numSectors, sio.sectorSize, err)
	return int64(count), fmt.Errorf("Could not write %d sectors at sector %d, wrote %d of %d bytes: %w", numSectors, startSector, count, size, err)
}

//ReadSectors reads numSectors sectors into buf starting at startSector. A short
// read is an error, but the returned count is the bytes actually read.
func (sio *SectorIO) ReadSectors(dev Device, startSector, numSectors uint64, buf []byte) (int64, error) {
	size, err := sio.prepare("ReadSectors", dev, startSector, numSectors, buf)
	if err != nil {
		return 0, err
	}

	count, err := io.ReadFull(dev, buf[:size])
	if err == nil {
		return int64(count), nil
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = ErrShortRead
	}
	sio.logger.Printf("SectorIO::ReadSectors(): Read error: read %d of %s (%d bytes) at sector %d (count = %d, sector size = %d); Details: %s",
		count, humanize.IBytes(size), size, startSector, numSectors, sio.sectorSize, err)
	return int64(count), fmt.Errorf("Could not read %d sectors at sector %d, read %d of %d bytes: %w", numSectors, startSector, count, size, err)
}

//prepare validates a request and seeks to its first sector, nothing is
// transferred if it fails
func (sio *SectorIO) prepare(op string, dev Device, startSector, numSectors uint64, buf []byte) (size uint64, err error) {
	if numSectors > MaxTransferLen/sio.sectorSize {
		sio.logger.Printf("SectorIO::%s(): Request for %d sectors of %d bytes exceeds %d bytes", op, numSectors, sio.sectorSize, uint64(MaxTransferLen))
		return 0, ErrTransferTooLarge
	}
	size = numSectors * sio.sectorSize

	if uint64(len(buf)) < size {
		sio.logger.Printf("SectorIO::%s(): Buffer of %d bytes cannot hold %d sectors of %d bytes", op, len(buf), numSectors, sio.sectorSize)
		return 0, ErrBufferTooSmall
	}

	if startSector > math.MaxInt64/sio.sectorSize {
		sio.logger.Printf("SectorIO::%s(): Start sector %d (sector size = %d) cannot be addressed", op, startSector, sio.sectorSize)
		return 0, ErrOffsetOutOfRange
	}
	offset := int64(startSector * sio.sectorSize)

	if _, err = dev.Seek(offset, io.SeekStart); err != nil {
		sio.logger.Printf("SectorIO::%s(): Could not seek to sector %d (offset = %d, sector size = %d); Details: %s",
			op, startSector, offset, sio.sectorSize, err)
		return 0, fmt.Errorf("Could not seek to sector %d: %w", startSector, err)
	}
	return size, nil
}
