//Package dataio reads and writes arbitrary byte ranges of a raw device whose
// only access granularity is whole sectors. Writes are read-modify-write over
// the aligned span covering the range, staged in a bounded scratch buffer.
package dataio

import (
	"bytes"
	"fmt"
	"math"
	"sync"

	"github.com/ncw/directio"
	"github.com/tarndt/rawblk/pkg/sectorio"
	"github.com/tarndt/rawblk/pkg/util/consterr"
)

const (
	//MaxDataLen is the default bound on the aligned span one call may stage
	MaxDataLen = 32 * 1024
	//MaxDataLenLimit caps OptMaxDataLen, it fits an int on every platform
	MaxDataLenLimit = 1 << 30
	//MaxLength is the largest Length a single call may request
	MaxLength = math.MaxUint32

	ErrSpanTooLarge   = consterr.ConstErr("Aligned span exceeds the scratch buffer bound")
	ErrLengthTooLarge = consterr.ConstErr("Length exceeds the 32-bit transfer limit")
)

//Target is a device plus the byte offset positions are relative to. The offset
// stands in for a logical cursor because sector I/O moves the OS file position.
type Target struct {
	Dev    sectorio.Device
	Offset uint64
}

//Span is the aligned sector range covering a byte range
type Span struct {
	AbsolutePosition uint64
	StartSector      uint64
	EndSector        uint64
}

//NumSectors the span covers
func (s Span) NumSectors() uint64 {
	return s.EndSector - s.StartSector
}

//Accessor performs unaligned reads and writes through a SectorIO
type Accessor struct {
	sio        *sectorio.SectorIO
	logger     sectorio.Logger
	maxDataLen uint64
	scratch    sync.Pool
}

//New returns an Accessor using the provided sector I/O
func New(sio *sectorio.SectorIO, opts ...Option) *Accessor {
	acc := &Accessor{
		sio:        sio,
		logger:     sio.Logger(),
		maxDataLen: MaxDataLen,
	}
	for _, opt := range opts {
		opt.apply(acc)
	}

	scratchSize := int(acc.maxDataLen)
	acc.scratch.New = func() interface{} {
		buf := directio.AlignedBlock(scratchSize)
		return &buf
	}
	return acc
}

//MaxDataLen is the largest aligned span this Accessor stages
func (acc *Accessor) MaxDataLen() uint64 {
	return acc.maxDataLen
}

//Span derives the aligned span of length bytes at pos and checks it against
// the bounds, no device I/O is needed
func (acc *Accessor) Span(target Target, pos, length uint64) (Span, error) {
	if length > MaxLength {
		return Span{}, ErrLengthTooLarge
	}
	sectorSize := acc.sio.SectorSize()
	abs := pos + target.Offset
	if abs < pos || abs+length < abs {
		return Span{}, ErrSpanTooLarge
	}

	end := abs + length
	span := Span{
		AbsolutePosition: abs,
		StartSector:      abs / sectorSize,
		EndSector:        end / sectorSize,
	}
	if end%sectorSize != 0 {
		span.EndSector++
	}
	if span.NumSectors() > acc.maxDataLen/sectorSize {
		return span, ErrSpanTooLarge
	}
	return span, nil
}

//ReadData fills out with len(out) bytes found at pos
func (acc *Accessor) ReadData(target Target, pos uint64, out []byte) error {
	if len(out) == 0 {
		return nil
	}
	span, err := acc.checkedSpan("ReadData", target, pos, uint64(len(out)))
	if err != nil {
		return err
	}

	scratch, release := acc.acquire()
	defer release()

	staged, err := acc.stage(target, span, scratch)
	if err != nil {
		return err
	}
	copy(out, staged)
	return nil
}

//WriteData writes in at pos preserving every other byte of the sectors touched.
// A failed staging read aborts the write before anything is written.
func (acc *Accessor) WriteData(target Target, pos uint64, in []byte) error {
	if len(in) == 0 {
		return nil
	}
	span, err := acc.checkedSpan("WriteData", target, pos, uint64(len(in)))
	if err != nil {
		return err
	}

	scratch, release := acc.acquire()
	defer release()

	staged, err := acc.stage(target, span, scratch)
	if err != nil {
		return err
	}
	copy(staged, in)

	if _, err = acc.sio.WriteSectors(target.Dev, span.StartSector, span.NumSectors(), scratch); err != nil {
		acc.logger.Printf("Accessor::WriteData(): Could not write %d bytes at %d (sectors %d-%d); Details: %s",
			len(in), span.AbsolutePosition, span.StartSector, span.EndSector, err)
		return fmt.Errorf("Could not write %d bytes at offset %d: %w", len(in), span.AbsolutePosition, err)
	}
	return nil
}

//ContainsData reports whether the len(expected) bytes at pos equal expected
func (acc *Accessor) ContainsData(target Target, pos uint64, expected []byte) (bool, error) {
	if len(expected) == 0 {
		return true, nil
	}
	span, err := acc.checkedSpan("ContainsData", target, pos, uint64(len(expected)))
	if err != nil {
		return false, err
	}

	scratch, release := acc.acquire()
	defer release()

	staged, err := acc.stage(target, span, scratch)
	if err != nil {
		return false, err
	}
	return bytes.Equal(staged[:len(expected)], expected), nil
}

func (acc *Accessor) checkedSpan(op string, target Target, pos, length uint64) (Span, error) {
	span, err := acc.Span(target, pos, length)
	if err != nil {
		acc.logger.Printf("Accessor::%s(): Rejected %d bytes at %d (offset = %d, sector size = %d, max data length = %d); Details: %s",
			op, length, pos, target.Offset, acc.sio.SectorSize(), acc.maxDataLen, err)
	}
	return span, err
}

//stage reads the whole span into scratch and returns the slice of it starting
// at the requested byte
func (acc *Accessor) stage(target Target, span Span, scratch []byte) ([]byte, error) {
	if _, err := acc.sio.ReadSectors(target.Dev, span.StartSector, span.NumSectors(), scratch); err != nil {
		acc.logger.Printf("Accessor::stage(): Could not read sectors %d-%d; Details: %s", span.StartSector, span.EndSector, err)
		return nil, fmt.Errorf("Could not read %d sectors at sector %d: %w", span.NumSectors(), span.StartSector, err)
	}
	return scratch[span.AbsolutePosition-span.StartSector*acc.sio.SectorSize():], nil
}

func (acc *Accessor) acquire() ([]byte, func()) {
	bufPtr := acc.scratch.Get().(*[]byte)
	return *bufPtr, func() { acc.scratch.Put(bufPtr) }
}
