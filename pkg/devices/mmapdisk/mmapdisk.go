//go:build linux || darwin

package mmapdisk

import (
	"fmt"
	"os"

	"github.com/tarndt/rawblk/pkg/devices"
	"github.com/tarndt/rawblk/pkg/devices/ramdisk"
	"github.com/tarndt/rawblk/pkg/util/consterr"

	"launchpad.net/gommap"
)

const errEmptyImage = consterr.ConstErr("Cannot memory map an empty image")

//MmapDisk is an image file mapped into memory, reads and writes are memory
// copies and Flush msyncs the mapping
type MmapDisk struct {
	*ramdisk.RAMDisk
	file     *os.File
	rawBytes gommap.MMap
}

var _ devices.Device = (*MmapDisk)(nil)

//NewMmapDisk maps filename, creating or growing it to ifSmallerSize bytes first
// when it is smaller
func NewMmapDisk(filename string, ifSmallerSize int64) (*MmapDisk, error) {
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("Could not open backing file %q: %w", filename, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("Could not stat backing file %q: %w", filename, err)
	}
	if info.Size() < ifSmallerSize {
		if err = file.Truncate(ifSmallerSize); err != nil {
			file.Close()
			return nil, fmt.Errorf("Could not grow backing file %q to %d bytes: %w", filename, ifSmallerSize, err)
		}
	} else if info.Size() == 0 {
		file.Close()
		return nil, fmt.Errorf("Could not map backing file %q: %w", filename, errEmptyImage)
	}

	mmap, err := gommap.Map(file.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("Could not mmap backing file %q (fd %d): %w", filename, file.Fd(), err)
	}

	return &MmapDisk{
		RAMDisk:  ramdisk.NewRAMDiskFrom(mmap),
		file:     file,
		rawBytes: mmap,
	}, nil
}

//Flush fufills part of devices.Device
func (mdsk *MmapDisk) Flush() error {
	if err := mdsk.RAMDisk.Flush(); err != nil {
		return err
	}
	return mdsk.rawBytes.Sync(gommap.MS_SYNC)
}

//Close fufills io.Closer and in turn part of devices.Device
func (mdsk *MmapDisk) Close() error {
	if err := mdsk.RAMDisk.Flush(); err != nil {
		return err
	}
	mdsk.RAMDisk.Close()

	syncErr := mdsk.rawBytes.Sync(gommap.MS_SYNC)
	unmapErr := mdsk.rawBytes.UnsafeUnmap()
	err := mdsk.file.Close()
	for _, otherErr := range []error{syncErr, unmapErr} {
		if err == nil && otherErr != nil {
			err = otherErr
		}
	}
	if err != nil {
		return fmt.Errorf("Could not close backing file: %w", err)
	}
	return nil
}
