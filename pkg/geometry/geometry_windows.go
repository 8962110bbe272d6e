//go:build windows

package geometry

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

const ioctlDiskGetDriveGeometryEx = 0x000700A0

//diskGeometryEx mirrors DISK_GEOMETRY_EX without the trailing variable data
type diskGeometryEx struct {
	Cylinders         int64
	MediaType         uint32
	TracksPerCylinder uint32
	SectorsPerTrack   uint32
	BytesPerSector    uint32
	DiskSize          int64
	Data              [1]byte
}

func probeDevice(f *os.File) (Geometry, error) {
	var geo diskGeometryEx
	var returned uint32
	err := windows.DeviceIoControl(windows.Handle(f.Fd()), ioctlDiskGetDriveGeometryEx,
		nil, 0, (*byte)(unsafe.Pointer(&geo)), uint32(unsafe.Sizeof(geo)), &returned, nil)
	if err != nil {
		return Geometry{}, err
	}

	return Geometry{
		LogicalSectorSize:  uint64(geo.BytesPerSector),
		PhysicalSectorSize: uint64(geo.BytesPerSector),
		Capacity:           uint64(geo.DiskSize),
	}, nil
}
