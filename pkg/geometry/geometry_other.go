//go:build !linux && !windows

package geometry

import (
	"io"
	"os"
)

//probeDevice sizes a device by seeking to its end, the sector size cannot be
// queried portably
func probeDevice(f *os.File) (Geometry, error) {
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return Geometry{}, err
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return Geometry{}, err
	}
	return ImageGeometry(uint64(end)), nil
}
