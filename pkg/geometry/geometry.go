//Package geometry probes the sector size and capacity of an open device or
// image file
package geometry

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
)

//DefaultSectorSize is assumed for image files and anything that cannot be probed
const DefaultSectorSize = 512

//Geometry of a device
type Geometry struct {
	LogicalSectorSize  uint64
	PhysicalSectorSize uint64
	Capacity           uint64
	BlockDevice        bool
}

//Sectors is the number of whole logical sectors
func (geo Geometry) Sectors() uint64 {
	if geo.LogicalSectorSize == 0 {
		return 0
	}
	return geo.Capacity / geo.LogicalSectorSize
}

func (geo Geometry) String() string {
	kind := "image"
	if geo.BlockDevice {
		kind = "block device"
	}
	return fmt.Sprintf("%s of %s (%d bytes) with %d byte logical and %d byte physical sectors",
		kind, humanize.IBytes(geo.Capacity), geo.Capacity, geo.LogicalSectorSize, geo.PhysicalSectorSize)
}

//Probe returns the geometry of f, regular files are images with the default
// sector size
func Probe(f *os.File) (Geometry, error) {
	info, err := f.Stat()
	if err != nil {
		return Geometry{}, fmt.Errorf("Could not stat %q: %w", f.Name(), err)
	}

	if info.Mode().IsRegular() {
		return ImageGeometry(uint64(info.Size())), nil
	}

	geo, err := probeDevice(f)
	if err != nil {
		return Geometry{}, fmt.Errorf("Could not probe geometry of %q: %w", f.Name(), err)
	}
	geo.BlockDevice = true
	return geo, nil
}

//ImageGeometry is the geometry assumed for an image file of size bytes
func ImageGeometry(size uint64) Geometry {
	return Geometry{
		LogicalSectorSize:  DefaultSectorSize,
		PhysicalSectorSize: DefaultSectorSize,
		Capacity:           size,
	}
}
