package filedisk

import (
	"fmt"
	"os"

	"github.com/ncw/directio"
	"github.com/tarndt/rawblk/pkg/devices"
	"github.com/tarndt/rawblk/pkg/geometry"
)

//FileDisk is a raw device backed by a block device node or an image file
type FileDisk struct {
	*os.File
	geo geometry.Geometry
}

var _ devices.Device = (*FileDisk)(nil)

//Option is a FileDisk option
type Option interface {
	apply(*openConf)
}

type openConf struct {
	direct   bool
	readOnly bool
}

//OptDirectIO instructs a FileDisk to bypass the OS cache, transfers must then
// use sector aligned buffers
type OptDirectIO bool

func (direct OptDirectIO) apply(conf *openConf) {
	conf.direct = bool(direct)
}

//OptReadOnly instructs a FileDisk to open its backing file read-only
type OptReadOnly bool

func (readOnly OptReadOnly) apply(conf *openConf) {
	conf.readOnly = bool(readOnly)
}

//Open opens an existing block device or image
func Open(filename string, opts ...Option) (*FileDisk, error) {
	return open(filename, 0, opts)
}

//Create creates (or truncates) an image file of the provided size, the file
// is sparse where the filesystem allows so it reads as zeros
func Create(filename string, size int64, opts ...Option) (*FileDisk, error) {
	fdsk, err := open(filename, os.O_CREATE|os.O_TRUNC, opts)
	if err != nil {
		return nil, err
	}
	if err = fdsk.Truncate(size); err != nil {
		fdsk.Close()
		return nil, fmt.Errorf("Could not size backing file %q to %d bytes: %w", filename, size, err)
	}
	if err = fdsk.Sync(); err != nil {
		fdsk.Close()
		return nil, fmt.Errorf("Could not size backing file %q, sync failed: %w", filename, err)
	}
	if fdsk.geo, err = geometry.Probe(fdsk.File); err != nil {
		fdsk.Close()
		return nil, err
	}
	return fdsk, nil
}

func open(filename string, extraFlags int, opts []Option) (*FileDisk, error) {
	var conf openConf
	for _, opt := range opts {
		opt.apply(&conf)
	}

	flag := os.O_RDWR | extraFlags
	if conf.readOnly {
		flag = os.O_RDONLY | extraFlags
	}

	fdsk := new(FileDisk)
	var err error
	if conf.direct {
		fdsk.File, err = directio.OpenFile(filename, flag, 0o666)
	} else {
		fdsk.File, err = os.OpenFile(filename, flag, 0o666)
	}
	if err != nil {
		return nil, fmt.Errorf("Could not open backing file %q: %w", filename, err)
	}

	if fdsk.geo, err = geometry.Probe(fdsk.File); err != nil {
		fdsk.Close()
		return nil, err
	}
	return fdsk, nil
}

//Geometry probed when the device was opened
func (fdsk *FileDisk) Geometry() geometry.Geometry {
	return fdsk.geo
}

//Size of this device in bytes
func (fdsk *FileDisk) Size() int64 {
	return int64(fdsk.geo.Capacity)
}

//Flush fufills part of devices.Device
func (fdsk *FileDisk) Flush() error {
	return fdsk.Sync()
}
