package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tarndt/rawblk/pkg/imaging"
)

//Config is a representation of command line config parameters
type Config struct {
	Mode        Mode
	Targets     []string
	BackingMode BackingDevice
	Concurrency uint

	//Geometry
	SectorSize      Capacity
	LargeDriveBytes Capacity

	//Streaming modes (write, zero, verify)
	ImageConfig

	//Byte range modes (read, patch, check)
	RangeConfig

	MetricsListen string
}

//ImageConfig is the configuration of modes streaming an image
type ImageConfig struct {
	ImagePath   string
	Compress    imaging.Mode
	ChunkBytes  Capacity
	Unbuffered  bool
	Verify      bool
	Retries     int
	RetryDelay  time.Duration
	WaitTimeout time.Duration
}

//RetryPolicy of the image configuration
func (ic *ImageConfig) RetryPolicy() imaging.RetryPolicy {
	return imaging.RetryPolicy{
		Retries:     ic.Retries,
		Delay:       ic.RetryDelay,
		WaitTimeout: ic.WaitTimeout,
	}
}

//String generates human-readable prose describing an ImageConfig
func (ic *ImageConfig) String() string {
	var extra []string
	if ic.Unbuffered {
		extra = append(extra, "unbuffered")
	}
	if ic.Verify {
		extra = append(extra, "verified")
	}
	desc := fmt.Sprintf("in %s chunks, retrying %d times %s apart", humanize.IBytes(ic.ChunkBytes.Bytes()), ic.Retries, ic.RetryDelay)
	if len(extra) > 0 {
		desc += " (" + strings.Join(extra, ", ") + ")"
	}
	return desc
}

//RangeConfig is the configuration of modes accessing one byte range
type RangeConfig struct {
	Offset        uint64
	Length        Capacity
	Data          []byte
	MaxDataLength Capacity
}

//String generates human-readable prose describing a RangeConfig
func (rc *RangeConfig) String() string {
	length := rc.Length.Bytes()
	if len(rc.Data) > 0 {
		length = uint64(len(rc.Data))
	}
	return fmt.Sprintf("%d bytes at offset %d staged through at most %s", length, rc.Offset, humanize.IBytes(rc.MaxDataLength.Bytes()))
}

//String generates human-readable prose describing a configuration
func (cfg *Config) String() string {
	sectorSize := "probed sector size"
	if cfg.SectorSize > 0 {
		sectorSize = fmt.Sprintf("%d byte sectors", cfg.SectorSize)
	}
	largeDrive := "never treating drives as large"
	if cfg.LargeDriveBytes > 0 {
		largeDrive = "treating drives of " + humanize.IBytes(cfg.LargeDriveBytes.Bytes()) + " or more as large"
	}

	var modeParams string
	switch {
	case cfg.Mode.NeedsImage():
		compress := cfg.Compress.String()
		if cfg.Compress == imaging.ModeUnknown {
			compress = imaging.ModeAutoName
		}
		modeParams = fmt.Sprintf(" image %q (%s compression) %s", cfg.ImagePath, compress, cfg.ImageConfig.String())
	case cfg.Mode == ModeZero:
		modeParams = " " + cfg.ImageConfig.String()
	case cfg.Mode == ModeRead || cfg.Mode.NeedsData():
		modeParams = " " + cfg.RangeConfig.String() + " via " + cfg.BackingMode.String()
	case cfg.Mode == ModeClear:
		modeParams = " via " + cfg.BackingMode.String()
	}

	return fmt.Sprintf("Performing %s%s on %d target(s) %q (%d at a time) using %s, %s.",
		cfg.Mode, modeParams, len(cfg.Targets), cfg.Targets, cfg.Concurrency, sectorSize, largeDrive)
}
