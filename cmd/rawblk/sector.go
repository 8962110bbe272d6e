package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/tarndt/rawblk/cmd/rawblk/conf"
	"github.com/tarndt/rawblk/pkg/dataio"
	"github.com/tarndt/rawblk/pkg/devices"
	"github.com/tarndt/rawblk/pkg/devices/filedisk"
	"github.com/tarndt/rawblk/pkg/geometry"
	"github.com/tarndt/rawblk/pkg/imaging"
	"github.com/tarndt/rawblk/pkg/sectorio"
	"github.com/tarndt/rawblk/pkg/util/consterr"
)

const errNoMatch = consterr.ConstErr("Target does not contain the expected data")

//sectorSession is a target opened for sector level access
type sectorSession struct {
	dev    devices.Device
	target sectorio.Device
	geo    geometry.Geometry
	sio    *sectorio.SectorIO
	acc    *dataio.Accessor
}

func openSession(cfg *conf.Config, target string, readOnly bool) (*sectorSession, error) {
	var dev devices.Device
	var geo geometry.Geometry
	var err error

	switch cfg.BackingMode {
	case conf.DevFile, conf.DevDirect:
		var fdsk *filedisk.FileDisk
		fdsk, err = filedisk.Open(target, filedisk.OptReadOnly(readOnly), filedisk.OptDirectIO(cfg.BackingMode == conf.DevDirect))
		if err == nil {
			dev, geo = fdsk, fdsk.Geometry()
		}
	case conf.DevMmap:
		if dev, err = openMmap(target); err == nil {
			geo = geometry.ImageGeometry(uint64(dev.Size()))
		}
	default:
		err = fmt.Errorf("Bug: unknown backing device mode enum: %d", cfg.BackingMode)
	}
	if err != nil {
		return nil, fmt.Errorf("Could not open %s %q: %w", cfg.BackingMode, target, err)
	}

	sectorSize := geo.LogicalSectorSize
	if cfg.SectorSize > 0 {
		sectorSize = cfg.SectorSize.Bytes()
	}
	opts := []sectorio.Option{sectorio.OptLargeDrive(sectorio.CapacityAtLeast(geo.Capacity, cfg.LargeDriveBytes.Bytes()))}

	sess := &sectorSession{dev: dev, target: dev, geo: geo}
	if cfg.MetricsListen != "" {
		sess.target = sectorio.NewMetricsDevice(dev, target)
		opts = append(opts, sectorio.OptMetrics(target))
	}
	if sess.sio, err = sectorio.New(sectorSize, opts...); err != nil {
		dev.Close()
		return nil, err
	}
	sess.acc = dataio.New(sess.sio, dataio.OptMaxDataLen(cfg.MaxDataLength.Bytes()))
	return sess, nil
}

//close flushes writes (when there were any) and closes the device
func (sess *sectorSession) close(flush bool) error {
	var err error
	if flush {
		err = sess.dev.Flush()
	}
	if closeErr := sess.dev.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (sess *sectorSession) dataTarget() dataio.Target {
	return dataio.Target{Dev: sess.target}
}

func clearTarget(ctx context.Context, cfg *conf.Config, target string) error {
	sess, err := openSession(cfg, target, false)
	if err != nil {
		return err
	}

	totalSectors := sess.geo.Capacity / sess.sio.SectorSize()
	retry := cfg.RetryPolicy()
	retry.Logger = log.Default()
	if err = imaging.ClearPartitionTables(ctx, sess.sio, sess.target, totalSectors, retry); err != nil {
		sess.close(false)
		return err
	}
	return sess.close(true)
}

func readTarget(cfg *conf.Config, target string) (string, error) {
	sess, err := openSession(cfg, target, true)
	if err != nil {
		return "", err
	}
	defer sess.close(false)

	length := cfg.Length.Bytes()
	if length > sess.acc.MaxDataLen() {
		return "", fmt.Errorf("Could not read %d bytes of %q: %w", length, target, dataio.ErrSpanTooLarge)
	}
	buf := make([]byte, length)
	if err = sess.acc.ReadData(sess.dataTarget(), cfg.Offset, buf); err != nil {
		return "", err
	}
	return hex.Dump(buf), nil
}

func patchTarget(cfg *conf.Config, target string) error {
	sess, err := openSession(cfg, target, false)
	if err != nil {
		return err
	}

	if err = sess.acc.WriteData(sess.dataTarget(), cfg.Offset, cfg.Data); err != nil {
		sess.close(false)
		return err
	}
	return sess.close(true)
}

func checkTarget(cfg *conf.Config, target string) (string, error) {
	sess, err := openSession(cfg, target, true)
	if err != nil {
		return "", err
	}
	defer sess.close(false)

	found, err := sess.acc.ContainsData(sess.dataTarget(), cfg.Offset, cfg.Data)
	switch {
	case err != nil:
		return "", err
	case !found:
		return "", fmt.Errorf("%x not found at offset %d: %w", cfg.Data, cfg.Offset, errNoMatch)
	}
	return fmt.Sprintf("%x found at offset %d", cfg.Data, cfg.Offset), nil
}

func infoTarget(_ *conf.Config, target string) (string, error) {
	geo, err := probeTarget(target)
	if err != nil {
		return "", err
	}
	return geo.String(), nil
}

//probeTarget returns the geometry of target, a target that does not exist yet
// is an empty image
func probeTarget(target string) (geometry.Geometry, error) {
	f, err := os.Open(target)
	if errors.Is(err, os.ErrNotExist) {
		return geometry.ImageGeometry(0), nil
	} else if err != nil {
		return geometry.Geometry{}, fmt.Errorf("Could not open %q: %w", target, err)
	}
	defer f.Close()

	return geometry.Probe(f)
}
