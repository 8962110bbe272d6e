//go:build linux || darwin

package main

import (
	"github.com/tarndt/rawblk/pkg/devices"
	"github.com/tarndt/rawblk/pkg/devices/mmapdisk"
)

func openMmap(target string) (devices.Device, error) {
	return mmapdisk.NewMmapDisk(target, 0)
}
