//go:build !linux && !darwin

package main

import (
	"github.com/tarndt/rawblk/pkg/devices"
	"github.com/tarndt/rawblk/pkg/util/consterr"
)

func openMmap(string) (devices.Device, error) {
	return nil, consterr.ErrUnsupported
}
