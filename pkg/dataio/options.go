package dataio

import "github.com/tarndt/rawblk/pkg/sectorio"

//Option is an Accessor option
type Option interface {
	apply(*Accessor)
}

//OptMaxDataLen bounds the aligned span (and so the scratch buffer) of every
// call, zero keeps the default of MaxDataLen and values over MaxDataLenLimit
// are clamped to it
type OptMaxDataLen uint64

func (maxLen OptMaxDataLen) apply(acc *Accessor) {
	switch {
	case maxLen > MaxDataLenLimit:
		acc.maxDataLen = MaxDataLenLimit
	case maxLen > 0:
		acc.maxDataLen = uint64(maxLen)
	}
}

//OptLogger instructs an Accessor to send diagnostics to the provided logger
// rather than the one of its SectorIO
type OptLogger struct {
	sectorio.Logger
}

func (optLogger OptLogger) apply(acc *Accessor) {
	if optLogger.Logger != nil {
		acc.logger = optLogger.Logger
	}
}
