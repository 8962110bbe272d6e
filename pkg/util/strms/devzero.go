package strms

import (
	"io"

	"github.com/tarndt/rawblk/pkg/util"
)

//DevZero is like is like /dev/zero for reading and /dev/null for writing, it is
// the source stream when a whole drive is being zeroed
var DevZero devZero

type devZero struct{}

var _ io.ReadWriter = devZero{}

func (devZero) Read(buf []byte) (int, error) {
	util.ZeroFill(buf)
	return len(buf), nil
}

func (devZero) Write(buf []byte) (int, error) {
	return len(buf), nil
}
