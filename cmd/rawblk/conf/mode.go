package conf

import (
	"strings"
)

//These are enums that map to each of the operations a run performs per target
const (
	ModeUnknown Mode = iota
	ModeWrite
	ModeZero
	ModeClear
	ModeVerify
	ModeRead
	ModePatch
	ModeCheck
	ModeInfo
)

//Mode is the operation performed on each target
type Mode uint8

var modeNames = map[Mode]string{
	ModeWrite:  "write",
	ModeZero:   "zero",
	ModeClear:  "clear",
	ModeVerify: "verify",
	ModeRead:   "read",
	ModePatch:  "patch",
	ModeCheck:  "check",
	ModeInfo:   "info",
}

//NewMode constructs a Mode from its textual name (from config)
func NewMode(name string) Mode {
	name = strings.ToLower(name)
	for mode, modeName := range modeNames {
		if modeName == name {
			return mode
		}
	}
	return ModeUnknown
}

//String is the textual name of the mode
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

//NeedsImage is true for modes streaming an image file
func (m Mode) NeedsImage() bool {
	return m == ModeWrite || m == ModeVerify
}

//NeedsData is true for modes comparing or writing -data bytes
func (m Mode) NeedsData() bool {
	return m == ModePatch || m == ModeCheck
}

//These are enums that map to each of the device implementations sector level
// modes access targets through
const (
	DevUnknown BackingDevice = iota
	DevFile
	DevDirect
	DevMmap
)

//BackingDevice type represents the available device implementations
type BackingDevice uint8

//NewBackingDevice constructs a BackingDevice from a human textual short name (from config)
func NewBackingDevice(devDesc string) BackingDevice {
	switch strings.ToLower(devDesc) {
	case "file", "disk":
		return DevFile
	case "direct", "unbuffered":
		return DevDirect
	case "mmap", "mapped":
		return DevMmap
	default:
		return DevUnknown
	}
}

//String is a human readable description of the device for display
func (bd BackingDevice) String() string {
	switch bd {
	case DevFile:
		return "filedisk"
	case DevDirect:
		return "unbuffered filedisk"
	case DevMmap:
		return "memory-mapped image"
	default:
		return "unknown"
	}
}
