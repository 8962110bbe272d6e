package imaging

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/tarndt/rawblk/pkg/util/strms"
)

//Mode represents the compression of an image
type Mode uint8

//Enumerate available modes and their textual names
const (
	ModeIdentity Mode = iota
	ModeUnknown
	ModeS2
	ModeGzip
	ModeZstd

	ModeIdentityName = "identity"
	ModeS2Name       = "s2"
	ModeGzipName     = "gzip"
	ModeZstdName     = "zstd"
	ModeAutoName     = "auto"
	ModeUknownName   = "unknown"
)

var (
	gzipMagic   = []byte{0x1f, 0x8b}
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	s2Magic     = []byte("\xff\x06\x00\x00S2sTwO")
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
)

//ModeFromName constructs a Mode from a textual name, "auto" is ModeUnknown
// which OpenImage resolves by inspecting the image
func ModeFromName(name string) Mode {
	switch name {
	case "", ModeIdentityName, "none":
		return ModeIdentity
	case ModeS2Name:
		return ModeS2
	case ModeGzipName:
		return ModeGzip
	case ModeZstdName:
		return ModeZstd
	}
	return ModeUnknown
}

//ModeFromPath guesses a Mode from a file extension
func ModeFromPath(path string) Mode {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return ModeGzip
	case ".zst", ".zstd":
		return ModeZstd
	case ".s2", ".sz":
		return ModeS2
	}
	return ModeIdentity
}

//DetectMode identifies a compressed stream by its leading magic bytes
func DetectMode(header []byte) Mode {
	switch {
	case bytes.HasPrefix(header, zstdMagic):
		return ModeZstd
	case bytes.HasPrefix(header, gzipMagic):
		return ModeGzip
	case bytes.HasPrefix(header, s2Magic), bytes.HasPrefix(header, snappyMagic):
		return ModeS2
	}
	return ModeIdentity
}

//AlgoName returns the textual name of a Mode
func (m Mode) AlgoName() string {
	switch m {
	case ModeIdentity:
		return ModeIdentityName
	case ModeS2:
		return ModeS2Name
	case ModeGzip:
		return ModeGzipName
	case ModeZstd:
		return ModeZstdName
	}
	return ModeUknownName
}

//String is a synonym for AlgoName
func (m Mode) String() string {
	return m.AlgoName()
}

//NewReader constructs a reader wrapper that applies this mode's decompression
func (m Mode) NewReader(rdr io.Reader) (io.ReadCloser, error) {
	switch m {
	case ModeIdentity:
		return io.NopCloser(rdr), nil
	case ModeGzip:
		return gzip.NewReader(rdr)
	case ModeZstd:
		dec, err := zstd.NewReader(rdr)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case ModeS2:
		return io.NopCloser(s2.NewReader(rdr)), nil
	}
	return nil, fmt.Errorf("Cannot create decompressor for unknown compression mode")
}

//OpenImage opens an image file for streaming, decompressing it per mode.
// ModeUnknown detects the compression from the leading bytes, falling back to
// the file extension.
func OpenImage(path string, mode Mode) (io.ReadCloser, Mode, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, mode, fmt.Errorf("Could not open image %q: %w", path, err)
	}

	rdr := bufio.NewReaderSize(file, 1024*1024)
	if mode == ModeUnknown {
		header, _ := rdr.Peek(len(s2Magic))
		if mode = DetectMode(header); mode == ModeIdentity {
			mode = ModeFromPath(path)
		}
	}

	decomp, err := mode.NewReader(rdr)
	if err != nil {
		file.Close()
		return nil, mode, fmt.Errorf("Could not open %s image %q: %w", mode, path, err)
	}
	return strms.NewStackedReadCloser(decomp, file, decomp), mode, nil
}
