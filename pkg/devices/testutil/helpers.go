package testutil

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/tarndt/rawblk/pkg/dataio"
	"github.com/tarndt/rawblk/pkg/devices"
	"github.com/tarndt/rawblk/pkg/sectorio"
	"github.com/tarndt/rawblk/pkg/util"
)

//maxPatternBytes caps how much of a large (real) device the pattern tests cover
const maxPatternBytes = 8 * 1024 * 1024

//TestDevSize verfies the provided device reports the correct size
func TestDevSize(t *testing.T, dev devices.Device, expectedSize uint) {
	t.Run("dev-size", func(t *testing.T) {
		if actual := dev.Size(); actual != int64(expectedSize) {
			t.Fatalf("Expected device size to be %d but it was %d", expectedSize, actual)
		}
	})
}

//TestReadEmpty verifies the provided device reads as empty
func TestReadEmpty(t *testing.T, dev devices.Device) {
	t.Run("read-empty", func(t *testing.T) {
		t.Run("positional", func(t *testing.T) {
			buf := make([]byte, 64*1024)
			for pos := int64(0); pos < dev.Size(); pos += int64(len(buf)) {
				n, err := dev.ReadAt(buf, pos)
				if err != nil && !(err == io.EOF && pos+int64(n) == dev.Size()) {
					t.Fatalf("Failed to read at %d: %s", pos, err)
				}
				if !util.IsZeros(buf[:n]) {
					t.Fatalf("Non-zero value found in the %d bytes at %d", n, pos)
				}
			}
		})

		t.Run("sequential", func(t *testing.T) {
			if _, err := dev.Seek(0, io.SeekStart); err != nil {
				t.Fatalf("Failed to seek to start: %s", err)
			}
			rdr := bufio.NewReader(dev)
			for i := int64(0); i < dev.Size(); i++ {
				actual, err := rdr.ReadByte()
				if err != nil {
					t.Fatalf("Failed to read zero byte: %s", err)
				}
				if actual != 0 {
					t.Fatalf("Wrong value %d found, expecting %d", actual, 0)
				}
			}
		})
	})
}

//TestSeek verifies whence handling and that invalid seeks fail
func TestSeek(t *testing.T, dev devices.Device) {
	t.Run("seek", func(t *testing.T) {
		if pos, err := dev.Seek(0, io.SeekEnd); err != nil || pos != dev.Size() {
			t.Fatalf("Seek to end returned (%d, %v) rather than (%d, nil)", pos, err, dev.Size())
		}
		if pos, err := dev.Seek(-1, io.SeekCurrent); err != nil || pos != dev.Size()-1 {
			t.Fatalf("Relative seek returned (%d, %v) rather than (%d, nil)", pos, err, dev.Size()-1)
		}
		if _, err := dev.Seek(-1, io.SeekStart); err == nil {
			t.Fatal("Expected error seeking before the start of the device")
		}
		if pos, err := dev.Seek(0, io.SeekStart); err != nil || pos != 0 {
			t.Fatalf("Seek to start returned (%d, %v) rather than (0, nil)", pos, err)
		}
	})
}

//TestSectorRoundTrip writes and reads back whole sectors at both ends of the device
func TestSectorRoundTrip(t *testing.T, dev devices.Device, sectorSize uint64) {
	t.Run("sector-round-trip", func(t *testing.T) {
		sio, err := sectorio.New(sectorSize)
		if err != nil {
			t.Fatalf("Could not create sector I/O: %s", err)
		}

		const numSectors = 4
		lastStart := uint64(dev.Size())/sectorSize - numSectors
		for _, start := range []uint64{0, 1, lastStart} {
			out := bytes.Repeat([]byte{byte(start + 1)}, int(numSectors*sectorSize))
			if n, err := sio.WriteSectors(dev, start, numSectors, out); err != nil {
				t.Fatalf("Failed to write %d sectors at %d: %s", numSectors, start, err)
			} else if n != int64(len(out)) {
				t.Fatalf("Wrote %d bytes rather than %d", n, len(out))
			}

			in := make([]byte, len(out))
			if n, err := sio.ReadSectors(dev, start, numSectors, in); err != nil {
				t.Fatalf("Failed to read %d sectors at %d: %s", numSectors, start, err)
			} else if n != int64(len(in)) {
				t.Fatalf("Read %d bytes rather than %d", n, len(in))
			}
			if !bytes.Equal(out, in) {
				t.Fatalf("Sectors read back at %d differ from those written", start)
			}
		}

		if _, err := sio.ReadSectors(dev, lastStart+1, numSectors, make([]byte, numSectors*sectorSize)); err == nil {
			t.Fatal("Expected error reading sectors past the end of the device")
		}
	})
}

//TestUnalignedRoundTrip writes byte ranges straddling sector boundaries and
// verifies neighboring bytes survive
func TestUnalignedRoundTrip(t *testing.T, dev devices.Device, sectorSize uint64) {
	t.Run("unaligned-round-trip", func(t *testing.T) {
		sio, err := sectorio.New(sectorSize)
		if err != nil {
			t.Fatalf("Could not create sector I/O: %s", err)
		}
		acc := dataio.New(sio)
		target := dataio.Target{Dev: dev}

		background := bytes.Repeat([]byte{0xEE}, int(sectorSize*3))
		if _, err := sio.WriteSectors(dev, 0, 3, background); err != nil {
			t.Fatalf("Failed to write background sectors: %s", err)
		}

		payload := []byte("raw block signature")
		pos := sectorSize - 7
		if err := acc.WriteData(target, pos, payload); err != nil {
			t.Fatalf("Failed to write %d bytes at %d: %s", len(payload), pos, err)
		}
		if ok, err := acc.ContainsData(target, pos, payload); err != nil || !ok {
			t.Fatalf("Expected payload at %d, got (%t, %v)", pos, ok, err)
		}

		expected := append([]byte(nil), background...)
		copy(expected[pos:], payload)
		actual := make([]byte, len(background))
		if _, err := sio.ReadSectors(dev, 0, 3, actual); err != nil {
			t.Fatalf("Failed to read back sectors: %s", err)
		}
		if !bytes.Equal(expected, actual) {
			t.Fatal("Bytes outside of the written range were modified")
		}
	})
}

//TestWriteReadPattern writes and reads a pattern to the provided device
func TestWriteReadPattern(t *testing.T, dev devices.Device) (writtenHash []byte) {
	count := patternCount(dev)

	getVal := func(idx int64) byte {
		if (idx/4096)%2 == 0 {
			return byte((idx + 16) % 256)
		}
		return 0
	}

	t.Run("write-read-pattern", func(t *testing.T) {
		t.Run("write", func(t *testing.T) {
			if _, err := dev.Seek(0, io.SeekStart); err != nil {
				t.Fatalf("Failed to seek to start: %s", err)
			}
			hashWtr := sha256.New()
			wtr := bufio.NewWriterSize(io.MultiWriter(dev, hashWtr), 64*1024)
			for i := int64(0); i < count; i++ {
				if err := wtr.WriteByte(getVal(i)); err != nil {
					t.Fatalf("Failed to write byte %d of %d: %s", i+1, count, err)
				}
			}
			if err := wtr.Flush(); err != nil {
				t.Fatalf("Failed to flush buffered writer: %s", err)
			}
			writtenHash = hashWtr.Sum(nil)

			if err := dev.Flush(); err != nil {
				t.Fatalf("Failed to flush device: %s", err)
			}
		})

		t.Run("read-bytes", func(t *testing.T) {
			rdr := bufio.NewReader(io.NewSectionReader(dev, 0, count))
			for i := int64(0); true; i++ {
				actual, err := rdr.ReadByte()
				if err != nil {
					if err == io.EOF && i == count {
						break
					}
					t.Fatalf("Failed to read byte index %d of %d just written: %s", i, count, err)
				}
				if expected := getVal(i); actual != expected {
					t.Fatalf("Wrong value %d found at %d, expecting %d", actual, i, expected)
				}
			}
		})
	})

	return writtenHash
}

//TestReadHash confirms the SHA of the pattern region of the provided device
// matches the expected SHA
func TestReadHash(t *testing.T, dev devices.Device, expectedHash []byte) {
	t.Run("read-hash", func(t *testing.T) {
		count := patternCount(dev)
		hashWtr := sha256.New()
		if n, err := io.Copy(hashWtr, io.NewSectionReader(dev, 0, count)); err != nil {
			t.Fatalf("Failed to calculate SHA256 of device: %s", err)
		} else if n != count {
			t.Fatalf("While calculating SHA256 of device %d bytes were found instead of %d", n, count)
		} else if readHash := hashWtr.Sum(nil); !bytes.Equal(expectedHash, readHash) {
			t.Fatalf("SHA256 written to device was %s but %s was expected", hex.EncodeToString(readHash), hex.EncodeToString(expectedHash))
		}
	})
}

//TestClose confirms the device close without error and subsequent operations fail as expected
func TestClose(t *testing.T, dev devices.Device) {
	t.Run("close", func(t *testing.T) {
		if err := dev.Close(); err != nil {
			t.Fatalf("Failed to close device: %s", err)
		}

		buf := make([]byte, 1)
		if _, err := dev.ReadAt(buf, 0); err == nil {
			t.Fatal("Expected error during read on closed device")
		}
		if _, err := dev.WriteAt(buf, 0); err == nil {
			t.Fatal("Expected error during write on closed device")
		}
		if _, err := dev.Write(buf); err == nil {
			t.Fatal("Expected error during sequential write on closed device")
		}
		if err := dev.Flush(); err == nil {
			t.Fatal("Expected error during flush on closed device")
		}
	})
}

func patternCount(dev devices.Device) int64 {
	if count := dev.Size(); count < maxPatternBytes {
		return count
	}
	return maxPatternBytes
}
