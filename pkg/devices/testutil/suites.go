package testutil

import (
	"fmt"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/tarndt/rawblk/pkg/devices"
	"github.com/tarndt/rawblk/pkg/devices/filedisk"
)

//RawDeviceEnv names the environment variable holding a scratch block device
// path (ex. a loop device) that TestRawDevice may destroy the contents of
const RawDeviceEnv = "RAWBLK_TEST_DEVICE"

//TestDevice runs the conformance suite on the provided device, expectedSize of
// zero skips the size check
func TestDevice(t *testing.T, dev devices.Device, expectedSize uint, sectorSize uint64) {
	t.Run(pkgName(dev), func(t *testing.T) {
		if _, err := dev.ReadAt([]byte{0}, 0); err != nil {
			t.Fatalf("1 byte test read to %#v failed: %s", dev, err)
		}

		if expectedSize > 0 {
			TestDevSize(t, dev, expectedSize)
			TestReadEmpty(t, dev)
		}
		TestSeek(t, dev)
		TestSectorRoundTrip(t, dev, sectorSize)
		TestUnalignedRoundTrip(t, dev, sectorSize)
		TestReadHash(t, dev, TestWriteReadPattern(t, dev))
		TestClose(t, dev)
	})
}

//TestRawDevice runs the conformance suite against a real block device named
// by RawDeviceEnv. This requires privileged execution and destroys the data on
// that device!
func TestRawDevice(t *testing.T) {
	t.Run("raw-device", func(t *testing.T) {
		devPath := os.Getenv(RawDeviceEnv)
		if devPath == "" {
			t.Skipf("Set %s to a scratch block device (ex. losetup -f --show img.bin) to run this test", RawDeviceEnv)
		}

		const rootUID = 0
		if os.Geteuid() != rootUID {
			t.Skipf("Must be root for this test, try: go test -c && sudo %s=%s ./testutil.test -test.v && rm ./testutil.test", RawDeviceEnv, devPath)
		}

		dev, err := filedisk.Open(devPath)
		if err != nil {
			t.Fatalf("Could not open raw device %q: %s", devPath, err)
		}
		t.Logf("Using raw device %q: %s", devPath, dev.Geometry())

		TestDevice(t, dev, 0, dev.Geometry().LogicalSectorSize)
	})
}

func pkgName(x interface{}) string {
	varType := strings.TrimPrefix(fmt.Sprintf("%T", x), "*")
	return strings.TrimSuffix(varType, path.Ext(varType))
}
