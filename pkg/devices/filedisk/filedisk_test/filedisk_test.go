package filedisk_test //this is in its own pkg due to testutil importing filedisk, this avoid circ dep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tarndt/rawblk/pkg/devices/filedisk"
	"github.com/tarndt/rawblk/pkg/devices/testutil"
	"github.com/tarndt/rawblk/pkg/geometry"
)

func TestFileDisk(t *testing.T) {
	const sizeBytes = 4 * 1024 * 1024 //4 MB

	testutil.TestDevice(t, createDevice(t, sizeBytes), sizeBytes, geometry.DefaultSectorSize)
}

func TestRawDevice(t *testing.T) {
	testutil.TestRawDevice(t)
}

func TestOpenExistingImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 8192), 0o644))

	dev, err := filedisk.Open(path)
	require.NoError(t, err)
	defer dev.Close()
	require.EqualValues(t, 8192, dev.Size())
	require.EqualValues(t, 16, dev.Geometry().Sectors())

	_, err = filedisk.Open(filepath.Join(t.TempDir(), "missing.img"))
	require.Error(t, err)
}

func createDevice(t *testing.T, sizeBytes uint) *filedisk.FileDisk {
	dev, err := filedisk.Create(filepath.Join(t.TempDir(), "test.bin"), int64(sizeBytes))
	if err != nil {
		t.Fatalf("Could not create file backed test device: %s", err)
	}
	return dev
}
