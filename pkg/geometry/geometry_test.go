package geometry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbeImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 64*1024+100), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	geo, err := Probe(f)
	require.NoError(t, err)
	require.False(t, geo.BlockDevice)
	require.EqualValues(t, DefaultSectorSize, geo.LogicalSectorSize)
	require.EqualValues(t, 64*1024+100, geo.Capacity)
	require.EqualValues(t, 128, geo.Sectors())
	require.Contains(t, geo.String(), "64 KiB")
}

func TestSectorsZeroSectorSize(t *testing.T) {
	require.Zero(t, Geometry{Capacity: 4096}.Sectors())
}
