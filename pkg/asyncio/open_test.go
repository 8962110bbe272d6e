package asyncio

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var quiet = OptLogger{Logger: log.New(io.Discard, "", 0)}

func TestOpenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.img")

	h, err := Open(path, AccessRead, ShareRead, OpenExisting, AttrNone, quiet)
	require.Error(t, err)
	require.Nil(t, h)

	h, err = Open(path, AccessReadWrite, ShareNone, TruncateExisting, AttrNone, quiet)
	require.Error(t, err)
	require.Nil(t, h)
}

func TestOpenInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.img")

	_, err := Open(path, 0, ShareNone, CreateAlways, AttrNone, quiet)
	require.ErrorIs(t, err, ErrInvalidAccess)

	_, err = Open(path, AccessWrite, ShareNone, Disposition(42), AttrNone, quiet)
	require.ErrorIs(t, err, ErrInvalidDisposition)
}

func TestOpenCreateNewExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exists.img")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Open(path, AccessWrite, ShareNone, CreateNew, AttrNone, quiet)
	require.Error(t, err)
}

func TestFileSequentialWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.img")
	first, second := bytes.Repeat([]byte{1}, 4096), bytes.Repeat([]byte{2}, 1000)

	h, err := Open(path, AccessWrite, ShareRead, CreateAlways, AttrWriteThrough, quiet)
	require.NoError(t, err)
	require.NoError(t, h.Write(first))
	require.NoError(t, h.Wait(10*time.Second))
	require.NoError(t, h.Write(second))
	require.NoError(t, h.Wait(10*time.Second))
	size, err := h.TransferredSize()
	require.NoError(t, err)
	require.EqualValues(t, len(first)+len(second), size)
	require.NoError(t, h.Close())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte(nil), first...), second...), onDisk)

	h, err = Open(path, AccessRead, ShareRead, OpenExisting, AttrNone, quiet)
	require.NoError(t, err)
	defer h.Close()

	buf := make([]byte, 3000)
	var got []byte
	for {
		require.NoError(t, h.Read(buf))
		require.NoError(t, h.Wait(10*time.Second))
		before := int64(len(got))
		size, err := h.TransferredSize()
		require.NoError(t, err)
		if size == before {
			break
		}
		got = append(got, buf[:size-before]...)
	}
	require.Equal(t, onDisk, got)
}
