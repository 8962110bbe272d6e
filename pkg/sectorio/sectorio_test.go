package sectorio_test

import (
	"bytes"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tarndt/rawblk/internal/mock"
	"github.com/tarndt/rawblk/pkg/devices/ramdisk"
	"github.com/tarndt/rawblk/pkg/sectorio"

	"go.uber.org/mock/gomock"
)

func newSectorIO(t *testing.T, sectorSize uint64, opts ...sectorio.Option) (*sectorio.SectorIO, *bytes.Buffer) {
	var logBuf bytes.Buffer
	opts = append([]sectorio.Option{sectorio.OptLogger{Logger: log.New(&logBuf, "", 0)}}, opts...)
	sio, err := sectorio.New(sectorSize, opts...)
	require.NoError(t, err)
	return sio, &logBuf
}

func TestNewInvalidSectorSize(t *testing.T) {
	_, err := sectorio.New(0)
	require.ErrorIs(t, err, sectorio.ErrInvalidSectorSize)
}

func TestSectorRoundTrip(t *testing.T) {
	for _, sectorSize := range []uint64{512, 4096} {
		rdsk := ramdisk.NewRAMDisk(int64(sectorSize * 64))
		sio, _ := newSectorIO(t, sectorSize)

		out := bytes.Repeat([]byte{0x5A}, int(sectorSize*3))
		n, err := sio.WriteSectors(rdsk, 10, 3, out)
		require.NoError(t, err)
		require.EqualValues(t, len(out), n)
		require.Equal(t, out, rdsk.Bytes()[10*sectorSize:13*sectorSize])
		require.True(t, bytes.Count(rdsk.Bytes(), []byte{0x5A}) == len(out), "bytes outside the span were written")

		in := make([]byte, len(out))
		n, err = sio.ReadSectors(rdsk, 10, 3, in)
		require.NoError(t, err)
		require.EqualValues(t, len(in), n)
		require.Equal(t, out, in)
	}
}

func TestAbsoluteSeek(t *testing.T) {
	rdsk := ramdisk.NewRAMDisk(512 * 8)
	sio, _ := newSectorIO(t, 512)

	_, err := rdsk.Seek(777, io.SeekStart)
	require.NoError(t, err)

	_, err = sio.WriteSectors(rdsk, 2, 1, bytes.Repeat([]byte{1}, 512))
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{1}, 512), rdsk.Bytes()[1024:1536])
}

func TestTransferTooLargeNoIO(t *testing.T) {
	ctrl := gomock.NewController(t)
	dev := mock.NewMockDevice(ctrl) //no expectations, any call fails the test

	sio, logBuf := newSectorIO(t, 512)
	numSectors := uint64(sectorio.MaxTransferLen/512 + 1)

	n, err := sio.WriteSectors(dev, 0, numSectors, nil)
	require.ErrorIs(t, err, sectorio.ErrTransferTooLarge)
	require.Zero(t, n)

	n, err = sio.ReadSectors(dev, 0, numSectors, nil)
	require.ErrorIs(t, err, sectorio.ErrTransferTooLarge)
	require.Zero(t, n)
	require.Contains(t, logBuf.String(), "exceeds")
}

func TestBufferTooSmallNoIO(t *testing.T) {
	ctrl := gomock.NewController(t)
	dev := mock.NewMockDevice(ctrl)

	sio, _ := newSectorIO(t, 512)
	_, err := sio.WriteSectors(dev, 0, 2, make([]byte, 1023))
	require.ErrorIs(t, err, sectorio.ErrBufferTooSmall)
}

func TestSeekFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	dev := mock.NewMockDevice(ctrl)
	errSeek := errors.New("not positionable")
	dev.EXPECT().Seek(int64(5*512), io.SeekStart).Return(int64(0), errSeek)

	sio, logBuf := newSectorIO(t, 512)
	n, err := sio.ReadSectors(dev, 5, 1, make([]byte, 512))
	require.ErrorIs(t, err, errSeek)
	require.Zero(t, n)
	require.Contains(t, logBuf.String(), "Could not seek to sector 5")
}

func TestZeroByteWrite(t *testing.T) {
	for _, tc := range []struct {
		name       string
		largeDrive bool
		writeErr   error
		expectErr  error
	}{
		{name: "large-drive", largeDrive: true},
		{name: "large-drive-short-write-err", largeDrive: true, writeErr: io.ErrShortWrite},
		{name: "small-drive", largeDrive: false, expectErr: sectorio.ErrShortWrite},
		{name: "small-drive-short-write-err", largeDrive: false, writeErr: io.ErrShortWrite, expectErr: io.ErrShortWrite},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			dev := mock.NewMockDevice(ctrl)
			dev.EXPECT().Seek(int64(4096), io.SeekStart).Return(int64(4096), nil)
			dev.EXPECT().Write(gomock.Len(1024)).Return(0, tc.writeErr)

			sio, logBuf := newSectorIO(t, 512, sectorio.OptLargeDrive(sectorio.LargeDrive(tc.largeDrive)))
			n, err := sio.WriteSectors(dev, 8, 2, make([]byte, 1024))
			require.Zero(t, n)
			if tc.expectErr == nil {
				require.NoError(t, err)
				require.Contains(t, logBuf.String(), "WARNING: Possible short write")
				return
			}
			require.ErrorIs(t, err, tc.expectErr)
			require.Contains(t, logBuf.String(), "sector size = 512")
		})
	}
}

func TestLargeDriveIgnoresPartialWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	dev := mock.NewMockDevice(ctrl)
	dev.EXPECT().Seek(int64(0), io.SeekStart).Return(int64(0), nil)
	dev.EXPECT().Write(gomock.Any()).Return(512, nil)

	sio, _ := newSectorIO(t, 512, sectorio.OptLargeDrive(sectorio.LargeDrive(true)))
	n, err := sio.WriteSectors(dev, 0, 2, make([]byte, 1024))
	require.ErrorIs(t, err, sectorio.ErrShortWrite)
	require.EqualValues(t, 512, n)
}

func TestShortRead(t *testing.T) {
	rdsk := ramdisk.NewRAMDisk(512 * 4)
	sio, logBuf := newSectorIO(t, 512)

	n, err := sio.ReadSectors(rdsk, 3, 2, make([]byte, 1024))
	require.ErrorIs(t, err, sectorio.ErrShortRead)
	require.EqualValues(t, 512, n)
	require.Contains(t, logBuf.String(), "read 512 of")
}

func TestCapacityAtLeast(t *testing.T) {
	require.False(t, sectorio.CapacityAtLeast(1<<40, 0)())
	require.False(t, sectorio.CapacityAtLeast(1<<30, 1<<40)())
	require.True(t, sectorio.CapacityAtLeast(1<<40, 1<<40)())
}

func TestMetricsDevice(t *testing.T) {
	rdsk := ramdisk.NewRAMDisk(512 * 4)
	dev := sectorio.NewMetricsDevice(rdsk, "test")
	sio, _ := newSectorIO(t, 512, sectorio.OptMetrics("test"))

	_, err := sio.WriteSectors(dev, 1, 1, bytes.Repeat([]byte{7}, 512))
	require.NoError(t, err)
	_, err = sio.ReadSectors(dev, 1, 1, make([]byte, 512))
	require.NoError(t, err)

	reads, writes, seeks := rdsk.Ops()
	require.EqualValues(t, 1, reads)
	require.EqualValues(t, 1, writes)
	require.EqualValues(t, 2, seeks)
}
