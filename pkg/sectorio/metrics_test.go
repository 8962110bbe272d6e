package sectorio

import (
	"bytes"
	"io"
	"log"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

//memDevice is a minimal Device over a byte slice, writes are dropped when
// dropWrites is set
type memDevice struct {
	data       []byte
	pos        int64
	dropWrites bool
}

func (md *memDevice) Read(buf []byte) (int, error) {
	if md.pos >= int64(len(md.data)) {
		return 0, io.EOF
	}
	n := copy(buf, md.data[md.pos:])
	md.pos += int64(n)
	return n, nil
}

func (md *memDevice) Write(buf []byte) (int, error) {
	if md.dropWrites {
		return 0, nil
	}
	n := copy(md.data[md.pos:], buf)
	md.pos += int64(n)
	if n < len(buf) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (md *memDevice) Seek(offset int64, whence int) (int64, error) {
	md.pos = offset
	return offset, nil
}

func TestMetricsCounters(t *testing.T) {
	const name = "metrics-counters"
	dev := NewMetricsDevice(&memDevice{data: make([]byte, 512*4)}, name)
	sio, err := New(512, OptMetrics(name), OptLogger{Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)

	_, err = sio.WriteSectors(dev, 1, 2, bytes.Repeat([]byte{7}, 1024))
	require.NoError(t, err)
	_, err = sio.ReadSectors(dev, 3, 1, make([]byte, 512))
	require.NoError(t, err)

	require.EqualValues(t, 1, testutil.ToFloat64(deviceOperationsTotal.WithLabelValues(name, "Write")))
	require.EqualValues(t, 1, testutil.ToFloat64(deviceOperationsTotal.WithLabelValues(name, "Read")))
	require.EqualValues(t, 2, testutil.ToFloat64(deviceOperationsTotal.WithLabelValues(name, "Seek")))
	require.EqualValues(t, 1024, testutil.ToFloat64(deviceBytesTotal.WithLabelValues(name, "Write")))
	require.EqualValues(t, 512, testutil.ToFloat64(deviceBytesTotal.WithLabelValues(name, "Read")))
	require.Zero(t, testutil.ToFloat64(toleratedShortWritesTotal.WithLabelValues(name)))
}

func TestMetricsToleratedShortWrite(t *testing.T) {
	const name = "metrics-short-write"
	dev := NewMetricsDevice(&memDevice{data: make([]byte, 512*4), dropWrites: true}, name)

	large, err := New(512, OptMetrics(name), OptLargeDrive(LargeDrive(true)), OptLogger{Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)
	count, err := large.WriteSectors(dev, 0, 1, make([]byte, 512))
	require.NoError(t, err)
	require.Zero(t, count)
	require.EqualValues(t, 1, testutil.ToFloat64(toleratedShortWritesTotal.WithLabelValues(name)))

	small, err := New(512, OptMetrics(name), OptLogger{Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)
	_, err = small.WriteSectors(dev, 0, 1, make([]byte, 512))
	require.ErrorIs(t, err, ErrShortWrite)
	require.EqualValues(t, 1, testutil.ToFloat64(toleratedShortWritesTotal.WithLabelValues(name)), "Rejected write should not be counted")
	require.EqualValues(t, 2, testutil.ToFloat64(deviceOperationsTotal.WithLabelValues(name, "Write")))
	require.Zero(t, testutil.ToFloat64(deviceBytesTotal.WithLabelValues(name, "Write")))
}
