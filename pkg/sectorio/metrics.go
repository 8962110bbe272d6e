package sectorio

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	deviceOperationsPrometheusMetrics sync.Once

	deviceOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rawblk",
			Subsystem: "sectorio",
			Name:      "device_operations_total",
			Help:      "Total number of operations against raw devices.",
		},
		[]string{"name", "operation"})

	deviceBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rawblk",
			Subsystem: "sectorio",
			Name:      "device_bytes_total",
			Help:      "Total number of bytes transferred to and from raw devices.",
		},
		[]string{"name", "direction"})

	toleratedShortWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rawblk",
			Subsystem: "sectorio",
			Name:      "tolerated_short_writes_total",
			Help:      "Total number of zero byte writes accepted because the drive is large.",
		},
		[]string{"name"})
)

func registerMetrics() {
	deviceOperationsPrometheusMetrics.Do(func() {
		prometheus.MustRegister(deviceOperationsTotal, deviceBytesTotal, toleratedShortWritesTotal)
	})
}

type sectorMetrics struct {
	shortWrites prometheus.Counter
}

func newSectorMetrics(name string) *sectorMetrics {
	registerMetrics()
	return &sectorMetrics{
		shortWrites: toleratedShortWritesTotal.WithLabelValues(name),
	}
}

func (sm *sectorMetrics) toleratedShortWrite() {
	if sm != nil {
		sm.shortWrites.Inc()
	}
}

type metricsDevice struct {
	base Device

	read  prometheus.Counter
	write prometheus.Counter
	seek  prometheus.Counter

	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
}

//NewMetricsDevice is a decorator for Device that exposes the number of
// operations and bytes transferred through Prometheus
func NewMetricsDevice(base Device, name string) Device {
	registerMetrics()

	return &metricsDevice{
		base: base,

		read:  deviceOperationsTotal.WithLabelValues(name, "Read"),
		write: deviceOperationsTotal.WithLabelValues(name, "Write"),
		seek:  deviceOperationsTotal.WithLabelValues(name, "Seek"),

		bytesRead:    deviceBytesTotal.WithLabelValues(name, "Read"),
		bytesWritten: deviceBytesTotal.WithLabelValues(name, "Write"),
	}
}

func (md *metricsDevice) Read(buf []byte) (int, error) {
	md.read.Inc()
	n, err := md.base.Read(buf)
	md.bytesRead.Add(float64(n))
	return n, err
}

func (md *metricsDevice) Write(buf []byte) (int, error) {
	md.write.Inc()
	n, err := md.base.Write(buf)
	md.bytesWritten.Add(float64(n))
	return n, err
}

func (md *metricsDevice) Seek(offset int64, whence int) (int64, error) {
	md.seek.Inc()
	return md.base.Seek(offset, whence)
}
