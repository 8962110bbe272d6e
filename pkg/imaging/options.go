package imaging

import (
	"log"

	"github.com/tarndt/rawblk/pkg/sectorio"
)

//DefaultChunkSize is the size of each of the two buffers streamed transfers use
const DefaultChunkSize = 32 * 1024 * 1024

//ProgressFunc is called after each chunk with the bytes done so far and the
// expected total (zero when unknown)
type ProgressFunc func(done, total uint64)

//Option is an option of the streaming operations
type Option interface {
	apply(*streamConf)
}

type streamConf struct {
	sectorSize uint64
	chunkSize  uint64
	total      uint64
	progress   ProgressFunc
	retry      RetryPolicy
	logger     sectorio.Logger
}

func newStreamConf(sectorSize uint64, opts []Option) (streamConf, error) {
	if sectorSize == 0 {
		return streamConf{}, sectorio.ErrInvalidSectorSize
	}
	conf := streamConf{
		sectorSize: sectorSize,
		chunkSize:  DefaultChunkSize,
		retry:      DefaultRetryPolicy(),
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt.apply(&conf)
	}

	if conf.chunkSize < conf.sectorSize {
		conf.chunkSize = conf.sectorSize
	}
	conf.chunkSize -= conf.chunkSize % conf.sectorSize
	if conf.retry.Logger == nil {
		conf.retry.Logger = conf.logger
	}
	return conf, nil
}

//OptChunkSize sets the size of each transfer, rounded down to whole sectors
type OptChunkSize uint64

func (size OptChunkSize) apply(conf *streamConf) {
	if size > 0 {
		conf.chunkSize = uint64(size)
	}
}

//OptTotalSize is the expected stream length reported to progress callbacks
type OptTotalSize uint64

func (total OptTotalSize) apply(conf *streamConf) {
	conf.total = uint64(total)
}

//OptProgress instructs a stream to report progress after every chunk
type OptProgress ProgressFunc

func (progress OptProgress) apply(conf *streamConf) {
	conf.progress = ProgressFunc(progress)
}

//OptRetry replaces the DefaultRetryPolicy
type OptRetry RetryPolicy

func (retry OptRetry) apply(conf *streamConf) {
	conf.retry = RetryPolicy(retry)
}

//OptLogger instructs a stream to send diagnostics to the provided logger
type OptLogger struct {
	sectorio.Logger
}

func (optLogger OptLogger) apply(conf *streamConf) {
	if optLogger.Logger != nil {
		conf.logger = optLogger.Logger
	}
}

func (conf *streamConf) report(done uint64) {
	if conf.progress != nil {
		conf.progress(done, conf.total)
	}
}
