package sectorio

//Option is a SectorIO option
type Option interface {
	apply(*SectorIO)
}

//LargeDrivePredicate reports whether the drive being written is large enough
// that a zero byte write result is a known benign quirk
type LargeDrivePredicate func() bool

//LargeDrive is a predicate with a fixed answer
func LargeDrive(large bool) LargeDrivePredicate {
	return func() bool { return large }
}

//CapacityAtLeast is a predicate true when capacity is at least threshold bytes,
// a zero threshold disables it
func CapacityAtLeast(capacity, threshold uint64) LargeDrivePredicate {
	large := threshold > 0 && capacity >= threshold
	return LargeDrive(large)
}

//OptLargeDrive instructs a SectorIO to consult this predicate when a write
// transfers zero bytes
type OptLargeDrive LargeDrivePredicate

func (pred OptLargeDrive) apply(sio *SectorIO) {
	if pred != nil {
		sio.largeDrive = LargeDrivePredicate(pred)
	}
}

//OptLogger instructs a SectorIO to send diagnostics to the provided logger
type OptLogger struct {
	Logger
}

func (optLogger OptLogger) apply(sio *SectorIO) {
	if optLogger.Logger != nil {
		sio.logger = optLogger.Logger
	}
}

//OptMetrics instructs a SectorIO to count tolerated short writes in Prometheus
// under the provided name
type OptMetrics string

func (name OptMetrics) apply(sio *SectorIO) {
	sio.metrics = newSectorMetrics(string(name))
}
