package themedownloader

import (
	"math"
	"sync/atomic"
)

type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDownloading
	PhaseExtracting
	PhaseComplete
	PhaseError
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDownloading:
		return "downloading"
	case PhaseExtracting:
		return "extracting"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError || p == PhaseCancelled
}

// Download progress maps onto [0, downloadShare); extraction onto the rest.
const downloadShare = 0.9

// atomicFloat stores a float64 in an atomic word.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

// Snapshot is a consistent-enough copy of the job state for UI polling.
type Snapshot struct {
	ThemeID     string
	Phase       Phase
	Progress    float64
	Err         error
	ArchivePath string
	ExtractPath string
}
