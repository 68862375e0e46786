package transfer

import (
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
)

type Status int32

const (
	StatusQueued Status = iota
	StatusActive
	StatusComplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusActive:
		return "active"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Callback runs on the goroutine that calls Scheduler.Tick.
type Callback func(d *Descriptor)

// Descriptor is one HTTP request plus its completion callback. The scheduler
// owns it from Enqueue until it reaches a terminal status.
type Descriptor struct {
	ID           uuid.UUID
	URL          string
	Body         []byte
	Header       http.Header
	HighPriority bool
	Callback     Callback

	Response []byte
	Code     int
	Err      error

	status atomic.Int32
}

// NewDescriptor creates a GET descriptor; setting Body turns it into a POST.
func NewDescriptor(url string, cb Callback) *Descriptor {
	return &Descriptor{
		ID:       uuid.New(),
		URL:      url,
		Callback: cb,
	}
}

func (d *Descriptor) Status() Status {
	return Status(d.status.Load())
}

func (d *Descriptor) setStatus(s Status) {
	d.status.Store(int32(s))
}

func (d *Descriptor) method() string {
	if d.Body != nil {
		return http.MethodPost
	}

	return http.MethodGet
}

func (d *Descriptor) reset() {
	d.Response = nil
	d.Code = 0
	d.Err = nil
	d.setStatus(StatusQueued)
}
