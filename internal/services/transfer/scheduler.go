package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cozy-creator/theme-manager/internal/executor"
	"github.com/cozy-creator/theme-manager/internal/types"

	"go.uber.org/zap"
)

var (
	ErrAlreadyScheduled = errors.New("descriptor is already scheduled")
	ErrClosed           = errors.New("scheduler closed")

	// ErrCancelled matches the error a cancelled descriptor carries.
	ErrCancelled = types.ErrCancelled
)

type Options struct {
	MaxConcurrent  int
	ConnectTimeout time.Duration
	Timeout        time.Duration
	UserAgent      string
}

// Scheduler multiplexes HTTP transfers with a fixed concurrency limit. All
// methods except the pool side of a transfer must be called from a single
// goroutine, the same one that calls Tick; callbacks run there too.
type Scheduler struct {
	opts   Options
	client *http.Client
	exec   *executor.Executor
	logger *zap.Logger

	waiting []*Descriptor
	active  map[*Descriptor]*activeTransfer
	closed  bool

	finished *finishedQueue
}

type activeTransfer struct {
	cancel context.CancelFunc
}

func NewScheduler(opts Options, exec *executor.Executor, logger *zap.Logger) *Scheduler {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}

	return &Scheduler{
		opts:     opts,
		client:   newHTTPClient(opts),
		exec:     exec,
		logger:   logger.Named("transfer"),
		active:   make(map[*Descriptor]*activeTransfer),
		finished: &finishedQueue{},
	}
}

func newHTTPClient(opts Options) *http.Client {
	connect := opts.ConnectTimeout
	if connect <= 0 {
		connect = 10 * time.Second
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connect,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: connect,
			MaxIdleConnsPerHost: opts.MaxConcurrent,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Enqueue appends d to the wait list, or to its front when d.HighPriority is
// set, and starts it right away if a slot is free.
func (s *Scheduler) Enqueue(d *Descriptor) error {
	if s.closed {
		return ErrClosed
	}

	if _, ok := s.active[d]; ok || s.isWaiting(d) {
		return ErrAlreadyScheduled
	}

	d.reset()
	if d.HighPriority {
		s.waiting = append([]*Descriptor{d}, s.waiting...)
	} else {
		s.waiting = append(s.waiting, d)
	}

	s.promote()
	return nil
}

// Cancel aborts an active transfer or drops a queued one. Either way d ends
// up Failed with ErrCancelled and its callback is never invoked.
func (s *Scheduler) Cancel(d *Descriptor) {
	if at, ok := s.active[d]; ok {
		at.cancel()
		delete(s.active, d)
		s.fail(d, types.CancelledError())
		s.logger.Debug("cancelled active transfer", zap.String("url", d.URL))
		s.promote()
		return
	}

	for i, w := range s.waiting {
		if w == d {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			s.fail(d, types.CancelledError())
			s.logger.Debug("cancelled queued transfer", zap.String("url", d.URL))
			return
		}
	}
}

// Tick completes every transfer that finished since the last call, invokes
// their callbacks, and refills free slots. It never blocks and reports
// whether any transfer is still queued or active.
func (s *Scheduler) Tick() bool {
	for _, f := range s.finished.take() {
		at, ok := s.active[f.d]
		if !ok || at != f.at {
			// cancelled after the request finished
			continue
		}

		delete(s.active, f.d)
		s.complete(f)
		s.promote()
	}

	s.promote()
	return len(s.active) > 0 || len(s.waiting) > 0
}

// Active reports the number of transfers currently holding a connection.
func (s *Scheduler) Active() int {
	return len(s.active)
}

// Pending reports the number of transfers waiting for a slot.
func (s *Scheduler) Pending() int {
	return len(s.waiting)
}

func (s *Scheduler) Max() int {
	return s.opts.MaxConcurrent
}

// Close cancels everything and rejects further Enqueue calls.
func (s *Scheduler) Close() {
	for d, at := range s.active {
		at.cancel()
		s.fail(d, types.CancelledError())
	}
	for _, d := range s.waiting {
		s.fail(d, types.CancelledError())
	}

	s.active = make(map[*Descriptor]*activeTransfer)
	s.waiting = nil
	s.closed = true
}

func (s *Scheduler) isWaiting(d *Descriptor) bool {
	for _, w := range s.waiting {
		if w == d {
			return true
		}
	}

	return false
}

func (s *Scheduler) promote() {
	for len(s.active) < s.opts.MaxConcurrent && len(s.waiting) > 0 {
		d := s.waiting[0]
		s.waiting = s.waiting[1:]
		s.start(d)
	}
}

func (s *Scheduler) start(d *Descriptor) {
	ctx, cancel := context.WithCancel(context.Background())
	at := &activeTransfer{cancel: cancel}
	s.active[d] = at
	d.setStatus(StatusActive)

	req, err := s.newRequest(ctx, d)
	if err != nil {
		cancel()
		s.finished.push(finished{d: d, at: at, err: err})
		return
	}

	s.exec.Submit(func() {
		defer cancel()
		code, body, err := s.perform(req)
		s.finished.push(finished{d: d, at: at, code: code, body: body, err: err})
	})
}

func (s *Scheduler) newRequest(ctx context.Context, d *Descriptor) (*http.Request, error) {
	var body io.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	}

	req, err := http.NewRequestWithContext(ctx, d.method(), d.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range d.Header {
		req.Header[k] = v
	}
	if s.opts.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}

	return req, nil
}

func (s *Scheduler) perform(req *http.Request) (int, []byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, body, nil
}

func (s *Scheduler) complete(f finished) {
	d := f.d
	d.Code = f.code
	d.Response = f.body

	switch {
	case f.err != nil:
		d.Err = types.NetworkError(f.code, "transfer failed", f.err)
		d.setStatus(StatusFailed)
	case f.code != http.StatusOK:
		d.Err = types.NetworkError(f.code, fmt.Sprintf("unexpected status %d", f.code), nil)
		d.setStatus(StatusFailed)
	default:
		d.setStatus(StatusComplete)
	}

	if d.Err != nil {
		s.logger.Debug("transfer failed", zap.String("url", d.URL), zap.Error(d.Err))
	}

	if d.Callback != nil {
		d.Callback(d)
	}
}

func (s *Scheduler) fail(d *Descriptor, err error) {
	d.Err = err
	d.setStatus(StatusFailed)
}
