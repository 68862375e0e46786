package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cozy-creator/theme-manager/internal/executor"
	"github.com/cozy-creator/theme-manager/internal/services/installer"
	"github.com/cozy-creator/theme-manager/internal/services/themedownloader"
	"github.com/cozy-creator/theme-manager/internal/types"
	"github.com/cozy-creator/theme-manager/internal/utils/diskutil"

	"go.uber.org/zap"
)

type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDownloading
	PhaseExtracting
	PhaseInstalling
	PhaseInstalled
	PhaseFailed
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
	case PhaseInstalling:
		return "installing"
	case PhaseInstalled:
		return "installed"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (p Phase) Terminal() bool {
	return p == PhaseInstalled || p == PhaseFailed || p == PhaseCancelled
}

type Status struct {
	Phase    Phase
	Progress float64
	Err      error
}

// Event is delivered to the caller of Download from inside Tick.
type Event struct {
	ThemeID string
	Phase   Phase
	Err     error
	// Result and ActiveFolder are set once installation has finished.
	Result       *installer.InstallResult
	ActiveFolder string
}

type EventFunc func(Event)

// Ticker is something the consumer drives once per frame.
type Ticker interface {
	Tick() bool
}

type Options struct {
	Download themedownloader.Options
	// Activate selects the theme in the plugin config after installing it.
	Activate bool
}

type Orchestrator struct {
	opts      Options
	exec      *executor.Executor
	installer *installer.Installer
	space     diskutil.SpaceChecker
	ticker    Ticker
	logger    *zap.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// run is one download-then-install attempt for a theme.
type run struct {
	theme   types.Theme
	job     *themedownloader.Job
	onEvent EventFunc

	ctx        context.Context
	cancel     context.CancelFunc
	installing sync.WaitGroup

	// stage overrides the job's phase once installation has begun.
	stage  atomic.Int32
	err    atomic.Pointer[error]
	result atomic.Pointer[installer.InstallResult]
}

func New(opts Options, exec *executor.Executor, inst *installer.Installer, space diskutil.SpaceChecker, ticker Ticker, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		opts:      opts,
		exec:      exec,
		installer: inst,
		space:     space,
		ticker:    ticker,
		logger:    logger.Named("orchestrator"),
		runs:      make(map[string]*run),
	}
}

// Download starts fetching theme, first cancelling and joining any earlier
// attempt for the same theme. onEvent runs on the goroutine calling Tick.
func (o *Orchestrator) Download(theme types.Theme, onEvent EventFunc) error {
	if theme.ID == "" {
		return themedownloader.ErrMissingID
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if prev, ok := o.runs[theme.ID]; ok {
		prev.stop()
		delete(o.runs, theme.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{theme: theme, onEvent: onEvent, ctx: ctx, cancel: cancel}
	r.job = themedownloader.NewJob(o.opts.Download, o.space, o.exec, o.logger, func(s themedownloader.Snapshot) {
		o.onJobState(r, s)
	})

	err := r.job.Start(themedownloader.Request{
		ThemeID:     theme.ID,
		URL:         theme.DownloadURL,
		DisplayName: theme.Name,
	})
	if err != nil {
		cancel()
		r.fail(err)
		o.runs[theme.ID] = r
		return err
	}

	o.runs[theme.ID] = r
	o.logger.Info("download started", zap.String("theme_id", theme.ID), zap.String("url", theme.DownloadURL))
	return nil
}

func (o *Orchestrator) onJobState(r *run, s themedownloader.Snapshot) {
	if !o.current(r) || r.ctx.Err() != nil {
		return
	}

	switch s.Phase {
	case themedownloader.PhaseDownloading:
		r.emit(Event{ThemeID: r.theme.ID, Phase: PhaseDownloading})
	case themedownloader.PhaseExtracting:
		r.emit(Event{ThemeID: r.theme.ID, Phase: PhaseExtracting})
	case themedownloader.PhaseError:
		r.fail(s.Err)
		r.emit(Event{ThemeID: r.theme.ID, Phase: PhaseFailed, Err: s.Err})
	case themedownloader.PhaseComplete:
		r.stage.Store(int32(PhaseInstalling))
		r.emit(Event{ThemeID: r.theme.ID, Phase: PhaseInstalling})
		o.install(r, s.ExtractPath)
	}
}

// install patches on the pool and reports back through the consumer queue.
// stop waits for the pass, so a later attempt never patches alongside it.
func (o *Orchestrator) install(r *run, folder string) {
	theme := r.theme
	log := o.logger.With(zap.String("theme_id", theme.ID))

	r.installing.Add(1)
	o.exec.Run(func() func() {
		defer r.installing.Done()

		result, err := o.installer.Install(r.ctx, folder, theme.ID, theme.Name, theme.Author)

		var active string
		if err == nil && o.opts.Activate && !result.Failed() {
			active, err = o.installer.Activate(theme.ID)
		}

		return func() {
			if !o.current(r) || r.ctx.Err() != nil {
				return
			}

			if result != nil {
				r.result.Store(result)
			}

			if err != nil {
				log.Error("install failed", zap.Error(err))
				r.fail(err)
				r.emit(Event{ThemeID: theme.ID, Phase: PhaseFailed, Err: err, Result: result})
				return
			}

			if result.Failed() {
				log.Warn("installed with no patched files", zap.Int("failures", len(result.Failures)))
			}

			r.stage.Store(int32(PhaseInstalled))
			r.emit(Event{ThemeID: theme.ID, Phase: PhaseInstalled, Result: result, ActiveFolder: active})
		}
	})
}

func (o *Orchestrator) current(r *run) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs[r.theme.ID] == r
}

// Status reports the state of the latest attempt for themeID.
func (o *Orchestrator) Status(themeID string) Status {
	o.mu.Lock()
	r, ok := o.runs[themeID]
	o.mu.Unlock()

	if !ok {
		return Status{Phase: PhaseIdle}
	}

	return r.status()
}

// Result returns the install result of the latest attempt, if it got that far.
func (o *Orchestrator) Result(themeID string) *installer.InstallResult {
	o.mu.Lock()
	r, ok := o.runs[themeID]
	o.mu.Unlock()

	if !ok {
		return nil
	}

	return r.result.Load()
}

// Cancel stops the download for themeID. It does not wait for the worker.
func (o *Orchestrator) Cancel(themeID string) {
	o.mu.Lock()
	r, ok := o.runs[themeID]
	o.mu.Unlock()

	if !ok {
		return
	}

	r.job.Cancel()
	r.cancel()
	if !r.status().Phase.Terminal() {
		r.stage.Store(int32(PhaseCancelled))
		r.err.CompareAndSwap(nil, ptr(error(types.CancelledError())))
	}
	o.logger.Info("download cancelled", zap.String("theme_id", themeID))
}

func ptr[T any](v T) *T {
	return &v
}

// Tick advances the scheduler and delivers any pending results. It reports
// whether anything is still in flight.
func (o *Orchestrator) Tick() bool {
	busy := false
	if o.ticker != nil {
		busy = o.ticker.Tick()
	}

	o.exec.Drain()

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.runs {
		if !r.status().Phase.Terminal() {
			busy = true
		}
	}

	return busy || o.exec.Pending() > 0
}

// Close cancels and joins every download and install pass.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, r := range o.runs {
		r.stop()
		delete(o.runs, id)
	}
}

// stop cancels the attempt and joins both its download worker and any
// install pass still running on the pool.
func (r *run) stop() {
	r.cancel()
	r.job.Close()
	r.installing.Wait()
}

func (r *run) fail(err error) {
	r.err.Store(&err)
	r.stage.Store(int32(PhaseFailed))
}

func (r *run) emit(e Event) {
	if r.onEvent != nil {
		r.onEvent(e)
	}
}

func (r *run) status() Status {
	var err error
	if p := r.err.Load(); p != nil {
		err = *p
	}

	if stage := Phase(r.stage.Load()); stage != PhaseIdle {
		progress := 1.0
		if stage == PhaseFailed || stage == PhaseCancelled {
			progress = r.job.Progress()
		}
		return Status{Phase: stage, Progress: progress, Err: err}
	}

	snap := r.job.Snapshot()
	status := Status{Progress: snap.Progress, Err: snap.Err}
	switch snap.Phase {
	case themedownloader.PhaseDownloading:
		status.Phase = PhaseDownloading
	case themedownloader.PhaseExtracting:
		status.Phase = PhaseExtracting
	case themedownloader.PhaseComplete:
		status.Phase = PhaseInstalling
	case themedownloader.PhaseError:
		status.Phase = PhaseFailed
	case themedownloader.PhaseCancelled:
		status.Phase = PhaseCancelled
		if status.Err == nil {
			status.Err = types.CancelledError()
		}
	default:
		status.Phase = PhaseIdle
	}

	return status
}
