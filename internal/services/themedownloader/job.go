package themedownloader

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cozy-creator/theme-manager/internal/executor"
	"github.com/cozy-creator/theme-manager/internal/types"
	"github.com/cozy-creator/theme-manager/internal/utils/diskutil"
	"github.com/cozy-creator/theme-manager/internal/utils/pathutil"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

var (
	ErrMissingURL = errors.New("download url is required")
	ErrMissingID  = errors.New("theme id is required")
	errCancelled  = errors.New("cancelled")
)

type Options struct {
	CacheDir       string
	ThemesDir      string
	MinFreeBytes   uint64
	ChunkSize      int
	ConnectTimeout time.Duration
	Timeout        time.Duration
	UserAgent      string
}

type Request struct {
	ThemeID     string
	URL         string
	DisplayName string
}

// StateFunc is told about phase changes. It is never invoked once the job's
// cancel token has been observed as cancelled.
type StateFunc func(s Snapshot)

// Job downloads and extracts one theme archive on its own worker and its
// own HTTP connection. A Job is reusable: Start cancels and joins whatever
// the previous run was doing before starting over.
type Job struct {
	opts    Options
	client  *http.Client
	space   diskutil.SpaceChecker
	exec    *executor.Executor
	logger  *zap.Logger
	onState StateFunc

	phase    atomic.Int32
	progress atomicFloat
	err      atomic.Pointer[errBox]
	paths    atomic.Pointer[jobPaths]

	mu    sync.Mutex
	token *CancelToken
	done  chan struct{}
}

type errBox struct {
	err error
}

type jobPaths struct {
	themeID string
	archive string
	extract string
}

// NewJob builds a job. The worker always runs on its own goroutine so a
// long download never holds a pool slot. When exec is nil onState is called
// from the worker; otherwise it is posted to the executor's consumer queue.
func NewJob(opts Options, space diskutil.SpaceChecker, exec *executor.Executor, logger *zap.Logger, onState StateFunc) *Job {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 64 * 1024
	}
	if space == nil {
		space = diskutil.StatfsChecker{}
	}

	j := &Job{
		opts:    opts,
		client:  newDownloadClient(opts),
		space:   space,
		exec:    exec,
		logger:  logger.Named("downloader"),
		onState: onState,
	}
	j.paths.Store(&jobPaths{})
	return j
}

func newDownloadClient(opts Options) *http.Client {
	connect := opts.ConnectTimeout
	if connect <= 0 {
		connect = 30 * time.Second
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: connect,
			}).DialContext,
			TLSHandshakeTimeout:   connect,
			ResponseHeaderTimeout: 60 * time.Second,
			IdleConnTimeout:       60 * time.Second,
		},
	}
}

// Start begins downloading req.URL. The disk space preflight runs before the
// worker exists, so a low-space failure is returned here and no request is
// ever made.
func (j *Job) Start(req Request) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.token != nil {
		j.token.Cancel()
		<-j.done
	}
	j.token, j.done = nil, nil

	if req.URL == "" {
		return ErrMissingURL
	}
	if req.ThemeID == "" {
		return ErrMissingID
	}
	if err := pathutil.ValidateID(req.ThemeID); err != nil {
		return err
	}

	name := req.DisplayName
	if name == "" {
		name = req.ThemeID
	}
	paths := &jobPaths{
		themeID: req.ThemeID,
		archive: filepath.Join(j.opts.CacheDir, pathutil.SanitizeName(name)+".zip"),
		extract: filepath.Join(j.opts.ThemesDir, pathutil.ThemeFolderName(name, req.ThemeID)),
	}
	j.paths.Store(paths)
	j.progress.Store(0)
	j.err.Store(nil)
	j.setPhase(PhaseIdle)

	if err := os.MkdirAll(j.opts.CacheDir, 0755); err != nil {
		return j.failEarly(types.IOError("failed to create cache directory", err))
	}

	if err := j.preflight(); err != nil {
		return j.failEarly(err)
	}

	token := NewCancelToken()
	done := make(chan struct{})
	j.token, j.done = token, done

	j.setPhase(PhaseDownloading)

	go j.run(token, done, req.URL, paths)

	return nil
}

func (j *Job) preflight() error {
	available, err := j.space.Available(j.opts.CacheDir)
	if err != nil {
		j.logger.Warn("disk space query failed, continuing", zap.Error(err))
		return nil
	}

	if available < j.opts.MinFreeBytes {
		return types.DiskSpaceError(available, fmt.Sprintf("only %s free, %s required",
			humanize.IBytes(available), humanize.IBytes(j.opts.MinFreeBytes)))
	}

	return nil
}

// failEarly records a setup failure. The caller gets err back from Start,
// so no state callback is issued for it.
func (j *Job) failEarly(err error) error {
	j.err.Store(&errBox{err: err})
	j.setPhase(PhaseError)
	return err
}

// Cancel asks the worker to stop. It does not wait; use Wait or Close.
func (j *Job) Cancel() {
	j.mu.Lock()
	token := j.token
	j.mu.Unlock()

	if token != nil {
		token.Cancel()
	}
}

// Wait blocks until the current run, if any, has finished.
func (j *Job) Wait() {
	<-j.Done()
}

// Done is closed when the current run finishes. It is already closed when
// nothing has been started.
func (j *Job) Done() <-chan struct{} {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}

	return j.done
}

// Close cancels and joins the worker. After Close returns the worker no
// longer touches the job.
func (j *Job) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.token != nil {
		j.token.Cancel()
		<-j.done
	}
}

func (j *Job) Phase() Phase {
	return Phase(j.phase.Load())
}

func (j *Job) Progress() float64 {
	return j.progress.Load()
}

func (j *Job) Err() error {
	if box := j.err.Load(); box != nil {
		return box.err
	}

	return nil
}

func (j *Job) Snapshot() Snapshot {
	paths := j.paths.Load()
	return Snapshot{
		ThemeID:     paths.themeID,
		Phase:       j.Phase(),
		Progress:    j.Progress(),
		Err:         j.Err(),
		ArchivePath: paths.archive,
		ExtractPath: paths.extract,
	}
}

func (j *Job) setPhase(p Phase) {
	j.phase.Store(int32(p))
}

func (j *Job) notify(token *CancelToken) {
	if token.Cancelled() {
		return
	}

	snapshot := j.Snapshot()
	if j.exec != nil {
		j.exec.Post(func() {
			if !token.Cancelled() && j.onState != nil {
				j.onState(snapshot)
			}
		})
		return
	}

	if j.onState != nil {
		j.onState(snapshot)
	}
}

func (j *Job) run(token *CancelToken, done chan struct{}, url string, paths *jobPaths) {
	defer close(done)
	defer token.release()

	log := j.logger.With(zap.String("theme_id", paths.themeID))
	j.notify(token)
	partPath := paths.archive + ".part"

	renamed := false
	err := j.download(token, url, partPath)
	if err == nil {
		if err = os.Rename(partPath, paths.archive); err != nil {
			err = types.IOError("failed to finalize archive", err)
		} else {
			renamed = true
		}
	}

	createdExtract := !pathutil.PathExists(paths.extract)
	if err == nil && !token.Cancelled() {
		j.progress.Store(downloadShare)
		j.setPhase(PhaseExtracting)
		j.notify(token)
		err = j.extract(token, paths.archive, paths.extract)
	}

	if err == nil && token.Cancelled() {
		err = errCancelled
	}

	if err != nil {
		j.cleanup(log, partPath, paths, renamed, createdExtract)

		if token.Cancelled() || errors.Is(err, errCancelled) {
			j.err.Store(&errBox{err: types.CancelledError()})
			j.setPhase(PhaseCancelled)
			log.Info("download cancelled")
			return
		}

		j.err.Store(&errBox{err: err})
		j.setPhase(PhaseError)
		log.Error("download failed", zap.Error(err))
		j.notify(token)
		return
	}

	j.progress.Store(1)
	j.setPhase(PhaseComplete)
	log.Info("theme downloaded", zap.String("path", paths.extract))
	j.notify(token)
}

// cleanup removes what this run left behind. An archive kept by an earlier
// successful run is only removed once this run has replaced it.
func (j *Job) cleanup(log *zap.Logger, partPath string, paths *jobPaths, renamed, createdExtract bool) {
	leftovers := []string{partPath}
	if renamed {
		leftovers = append(leftovers, paths.archive)
	}

	for _, p := range leftovers {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove partial archive", zap.String("path", p), zap.Error(err))
		}
	}

	if createdExtract {
		if err := os.RemoveAll(paths.extract); err != nil {
			log.Warn("failed to remove partial extraction", zap.String("path", paths.extract), zap.Error(err))
		}
	}
}
