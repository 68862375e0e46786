package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cozy-creator/theme-manager/internal/executor"
	"github.com/cozy-creator/theme-manager/internal/services/installer"
	"github.com/cozy-creator/theme-manager/internal/services/themedownloader"
	"github.com/cozy-creator/theme-manager/internal/types"
	"github.com/cozy-creator/theme-manager/internal/utils/diskutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	root  string
	exec  *executor.Executor
	inst  *installer.Installer
	orch  *Orchestrator
	iopts installer.Options
}

func themeZip(t *testing.T, id string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"metadata.json":              `{"id":"` + id + `"}`,
		"Men.bps":                    "men-patch",
		"Msg/AllMessage_UsEn.bps":    "msg-patch",
		"Sound/cafe_barista_men.bps": "snd-patch",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var concat = installer.PatcherFunc(func(_ context.Context, base, patch []byte) ([]byte, error) {
	return append(append([]byte{}, base...), patch...), nil
})

func newHarness(t *testing.T, freeBytes uint64) *harness {
	t.Helper()
	return newHarnessWithPatcher(t, freeBytes, concat)
}

func newHarnessWithPatcher(t *testing.T, freeBytes uint64, patcher installer.Patcher) *harness {
	t.Helper()

	root := t.TempDir()
	h := &harness{root: root, exec: executor.New(4)}
	t.Cleanup(h.exec.StopWait)

	h.iopts = installer.Options{
		SystemRoot:   filepath.Join(root, "system"),
		InstallDir:   filepath.Join(root, "installed"),
		ThemesDir:    filepath.Join(root, "themes"),
		PluginConfig: filepath.Join(root, "plugin.json"),
	}
	for target, body := range map[string]string{
		"Common/Package/Men.pack":                 "men|",
		"UsEnglish/Message/AllMessage.szs":        "msg|",
		"Common/Sound/Men/cafe_barista_men.bfsar": "snd|",
	} {
		p := filepath.Join(h.iopts.SystemRoot, filepath.FromSlash(target))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	}
	require.NoError(t, os.WriteFile(h.iopts.PluginConfig, []byte(`{"active-theme":""}`), 0644))

	h.inst = installer.New(h.iopts, patcher, zap.NewNop())

	space := diskutil.SpaceCheckerFunc(func(string) (uint64, error) { return freeBytes, nil })
	h.orch = New(Options{
		Download: themedownloader.Options{
			CacheDir:     filepath.Join(root, "cache"),
			ThemesDir:    h.iopts.ThemesDir,
			MinFreeBytes: 100 << 20,
			ChunkSize:    512,
		},
		Activate: true,
	}, h.exec, h.inst, space, nil, zap.NewNop())
	t.Cleanup(h.orch.Close)

	return h
}

func (h *harness) tickUntil(t *testing.T, id string, want Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.orch.Tick()
		return h.orch.Status(id).Phase == want
	}, 10*time.Second, 5*time.Millisecond, "last status: %+v", h.orch.Status(id))
}

func serve(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.zip" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func stalling(t *testing.T) (*httptest.Server, <-chan struct{}) {
	t.Helper()
	started := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(1<<20))
		_, _ = w.Write(make([]byte, 1024))
		w.(http.Flusher).Flush()
		started <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	return srv, started
}

func TestDownloadInstallsAndActivates(t *testing.T) {
	h := newHarness(t, 1<<40)
	srv := serve(t, themeZip(t, "t1"))

	var events []Event
	theme := types.Theme{ID: "t1", Name: "Night Sky", Author: "someone", DownloadURL: srv.URL + "/t1.zip"}
	require.NoError(t, h.orch.Download(theme, func(e Event) { events = append(events, e) }))

	h.tickUntil(t, "t1", PhaseInstalled)

	var phases []Phase
	for _, e := range events {
		phases = append(phases, e.Phase)
	}
	assert.Equal(t, []Phase{PhaseDownloading, PhaseExtracting, PhaseInstalling, PhaseInstalled}, phases)

	last := events[len(events)-1]
	require.NotNil(t, last.Result)
	assert.Equal(t, 3, last.Result.Record.PatchedFiles)
	assert.Equal(t, "Night Sky [t1]", last.ActiveFolder)

	active, err := h.inst.ActiveTheme()
	require.NoError(t, err)
	assert.Equal(t, "Night Sky [t1]", active)

	patched, err := os.ReadFile(filepath.Join(h.iopts.ThemesDir, "Night Sky [t1]", "content", "Common", "Package", "Men.pack"))
	require.NoError(t, err)
	assert.Equal(t, "men|men-patch", string(patched))

	status := h.orch.Status("t1")
	assert.Equal(t, 1.0, status.Progress)
	assert.NoError(t, status.Err)
	assert.False(t, h.orch.Tick())
}

func TestDownloadFailsPreflight(t *testing.T) {
	h := newHarness(t, 10<<20)
	srv := serve(t, themeZip(t, "t2"))

	called := false
	err := h.orch.Download(types.Theme{ID: "t2", Name: "Low", DownloadURL: srv.URL + "/t2.zip"}, func(Event) { called = true })
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrDiskSpace))

	status := h.orch.Status("t2")
	assert.Equal(t, PhaseFailed, status.Phase)
	assert.True(t, errors.Is(status.Err, types.ErrDiskSpace))

	h.orch.Tick()
	assert.False(t, called)
}

func TestDownloadHTTPFailure(t *testing.T) {
	h := newHarness(t, 1<<40)
	srv := serve(t, nil)

	var failed *Event
	theme := types.Theme{ID: "t3", Name: "Gone", DownloadURL: srv.URL + "/missing.zip"}
	require.NoError(t, h.orch.Download(theme, func(e Event) {
		if e.Phase == PhaseFailed {
			failed = &e
		}
	}))

	h.tickUntil(t, "t3", PhaseFailed)
	require.NotNil(t, failed)
	assert.True(t, errors.Is(failed.Err, types.ErrNetwork))

	_, err := h.inst.Lookup("t3")
	assert.ErrorIs(t, err, installer.ErrNotInstalled)
}

func TestCancelStopsDownload(t *testing.T) {
	h := newHarness(t, 1<<40)
	srv, started := stalling(t)

	var phases []Phase
	theme := types.Theme{ID: "t4", Name: "Slow", DownloadURL: srv.URL + "/slow.zip"}
	require.NoError(t, h.orch.Download(theme, func(e Event) { phases = append(phases, e.Phase) }))
	<-started

	h.orch.Cancel("t4")
	status := h.orch.Status("t4")
	assert.Equal(t, PhaseCancelled, status.Phase)
	assert.True(t, errors.Is(status.Err, types.ErrCancelled))

	require.Eventually(t, func() bool { return !h.orch.Tick() }, 5*time.Second, 5*time.Millisecond)
	assert.NotContains(t, phases, PhaseFailed)
	assert.NotContains(t, phases, PhaseInstalled)
}

func TestRedownloadReplacesPreviousAttempt(t *testing.T) {
	h := newHarness(t, 1<<40)
	slow, started := stalling(t)
	good := serve(t, themeZip(t, "t5"))

	var stale int
	theme := types.Theme{ID: "t5", Name: "Retry", DownloadURL: slow.URL + "/slow.zip"}
	require.NoError(t, h.orch.Download(theme, func(e Event) { stale++ }))
	<-started

	// the first attempt's Downloading event is still queued and must be dropped
	theme.DownloadURL = good.URL + "/good.zip"
	var phases []Phase
	require.NoError(t, h.orch.Download(theme, func(e Event) { phases = append(phases, e.Phase) }))

	h.tickUntil(t, "t5", PhaseInstalled)
	assert.Zero(t, stale)
	assert.Equal(t, PhaseInstalled, phases[len(phases)-1])
}

func TestStatusUnknownTheme(t *testing.T) {
	h := newHarness(t, 1<<40)
	assert.Equal(t, Status{Phase: PhaseIdle}, h.orch.Status("nope"))
	assert.Nil(t, h.orch.Result("nope"))

	err := h.orch.Download(types.Theme{Name: "no id"}, nil)
	assert.ErrorIs(t, err, themedownloader.ErrMissingID)
}

// gatedPatcher blocks every patch until open is called.
type gatedPatcher struct {
	calls   atomic.Int32
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newGatedPatcher() *gatedPatcher {
	return &gatedPatcher{entered: make(chan struct{}, 16), gate: make(chan struct{})}
}

func (g *gatedPatcher) Apply(ctx context.Context, base, patch []byte) ([]byte, error) {
	g.calls.Add(1)
	g.entered <- struct{}{}
	<-g.gate
	return concat(ctx, base, patch)
}

func (g *gatedPatcher) open() {
	g.once.Do(func() { close(g.gate) })
}

func (g *gatedPatcher) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(10 * time.Second):
		t.Fatal("install pass never reached the patcher")
	}
}

func TestRedownloadJoinsRunningInstall(t *testing.T) {
	gated := newGatedPatcher()
	defer gated.open()
	h := newHarnessWithPatcher(t, 1<<40, gated)
	srv := serve(t, themeZip(t, "t6"))

	theme := types.Theme{ID: "t6", Name: "Busy", DownloadURL: srv.URL + "/t6.zip"}
	require.NoError(t, h.orch.Download(theme, nil))
	h.tickUntil(t, "t6", PhaseInstalling)
	gated.waitEntered(t)

	returned := make(chan error, 1)
	go func() { returned <- h.orch.Download(theme, nil) }()

	select {
	case <-returned:
		t.Fatal("re-download returned while the previous install pass was still patching")
	case <-time.After(100 * time.Millisecond):
	}

	gated.open()
	select {
	case err := <-returned:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("re-download never returned")
	}
	assert.Equal(t, int32(1), gated.calls.Load(), "cancelled pass must stop after the artifact in flight")

	h.tickUntil(t, "t6", PhaseInstalled)
	assert.Equal(t, int32(4), gated.calls.Load())

	rec, err := h.inst.Lookup("t6")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.PatchedFiles)
}

func TestCancelDuringInstallLeavesNoRecord(t *testing.T) {
	gated := newGatedPatcher()
	defer gated.open()
	h := newHarnessWithPatcher(t, 1<<40, gated)
	srv := serve(t, themeZip(t, "t7"))

	var phases []Phase
	theme := types.Theme{ID: "t7", Name: "Stopped", DownloadURL: srv.URL + "/t7.zip"}
	require.NoError(t, h.orch.Download(theme, func(e Event) { phases = append(phases, e.Phase) }))
	h.tickUntil(t, "t7", PhaseInstalling)
	gated.waitEntered(t)

	h.orch.Cancel("t7")
	assert.Equal(t, PhaseCancelled, h.orch.Status("t7").Phase)

	gated.open()
	h.orch.Close()

	assert.Equal(t, int32(1), gated.calls.Load())
	_, err := h.inst.Lookup("t7")
	assert.ErrorIs(t, err, installer.ErrNotInstalled)

	h.orch.Tick()
	assert.NotContains(t, phases, PhaseInstalled)
	assert.NotContains(t, phases, PhaseFailed)
}
