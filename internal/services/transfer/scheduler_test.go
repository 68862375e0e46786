package transfer

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cozy-creator/theme-manager/internal/executor"
	"github.com/cozy-creator/theme-manager/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (h *hitCounter) add(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits[path]++
}

func (h *hitCounter) get(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func newTestServer(t *testing.T, delay time.Duration) (*httptest.Server, *hitCounter) {
	t.Helper()

	hits := &hitCounter{hits: make(map[string]int)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.add(r.URL.Path)
		time.Sleep(delay)
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/echo":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(r.Method))
		default:
			_, _ = w.Write([]byte("ok:" + r.URL.Path))
		}
	}))
	t.Cleanup(srv.Close)

	return srv, hits
}

func newTestScheduler(t *testing.T, max int) *Scheduler {
	t.Helper()

	exec := executor.New(max + 2)
	t.Cleanup(exec.StopWait)

	return NewScheduler(Options{MaxConcurrent: max, Timeout: 5 * time.Second}, exec, zap.NewNop())
}

// runUntilIdle ticks the scheduler until it reports no remaining work,
// checking the active-transfer bound at every observation.
func runUntilIdle(t *testing.T, s *Scheduler) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for {
		require.GreaterOrEqual(t, s.Active(), 0)
		require.LessOrEqual(t, s.Active(), s.Max())

		if !s.Tick() {
			return
		}

		require.LessOrEqual(t, s.Active(), s.Max())
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not drain")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestTickDrainsAllDescriptorsWithinLimit(t *testing.T) {
	srv, _ := newTestServer(t, 10*time.Millisecond)
	s := newTestScheduler(t, 3)

	var calls int
	descriptors := make([]*Descriptor, 0, 10)
	for i := 0; i < 10; i++ {
		path := fmt.Sprintf("/item/%d", i)
		if i%4 == 0 {
			path = "/missing"
		}
		d := NewDescriptor(srv.URL+path, func(d *Descriptor) { calls++ })
		require.NoError(t, s.Enqueue(d))
		require.LessOrEqual(t, s.Active(), 3)
		descriptors = append(descriptors, d)
	}

	assert.Equal(t, 3, s.Active())
	assert.Equal(t, 7, s.Pending())

	runUntilIdle(t, s)

	assert.Equal(t, 10, calls)
	assert.Equal(t, 0, s.Active())
	for i, d := range descriptors {
		require.True(t, d.Status().Terminal(), "descriptor %d not terminal", i)
		if i%4 == 0 {
			assert.Equal(t, StatusFailed, d.Status())
			assert.Equal(t, http.StatusNotFound, d.Code)
			assert.True(t, errors.Is(d.Err, types.ErrNetwork))
		} else {
			assert.Equal(t, StatusComplete, d.Status())
			assert.Equal(t, fmt.Sprintf("ok:/item/%d", i), string(d.Response))
		}
	}
}

func TestCancelQueuedNeverStarts(t *testing.T) {
	srv, hits := newTestServer(t, 30*time.Millisecond)
	s := newTestScheduler(t, 1)

	first := NewDescriptor(srv.URL+"/first", nil)
	var queuedCalled bool
	queued := NewDescriptor(srv.URL+"/queued", func(*Descriptor) { queuedCalled = true })

	require.NoError(t, s.Enqueue(first))
	require.NoError(t, s.Enqueue(queued))
	assert.Equal(t, StatusQueued, queued.Status())
	assert.Equal(t, 1, s.Active())

	s.Cancel(queued)
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, 1, s.Active())

	runUntilIdle(t, s)

	assert.Equal(t, StatusComplete, first.Status())
	assert.Equal(t, StatusFailed, queued.Status())
	assert.ErrorIs(t, queued.Err, ErrCancelled)
	assert.False(t, queuedCalled)
	assert.Equal(t, 0, hits.get("/queued"))
}

func TestCancelActiveReleasesSlot(t *testing.T) {
	srv, _ := newTestServer(t, 200*time.Millisecond)
	s := newTestScheduler(t, 1)

	var called bool
	slow := NewDescriptor(srv.URL+"/slow", func(*Descriptor) { called = true })
	next := NewDescriptor(srv.URL+"/next", nil)

	require.NoError(t, s.Enqueue(slow))
	require.NoError(t, s.Enqueue(next))

	s.Cancel(slow)
	assert.Equal(t, StatusFailed, slow.Status())
	assert.Equal(t, StatusActive, next.Status())
	assert.Equal(t, 1, s.Active())

	runUntilIdle(t, s)

	assert.False(t, called)
	assert.Equal(t, StatusComplete, next.Status())
}

func TestHighPriorityJumpsQueue(t *testing.T) {
	srv, _ := newTestServer(t, 20*time.Millisecond)
	s := newTestScheduler(t, 1)

	var order []string
	record := func(d *Descriptor) { order = append(order, string(d.Response)) }

	require.NoError(t, s.Enqueue(NewDescriptor(srv.URL+"/a", record)))
	require.NoError(t, s.Enqueue(NewDescriptor(srv.URL+"/b", record)))
	urgent := NewDescriptor(srv.URL+"/urgent", record)
	urgent.HighPriority = true
	require.NoError(t, s.Enqueue(urgent))

	runUntilIdle(t, s)

	assert.Equal(t, []string{"ok:/a", "ok:/urgent", "ok:/b"}, order)
}

func TestBodyTurnsIntoPost(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	s := newTestScheduler(t, 1)

	d := NewDescriptor(srv.URL+"/echo", nil)
	d.Body = []byte(`{"q":"themes"}`)
	require.NoError(t, s.Enqueue(d))
	runUntilIdle(t, s)

	assert.Equal(t, "POST", string(d.Response))
}

func TestEnqueueTwiceRejected(t *testing.T) {
	srv, _ := newTestServer(t, 20*time.Millisecond)
	s := newTestScheduler(t, 1)

	d := NewDescriptor(srv.URL+"/dup", nil)
	require.NoError(t, s.Enqueue(d))
	assert.ErrorIs(t, s.Enqueue(d), ErrAlreadyScheduled)

	runUntilIdle(t, s)

	// terminal descriptors may be resubmitted
	require.NoError(t, s.Enqueue(d))
	runUntilIdle(t, s)
	assert.Equal(t, StatusComplete, d.Status())
}

func TestCloseRejectsEnqueue(t *testing.T) {
	s := newTestScheduler(t, 1)
	s.Close()

	assert.ErrorIs(t, s.Enqueue(NewDescriptor("http://127.0.0.1:1/", nil)), ErrClosed)
	assert.False(t, s.Tick())
}
