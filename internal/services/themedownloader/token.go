package themedownloader

import (
	"context"
	"sync/atomic"
)

// CancelToken is a one-shot cooperative cancellation signal. Work polls
// Cancelled between units; blocking I/O watches Context.
type CancelToken struct {
	cancelled atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewCancelToken() *CancelToken {
	ctx, cancel := context.WithCancel(context.Background())
	return &CancelToken{ctx: ctx, cancel: cancel}
}

func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
	t.cancel()
}

func (t *CancelToken) Cancelled() bool {
	return t.cancelled.Load()
}

func (t *CancelToken) Context() context.Context {
	return t.ctx
}

// release frees the context once the owning job has finished.
func (t *CancelToken) release() {
	t.cancel()
}
