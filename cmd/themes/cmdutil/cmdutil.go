package cmdutil

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cozy-creator/theme-manager/internal/app"
	"github.com/cozy-creator/theme-manager/internal/config"
)

// tickInterval paces the consumer loop when nothing has been posted.
const tickInterval = 50 * time.Millisecond

// NewApp builds the app from the loaded config.
func NewApp(options ...app.OptionFunc) (*app.App, error) {
	return app.NewApp(config.GetConfig(), options...)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Drive ticks a until done reports true or ctx ends. It wakes early when
// the executor has posted results.
func Drive(ctx context.Context, a *app.App, done func() bool) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		a.Tick()
		if done() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.Executor().Notify():
		case <-ticker.C:
		}
	}
}
