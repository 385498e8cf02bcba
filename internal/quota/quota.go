// Package quota tracks the remote host API allowance and throttles calls
// before the allowance runs dry.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Status is a point-in-time view of the remote API allowance.
type Status struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// ExhaustedError indicates the allowance is spent and retrying cannot help
// until the reset time.
type ExhaustedError struct {
	Remaining int
	ResetAt   time.Time
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("api quota exhausted (remaining %d, resets %s)", e.Remaining, e.ResetAt.Format(time.RFC3339))
}

// RetryAfter returns how long until the allowance resets.
func (e *ExhaustedError) RetryAfter() time.Duration {
	d := time.Until(e.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// DefaultBuffer is the remaining-call floor below which calls are deferred
// until the reset.
const DefaultBuffer = 100

// maxProactiveSleep bounds how far ahead a reset may be for the guard to
// sleep for it; beyond this the call proceeds and takes its chances.
const maxProactiveSleep = time.Hour

// Guard serializes the check-then-sleep sequence performed before each round
// of remote calls. Without the serialization two concurrent callers could
// both observe low quota and sleep/retry independently.
type Guard struct {
	buffer int
	mu     sync.Mutex
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGuard creates a guard with the given remaining-call buffer; values <= 0
// fall back to DefaultBuffer.
func NewGuard(buffer int) *Guard {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Guard{buffer: buffer, sleep: sleepCtx}
}

// Buffer returns the configured remaining-call floor.
func (g *Guard) Buffer() int { return g.buffer }

// Wait consults the current allowance and, if remaining is at or below the
// buffer with a reset due within the hour, blocks until the reset. The probe
// and any sleep happen under the guard's lock so concurrent callers line up
// behind a single decision. A failed probe is advisory only: the call
// proceeds and the regular retry path deals with any real failure.
func (g *Guard) Wait(ctx context.Context, current func(context.Context) (Status, error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, err := current(ctx)
	if err != nil {
		slog.Warn("Quota probe failed; proceeding without throttle", logfields.Error(err))
		return nil
	}
	if st.Remaining > g.buffer || st.ResetAt.IsZero() {
		return nil
	}

	until := time.Until(st.ResetAt)
	if until <= 0 || until > maxProactiveSleep {
		return nil
	}

	slog.Info("Quota low; sleeping until reset",
		slog.Int("remaining", st.Remaining),
		slog.Int("buffer", g.buffer),
		slog.Duration("sleep", until))
	return g.sleep(ctx, until)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
