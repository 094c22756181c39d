package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultDrainTimeout = 2 * time.Minute

// ErrSuperseded is the cancellation cause delivered to an in-flight
// publish when a newer run claims the same target. For the older run
// it is the intended outcome, not a failure.
var ErrSuperseded = errors.New("publish superseded by newer run")

// Gate enforces single-flight, latest-wins publishing per deployment
// target. A run that reaches the publish stage while an older publish
// is still in flight for the same target cancels the older one, waits
// for it to drain, and then proceeds.
type Gate struct {
	logger       *slog.Logger
	drainTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]*flight
}

type flight struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithDrainTimeout bounds how long a new publish waits for a cancelled
// predecessor to drain before giving up.
func WithDrainTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		g.drainTimeout = d
	}
}

// NewGate creates a publish gate.
func NewGate(logger *slog.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		logger:       logger.With("component", "deploy_gate"),
		drainTimeout: defaultDrainTimeout,
		inflight:     make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Begin claims the publish slot for target. Any in-flight publish for
// the same target is cancelled with ErrSuperseded and awaited before
// Begin returns. The returned context governs the new publish and is
// itself cancelled if a yet-newer run claims the slot; the release
// function must be called when the publish finishes, success or not.
func (g *Gate) Begin(ctx context.Context, target string) (context.Context, func(), error) {
	fctx, cancel := context.WithCancelCause(ctx)
	f := &flight{cancel: cancel, done: make(chan struct{})}

	for {
		g.mu.Lock()
		current := g.inflight[target]
		if current == nil {
			g.inflight[target] = f
			g.mu.Unlock()

			release := func() {
				g.mu.Lock()
				if g.inflight[target] == f {
					delete(g.inflight, target)
				}
				g.mu.Unlock()
				cancel(nil)
				close(f.done)
			}
			return fctx, release, nil
		}
		g.mu.Unlock()

		g.logger.Info("cancelling in-flight publish", "target", target)
		current.cancel(ErrSuperseded)

		select {
		case <-current.done:
			// Slot freed; loop and try to claim it. Another run may
			// have raced us, in which case it gets cancelled too:
			// latest wins.
		case <-time.After(g.drainTimeout):
			cancel(nil)
			return nil, nil, fmt.Errorf("timed out after %s waiting for in-flight publish to %q to cancel",
				g.drainTimeout, target)
		case <-ctx.Done():
			cancel(nil)
			return nil, nil, context.Cause(ctx)
		}
	}
}

// Superseded reports whether a publish context was cancelled because a
// newer run claimed the target.
func Superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}
