// Package animation forwards node animation cues to an external engine that
// becomes ready on its own schedule.
package animation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultInterval    = 100 * time.Millisecond
	DefaultMaxAttempts = 50
)

var (
	// ErrEngineNotReady is returned by engines that haven't finished initializing.
	ErrEngineNotReady = errors.New("animation: engine not ready")
	// ErrDeliveryFailed is matched by every *DeliveryError.
	ErrDeliveryFailed = errors.New("animation: cue delivery failed")
)

// Engine is the external animation capability.
type Engine interface {
	// Initialize binds the engine to a container. Hosts call it, not the bridge.
	Initialize(container string) error
	// PlayAnimation requests a cue. It returns ErrEngineNotReady until the engine is up.
	PlayAnimation(cue string) error
	// Cleanup releases the engine.
	Cleanup()
}

// DeliveryError reports a cue that was never accepted within the retry budget.
type DeliveryError struct {
	NodeID   string
	Cue      string
	Attempts int
	Last     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("animation cue %q for node %s not delivered after %d attempts: %v", e.Cue, e.NodeID, e.Attempts, e.Last)
}

func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}

func (e *DeliveryError) Unwrap() error {
	return e.Last
}

// Config is the retry policy: a fixed interval and a capped attempt count.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// Sanitize fills zero values with defaults.
func (c Config) Sanitize() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Stats counts bridge outcomes.
type Stats struct {
	Delivered int
	Failed    int
	Cancelled int
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger for delivery failures.
func WithLogger(log *zap.Logger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// WithFailureHook is called (from the retry goroutine) when a cue is dropped.
func WithFailureHook(fn func(*DeliveryError)) Option {
	return func(b *Bridge) { b.onFailure = fn }
}

// Bridge delivers at most one cue at a time. Requesting a new cue cancels the
// previous retry chain, and a cancelled chain can never reach the engine.
type Bridge struct {
	engine    Engine
	cfg       Config
	log       *zap.Logger
	onFailure func(*DeliveryError)

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	closed bool
	stats  Stats
	wg     sync.WaitGroup
}

// NewBridge creates a bridge over engine.
func NewBridge(engine Engine, cfg Config, opts ...Option) *Bridge {
	b := &Bridge{
		engine: engine,
		cfg:    cfg.Sanitize(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Cue replaces any pending delivery with cue for nodeID. An empty cue only
// cancels. It never blocks on the engine.
func (b *Bridge) Cue(nodeID, cue string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.cancelLocked()
	if cue == "" || b.engine == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	gen := b.gen

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		b.run(ctx, gen, nodeID, cue)
	}()
}

// Cancel stops any pending delivery. A nil bridge is a no-op.
func (b *Bridge) Cancel() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.cancelLocked()
	b.mu.Unlock()
}

// Close cancels pending work and waits for the retry goroutine to exit.
// The bridge ignores cues afterwards.
func (b *Bridge) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.closed = true
	b.cancelLocked()
	b.mu.Unlock()
	b.wg.Wait()
}

// Stats returns a copy of the outcome counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// cancelLocked invalidates the running chain. Caller holds b.mu.
func (b *Bridge) cancelLocked() {
	b.gen++
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

func (b *Bridge) run(ctx context.Context, gen uint64, nodeID, cue string) {
	limiter := rate.NewLimiter(rate.Every(b.cfg.Interval), 1)

	var last error
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			b.settle(gen, false)
			return
		}

		delivered, current := b.try(gen, cue, &last)
		if !current {
			b.settle(gen, false)
			return
		}
		if delivered {
			b.log.Debug("animation cue delivered",
				zap.String("node", nodeID), zap.String("cue", cue), zap.Int("attempt", attempt))
			return
		}
	}

	derr := &DeliveryError{NodeID: nodeID, Cue: cue, Attempts: b.cfg.MaxAttempts, Last: last}
	if !b.settle(gen, true) {
		return
	}
	b.log.Warn("animation cue dropped", zap.Error(derr))
	if b.onFailure != nil {
		b.onFailure(derr)
	}
}

// try plays the cue only while gen is still the current chain, so a
// superseded chain can't deliver after Cue or Cancel returned.
func (b *Bridge) try(gen uint64, cue string, last *error) (delivered, current bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		return false, false
	}
	if err := b.engine.PlayAnimation(cue); err != nil {
		*last = err
		return false, true
	}
	b.stats.Delivered++
	return true, true
}

// settle records how a chain ended and reports whether it was still current.
// Only a current chain that ran out of attempts counts as a failure.
func (b *Bridge) settle(gen uint64, exhausted bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := gen == b.gen
	if exhausted && current {
		b.stats.Failed++
	} else {
		b.stats.Cancelled++
	}
	return current
}
