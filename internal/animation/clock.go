// Package animation provides the fixed-rate clock driving pulsing emphasis.
// The clock runs whether or not playback is active: pulsing is a render
// effect, not a data effect, so pausing the time axis must not freeze it.
package animation

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// pulseFrequency is the number of full pulse cycles per 360 phase steps.
// It must be an integer so the pulse value is continuous across the
// 359 -> 0 phase wrap.
const pulseFrequency = 3

// Clock advances a cyclic phase in [0,360) at a fixed tick rate and derives
// a smooth [0,1] pulse value from it. Safe for concurrent use: the phase is
// read lock-free on every PulseValue call.
type Clock struct {
	phase atomic.Int64
	ticks chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewClock() *Clock {
	return &Clock{
		ticks: make(chan struct{}, 1),
	}
}

// Start begins ticking at the given frames per second. Calling Start while
// already running is a no-op, so toggling callers cannot stack tickers.
func (c *Clock) Start(ctx context.Context, fps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	if fps <= 0 {
		fps = 30
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go c.run(runCtx, time.Second/time.Duration(fps))
}

func (c *Clock) run(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.advance()
		}
	}
}

func (c *Clock) advance() {
	for {
		old := c.phase.Load()
		next := (old + 1) % 360
		if c.phase.CompareAndSwap(old, next) {
			break
		}
	}

	// Coalescing notify: a slow consumer sees at most one pending tick.
	select {
	case c.ticks <- struct{}{}:
	default:
	}
}

// Stop cancels the ticker goroutine and waits for it to exit. Safe to call
// multiple times and before Start.
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
}

// Ticks delivers at most one pending notification per consumer read. Only
// pulse-dependent layers should recompose on these.
func (c *Clock) Ticks() <-chan struct{} {
	return c.ticks
}

// Phase returns the current phase in [0,360).
func (c *Clock) Phase() int {
	return int(c.phase.Load())
}

// PulseValue derives the [0,1] pulse scalar from the current phase. It is
// recomputed on every read rather than cached per tick.
func (c *Clock) PulseValue() float64 {
	return PulseAt(int(c.phase.Load()))
}

// PulseAt computes the pulse value for an arbitrary phase.
func PulseAt(phase int) float64 {
	rad := float64(phase) * pulseFrequency * math.Pi / 180
	return (math.Sin(rad) + 1) / 2
}
