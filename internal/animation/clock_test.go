package animation

import (
	"context"
	"math"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPulseAt_Range(t *testing.T) {
	for phase := 0; phase < 360; phase++ {
		p := PulseAt(phase)
		if p < 0 || p > 1 {
			t.Fatalf("phase %d: pulse %.4f out of [0,1]", phase, p)
		}
	}
}

func TestPulseAt_ContinuousAcrossWrap(t *testing.T) {
	// The jump from phase 359 to 0 must be no larger than any other
	// single-step jump.
	maxStep := 0.0
	for phase := 0; phase < 359; phase++ {
		step := math.Abs(PulseAt(phase+1) - PulseAt(phase))
		if step > maxStep {
			maxStep = step
		}
	}
	wrapStep := math.Abs(PulseAt(0) - PulseAt(359))
	if wrapStep > maxStep+1e-9 {
		t.Errorf("wrap step %.5f exceeds max in-cycle step %.5f", wrapStep, maxStep)
	}
}

func TestClock_AdvancesAndWraps(t *testing.T) {
	c := NewClock()
	for i := 0; i < 360; i++ {
		c.advance()
	}
	if got := c.Phase(); got != 0 {
		t.Errorf("expected phase 0 after 360 advances, got %d", got)
	}
	c.advance()
	if got := c.Phase(); got != 1 {
		t.Errorf("expected phase 1, got %d", got)
	}
}

func TestClock_StartStop(t *testing.T) {
	c := NewClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx, 100)

	select {
	case <-c.Ticks():
	case <-time.After(time.Second):
		t.Fatal("no tick received within 1s at 100fps")
	}

	c.Stop()
	if c.Phase() < 1 {
		t.Errorf("expected phase to have advanced, got %d", c.Phase())
	}
}

func TestClock_DoubleStartDoesNotStackTickers(t *testing.T) {
	c := NewClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx, 50)
	c.Start(ctx, 50) // no-op
	c.Stop()

	// goleak verifies no second goroutine survived Stop.
}

func TestClock_StopBeforeStart(t *testing.T) {
	c := NewClock()
	c.Stop() // must not panic
}

func TestClock_StopsOnContextCancel(t *testing.T) {
	c := NewClock()
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx, 50)
	cancel()

	// The run goroutine exits on ctx.Done; Stop then only waits.
	c.Stop()
}
