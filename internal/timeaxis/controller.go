// Package timeaxis owns the scrubbable date window and playback state.
// All transitions are applied atomically under one mutex, so bursts of
// step/jump/scrub calls serialize and the position can never drift from
// the date derived from it.
package timeaxis

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	stepDays = 1
	jumpDays = 7

	// Base auto-advance interval at 1x speed: one day per second.
	baseAdvanceInterval = time.Second
)

// Snapshot is a consistent read of the full axis state.
type Snapshot struct {
	HistoryDays  int       `json:"history_days"`
	ForecastDays int       `json:"forecast_days"`
	TotalDays    int       `json:"total_days"`
	Position     int       `json:"position"`
	Playing      bool      `json:"playing"`
	Speed        int       `json:"speed"`
	CurrentDate  time.Time `json:"current_date"`
	MinDate      time.Time `json:"min_date"`
	MaxDate      time.Time `json:"max_date"`
	InForecast   bool      `json:"in_forecast"`
}

// Controller is the time axis state machine. Position is an integer day
// offset from the history window start and is clamped to [0, totalDays]
// by every transition.
//
// End-of-window policy: auto-advance stops and holds at totalDays. A manual
// Play while holding at the end rewinds to day 0 first.
type Controller struct {
	start        time.Time // history window start, UTC midnight
	historyDays  int
	forecastDays int

	mu       sync.Mutex
	position int
	playing  bool
	speed    int
	cancel   context.CancelFunc

	wg      sync.WaitGroup
	changes chan struct{}
}

// NewController anchors the window at today: the axis spans
// [today - historyDays, today + forecastDays].
func NewController(today time.Time, historyDays, forecastDays int) (*Controller, error) {
	if historyDays <= 0 {
		return nil, fmt.Errorf("historyDays must be positive, got %d", historyDays)
	}
	if forecastDays < 0 {
		return nil, fmt.Errorf("forecastDays must be non-negative, got %d", forecastDays)
	}

	day := today.UTC().Truncate(24 * time.Hour)
	return &Controller{
		start:        day.AddDate(0, 0, -historyDays),
		historyDays:  historyDays,
		forecastDays: forecastDays,
		position:     historyDays, // start at "today"
		speed:        1,
		changes:      make(chan struct{}, 1),
	}, nil
}

func (c *Controller) totalDays() int {
	return c.historyDays + c.forecastDays
}

func clampPosition(pos, total int) int {
	if pos < 0 {
		return 0
	}
	if pos > total {
		return total
	}
	return pos
}

func (c *Controller) shift(days int) {
	c.mu.Lock()
	c.position = clampPosition(c.position+days, c.totalDays())
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) StepBack()    { c.shift(-stepDays) }
func (c *Controller) StepForward() { c.shift(stepDays) }
func (c *Controller) JumpBack()    { c.shift(-jumpDays) }
func (c *Controller) JumpForward() { c.shift(jumpDays) }

// SetByFraction maps a slider percentage in [0,100] to the nearest day.
// Half-day fractions round down, so 50% of a 37-day window lands on day 18
// rather than overshooting past the midpoint.
func (c *Controller) SetByFraction(pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	c.mu.Lock()
	pos := int(math.Ceil(pct/100*float64(c.totalDays()) - 0.5))
	c.position = clampPosition(pos, c.totalDays())
	c.mu.Unlock()
	c.notify()
}

// SetPosition places the axis on an exact day offset, clamped.
func (c *Controller) SetPosition(pos int) {
	c.mu.Lock()
	c.position = clampPosition(pos, c.totalDays())
	c.mu.Unlock()
	c.notify()
}

// SetSpeed switches the auto-advance multiplier. If playback is running the
// timer is restarted at the new rate.
func (c *Controller) SetSpeed(mult int) error {
	if mult != 1 && mult != 2 && mult != 4 {
		return fmt.Errorf("invalid speed multiplier %d, must be 1, 2 or 4", mult)
	}

	c.mu.Lock()
	c.speed = mult
	restart := c.playing
	if restart {
		c.stopPlaybackLocked()
	}
	c.mu.Unlock()

	if restart {
		c.wg.Wait()
		c.Play()
		return nil
	}
	c.notify()
	return nil
}

// TogglePlay flips playback and reports the new state.
func (c *Controller) TogglePlay() bool {
	c.mu.Lock()
	playing := c.playing
	c.mu.Unlock()

	if playing {
		c.Pause()
		return false
	}
	c.Play()
	return true
}

// Play starts the auto-advance timer. Calling Play while already playing is
// a no-op so rapid toggles cannot stack tickers.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return
	}
	if c.position >= c.totalDays() {
		c.position = 0
	}
	c.playing = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	interval := baseAdvanceInterval / time.Duration(c.speed)
	c.wg.Add(1)
	c.mu.Unlock()

	go c.runPlayback(ctx, interval)
	c.notify()
}

// Pause cancels the auto-advance timer and waits for it to exit; no further
// ticks can land after Pause returns.
func (c *Controller) Pause() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.stopPlaybackLocked()
	c.mu.Unlock()

	c.wg.Wait()
	c.notify()
}

func (c *Controller) stopPlaybackLocked() {
	c.playing = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Close stops any running playback timer. The controller remains readable.
func (c *Controller) Close() {
	c.Pause()
}

func (c *Controller) runPlayback(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.advanceOnce() {
				return
			}
		}
	}
}

// advanceOnce moves playback forward one day. Returns true when playback has
// finished: the position reached totalDays and playback auto-stopped there.
func (c *Controller) advanceOnce() bool {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return true
	}

	c.position = clampPosition(c.position+1, c.totalDays())
	finished := c.position >= c.totalDays()
	var cancel context.CancelFunc
	if finished {
		c.playing = false
		cancel = c.cancel
		c.cancel = nil
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.notify()
	return finished
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Changes delivers a coalesced notification after every state transition.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// Snapshot returns a consistent view of the current axis state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.totalDays()
	return Snapshot{
		HistoryDays:  c.historyDays,
		ForecastDays: c.forecastDays,
		TotalDays:    total,
		Position:     c.position,
		Playing:      c.playing,
		Speed:        c.speed,
		CurrentDate:  c.start.AddDate(0, 0, c.position),
		MinDate:      c.start,
		MaxDate:      c.start.AddDate(0, 0, total),
		InForecast:   c.position > c.historyDays,
	}
}

// CurrentDate is the date at the current position.
func (c *Controller) CurrentDate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.AddDate(0, 0, c.position)
}
