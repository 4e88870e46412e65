// Package scene fuses the time axis, animation clock, data fetcher and
// layer composer into a single coherent picture.
//
// All scene state mutation happens on one event-loop goroutine. Commands,
// fetch completions, clock ticks and axis changes are all delivered to it
// as channel messages, so there are no concurrent writers and no locks
// around the scene state itself. Fetches run in their own goroutines and
// report back tagged with a generation number; a completion whose
// generation has been superseded by a newer fetch for the same slot is
// discarded, never applied (last fetch wins per key lineage, not per
// completion order).
package scene

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/go-outbreak-globe/internal/animation"
	"github.com/mr1hm/go-outbreak-globe/internal/compose"
	"github.com/mr1hm/go-outbreak-globe/internal/fetch"
	"github.com/mr1hm/go-outbreak-globe/internal/interact"
	"github.com/mr1hm/go-outbreak-globe/internal/models"
	"github.com/mr1hm/go-outbreak-globe/internal/timeaxis"
	"github.com/mr1hm/go-outbreak-globe/internal/waves"
)

// Config holds engine tuning.
type Config struct {
	FPS              int
	MinPax           int // minimum passenger volume for flight arcs
	SpreadWindowDays int // lookback for spread arcs and detections
	PrefetchRadius   int // neighbor days warmed after a scrub
}

func DefaultConfig() Config {
	return Config{
		FPS:              30,
		MinPax:           500,
		SpreadWindowDays: 60,
		PrefetchRadius:   3,
	}
}

// Frame is one composed picture of the whole scene.
type Frame struct {
	Seq         uint64            `json:"seq"`
	Axis        timeaxis.Snapshot `json:"axis"`
	Layers      []compose.Layer   `json:"layers"`
	Waves       []waves.Segment   `json:"waves,omitempty"`
	Interaction interact.State    `json:"interaction"`
	Loading     bool              `json:"loading"`
	LayerErrors map[string]string `json:"layer_errors,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// resource slots tracked by the supersession generations.
const (
	slotLocations  = "locations"
	slotArcs       = "arcs"
	slotDetections = "detections"
	slotWaves      = "waves"
)

type fetchResult struct {
	slot  string
	gen   uint64
	err   error
	apply func(st *sceneState)
}

// sceneState is owned exclusively by the event-loop goroutine.
type sceneState struct {
	locations  []models.LocationSnapshot
	flightArcs []models.Arc
	spreadArcs []models.Arc
	detections []models.DetectionMarker
	waveSegs   []waves.Segment

	mode      models.ArcMode
	variantID string
	watchlist map[string]bool

	gen         map[string]uint64
	settled     map[string]bool // slots whose initial fetch has resolved
	layerErrors map[string]string
	layers      []compose.Layer
}

// Engine drives the scene event loop.
type Engine struct {
	cfg      Config
	ctrl     *timeaxis.Controller
	clock    *animation.Clock
	svc      *fetch.Service
	prefetch *fetch.PrefetchPool
	router   *interact.Router
	bcast    *Broadcaster

	commands chan func(*loop)
	results  chan fetchResult

	mu     sync.Mutex
	latest Frame
	seq    uint64

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// loop bundles the run context with the loop-owned state so posted commands
// can trigger fetches.
type loop struct {
	e   *Engine
	ctx context.Context
	st  *sceneState
}

func NewEngine(cfg Config, ctrl *timeaxis.Controller, svc *fetch.Service, prefetch *fetch.PrefetchPool) *Engine {
	e := &Engine{
		cfg:      cfg,
		ctrl:     ctrl,
		clock:    animation.NewClock(),
		svc:      svc,
		prefetch: prefetch,
		bcast:    NewBroadcaster(),
		commands: make(chan func(*loop), 32),
		results:  make(chan fetchResult, 16),
	}
	e.router = interact.NewRouter(e.onSelectLocation)
	return e
}

// Controller exposes the time axis for control endpoints. Its transitions
// are safe to call from any goroutine; the loop observes them via Changes.
func (e *Engine) Controller() *timeaxis.Controller {
	return e.ctrl
}

// Broadcaster exposes frame subscription for the stream handlers.
func (e *Engine) Broadcaster() *Broadcaster {
	return e.bcast
}

// Start launches the event loop, the animation clock and the prefetch pool.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.running = true
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	e.clock.Start(runCtx, e.cfg.FPS)
	if e.prefetch != nil {
		e.prefetch.Start(runCtx)
	}

	e.wg.Add(1)
	go e.run(runCtx)
	return nil
}

// Stop shuts the loop down and waits for every in-flight fetch goroutine.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.cancel()
	e.ctrl.Close()
	e.clock.Stop()
	// The loop must be fully drained before the prefetch queue closes, or a
	// late scrub could submit into a closed channel.
	e.wg.Wait()
	if e.prefetch != nil {
		e.prefetch.Stop()
	}
	e.bcast.Close()
	slog.Info("scene engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	l := &loop{
		e:   e,
		ctx: ctx,
		st: &sceneState{
			mode:        models.ArcModeFlights,
			watchlist:   make(map[string]bool),
			gen:         make(map[string]uint64),
			settled:     make(map[string]bool),
			layerErrors: make(map[string]string),
		},
	}

	l.kickAll()
	l.recompose()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.clock.Ticks():
			// Animation-driven recompose is limited to frames that
			// actually contain a pulse-dependent layer.
			if l.pulseSensitive() {
				l.recompose()
			}
		case <-e.ctrl.Changes():
			l.kickDated()
			l.schedulePrefetch()
			l.recompose()
		case res := <-e.results:
			if res.gen != l.st.gen[res.slot] {
				continue // superseded by a newer fetch for this slot
			}
			l.st.settled[res.slot] = true
			if res.err != nil {
				l.st.layerErrors[res.slot] = res.err.Error()
			} else {
				delete(l.st.layerErrors, res.slot)
			}
			res.apply(l.st)
			l.recompose()
		case cmd := <-e.commands:
			cmd(l)
		}
	}
}

// post hands a command to the loop; drops it if the engine is stopping.
func (e *Engine) post(cmd func(*loop)) {
	select {
	case e.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command")
	}
}

// dispatch launches fn off-loop and delivers its completion tagged with the
// slot's current generation.
func (l *loop) dispatch(slot string, apply func(st *sceneState), run func(ctx context.Context) error) {
	l.st.gen[slot]++
	gen := l.st.gen[slot]
	ctx := l.ctx
	e := l.e

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := run(ctx)
		select {
		case e.results <- fetchResult{slot: slot, gen: gen, err: err, apply: apply}:
		case <-ctx.Done():
		}
	}()
}

func (l *loop) kickAll() {
	l.kickLocations()
	l.kickDated()
}

func (l *loop) kickLocations() {
	var locs []models.LocationSnapshot
	l.dispatch(slotLocations,
		func(st *sceneState) { st.locations = locs },
		func(ctx context.Context) error {
			var err error
			locs, err = l.e.svc.Locations(ctx)
			return err
		})
}

// kickDated refetches every resource keyed by the current date, mode and
// variant. Completions for older keys are discarded by the generation check.
func (l *loop) kickDated() {
	st := l.st
	date := l.e.ctrl.CurrentDate()

	if st.mode == models.ArcModeSpread && st.variantID != "" {
		variant := st.variantID
		days := l.e.cfg.SpreadWindowDays

		var arcs []models.Arc
		l.dispatch(slotArcs,
			func(st *sceneState) { st.spreadArcs = arcs },
			func(ctx context.Context) error {
				var err error
				arcs, err = l.e.svc.SpreadArcs(ctx, variant, days)
				return err
			})

		var markers []models.DetectionMarker
		l.dispatch(slotDetections,
			func(st *sceneState) { st.detections = markers },
			func(ctx context.Context) error {
				var err error
				markers, err = l.e.svc.Detections(ctx, variant, days)
				return err
			})
		return
	}

	minPax := l.e.cfg.MinPax
	var arcs []models.Arc
	l.dispatch(slotArcs,
		func(st *sceneState) { st.flightArcs = arcs },
		func(ctx context.Context) error {
			var err error
			arcs, err = l.e.svc.FlightArcs(ctx, date, minPax)
			return err
		})
}

func (l *loop) kickWaves(locationID string) {
	axis := l.e.ctrl.Snapshot()
	days := axis.TotalDays
	windowStart := axis.MinDate

	var segs []waves.Segment
	l.dispatch(slotWaves,
		func(st *sceneState) { st.waveSegs = segs },
		func(ctx context.Context) error {
			raw, err := l.e.svc.Waves(ctx, locationID, days)
			if err != nil {
				return err
			}
			segs = waves.Layout(raw, windowStart, days, time.Now().UTC())
			return nil
		})
}

func (l *loop) schedulePrefetch() {
	if l.e.prefetch == nil || l.st.mode != models.ArcModeFlights {
		return
	}
	date := l.e.ctrl.CurrentDate()
	for off := -l.e.cfg.PrefetchRadius; off <= l.e.cfg.PrefetchRadius; off++ {
		if off == 0 {
			continue
		}
		l.e.prefetch.Submit(fetch.PrefetchJob{
			Date:   date.AddDate(0, 0, off),
			Mode:   models.ArcModeFlights,
			MinPax: l.e.cfg.MinPax,
		})
	}
}

// pulseSensitive reports whether the last composed frame contains a layer
// that declared the pulse dependency.
func (l *loop) pulseSensitive() bool {
	for _, layer := range l.st.layers {
		if layer.DependsOn(compose.DepPulse) {
			return true
		}
	}
	return false
}

func (l *loop) recompose() {
	st := l.st
	st.layers = compose.Compose(compose.Input{
		Locations:  st.locations,
		FlightArcs: st.flightArcs,
		SpreadArcs: st.spreadArcs,
		Detections: st.detections,
		Mode:       st.mode,
		Pulse:      l.e.clock.PulseValue(),
		Watchlist:  st.watchlist,
	})

	loading := !st.settled[slotLocations] || !st.settled[slotArcs]

	errs := make(map[string]string, len(st.layerErrors))
	for k, v := range st.layerErrors {
		errs[k] = v
	}

	e := l.e
	e.mu.Lock()
	e.seq++
	frame := Frame{
		Seq:         e.seq,
		Axis:        e.ctrl.Snapshot(),
		Layers:      st.layers,
		Waves:       st.waveSegs,
		Interaction: e.router.State(),
		Loading:     loading,
		LayerErrors: errs,
		GeneratedAt: time.Now().UTC(),
	}
	e.latest = frame
	e.mu.Unlock()

	e.bcast.Publish(frame)
}

// Variants proxies the variant catalog through the fetch cache so the UI
// selector never hammers upstream.
func (e *Engine) Variants(ctx context.Context) ([]models.VariantInfo, error) {
	return e.svc.Variants(ctx)
}

// Frame returns the most recently composed frame.
func (e *Engine) Frame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// SetMode switches between flight arcs and variant-spread arcs. Exactly one
// family is ever active.
func (e *Engine) SetMode(mode models.ArcMode, variantID string) {
	e.post(func(l *loop) {
		l.st.mode = mode
		l.st.variantID = variantID
		delete(l.st.settled, slotArcs)
		delete(l.st.settled, slotDetections)
		l.kickDated()
		l.recompose()
	})
}

// SetWatchlist replaces the watchlisted location set.
func (e *Engine) SetWatchlist(ids []string) {
	e.post(func(l *loop) {
		wl := make(map[string]bool, len(ids))
		for _, id := range ids {
			wl[id] = true
		}
		l.st.watchlist = wl
		l.recompose()
	})
}

// Interact resolves an object id against the current scene data and routes
// the event. Unresolvable ids route as misses.
func (e *Engine) Interact(kind interact.Kind, layerID compose.LayerID, objectID string) {
	e.post(func(l *loop) {
		ev := interact.Event{
			Kind:    kind,
			LayerID: layerID,
			Object:  l.resolve(layerID, objectID),
		}
		if e.router.Handle(ev) {
			l.recompose()
		}
	})
}

func (l *loop) resolve(layerID compose.LayerID, objectID string) any {
	if objectID == "" {
		return nil
	}
	st := l.st
	switch layerID {
	case compose.LayerLocations:
		for _, loc := range st.locations {
			if loc.ID == objectID {
				return loc
			}
		}
	case compose.LayerFlightArcs:
		for _, a := range st.flightArcs {
			if a.ID == objectID {
				return a
			}
		}
	case compose.LayerSpreadArcs:
		for _, a := range st.spreadArcs {
			if a.ID == objectID {
				return a
			}
		}
	case compose.LayerDetections:
		for _, d := range st.detections {
			if d.LocationID == objectID {
				return d
			}
		}
	}
	return nil
}

// onSelectLocation runs on the loop goroutine via Interact; selecting a
// location pulls its variant waves into the timeline.
func (e *Engine) onSelectLocation(locationID string) {
	e.post(func(l *loop) {
		l.kickWaves(locationID)
	})
}
