package interact

import (
	"strings"
	"testing"

	"github.com/mr1hm/go-outbreak-globe/internal/compose"
	"github.com/mr1hm/go-outbreak-globe/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestRouter_ClickSelectsLocation(t *testing.T) {
	var selected string
	r := NewRouter(func(id string) { selected = id })

	handled := r.Handle(Event{
		Kind:    KindClick,
		LayerID: compose.LayerLocations,
		Object:  models.LocationSnapshot{ID: "tyo", Name: "Tokyo"},
	})
	if !handled {
		t.Fatal("expected click on location to be handled")
	}
	if selected != "tyo" {
		t.Errorf("expected onSelect with tyo, got %q", selected)
	}
	if got := r.State().SelectedLocation; got != "tyo" {
		t.Errorf("expected selected location tyo, got %q", got)
	}
}

func TestRouter_DetectionClickSelectsItsLocation(t *testing.T) {
	r := NewRouter(nil)
	r.Handle(Event{
		Kind:    KindClick,
		LayerID: compose.LayerDetections,
		Object:  models.DetectionMarker{LocationID: "lhr"},
	})
	if got := r.State().SelectedLocation; got != "lhr" {
		t.Errorf("expected lhr, got %q", got)
	}
}

func TestRouter_ArcHoverSetsTooltip(t *testing.T) {
	r := NewRouter(nil)

	handled := r.Handle(Event{
		Kind:    KindHover,
		LayerID: compose.LayerFlightArcs,
		Object:  models.Arc{ID: "a1", Weight: 820},
	})
	if !handled {
		t.Fatal("expected arc hover to be handled")
	}
	state := r.State()
	if state.HoveredArc != "a1" {
		t.Errorf("expected hovered arc a1, got %q", state.HoveredArc)
	}
	if !strings.Contains(state.Tooltip, "820") {
		t.Errorf("expected passenger volume in tooltip, got %q", state.Tooltip)
	}
}

func TestRouter_MissIsNoopForClicks(t *testing.T) {
	r := NewRouter(func(string) { t.Error("onSelect must not fire on a miss") })
	if r.Handle(Event{Kind: KindClick, LayerID: compose.LayerLocations, Object: nil}) {
		t.Error("click miss should not be handled")
	}
}

func TestRouter_HoverMissClearsTooltip(t *testing.T) {
	r := NewRouter(nil)
	r.Handle(Event{Kind: KindHover, LayerID: compose.LayerSpreadArcs, Object: models.Arc{ID: "s1", Weight: 100}})
	if r.State().HoveredArc == "" {
		t.Fatal("setup: expected hovered arc")
	}

	r.Handle(Event{Kind: KindHover, Object: nil})
	state := r.State()
	if state.HoveredArc != "" || state.Tooltip != "" {
		t.Errorf("hover miss should clear hover state, got %+v", state)
	}
}

func TestTooltip_PerLayerFormatting(t *testing.T) {
	loc := models.LocationSnapshot{Name: "Tokyo", RiskScore: fptr(82)}
	if got := Tooltip(compose.LayerLocations, loc); !strings.Contains(got, "Tokyo") || !strings.Contains(got, "82") {
		t.Errorf("location tooltip missing fields: %q", got)
	}

	noData := models.LocationSnapshot{Name: "Japan"}
	if got := Tooltip(compose.LayerLocations, noData); !strings.Contains(got, "no data") {
		t.Errorf("nil-score tooltip should say no data: %q", got)
	}

	spread := models.Arc{Weight: 1200, DaysSinceOriginDetection: 4}
	if got := Tooltip(compose.LayerSpreadArcs, spread); !strings.Contains(got, "4 days") {
		t.Errorf("spread tooltip missing recency: %q", got)
	}

	det := models.DetectionMarker{Type: models.DetectionTraveler, Confidence: 0.93}
	if got := Tooltip(compose.LayerDetections, det); !strings.Contains(got, "93") {
		t.Errorf("detection tooltip missing confidence: %q", got)
	}

	if got := Tooltip("bogus", loc); got != "" {
		t.Errorf("unknown layer should yield empty tooltip, got %q", got)
	}
	if got := Tooltip(compose.LayerLocations, 42); got != "" {
		t.Errorf("wrong object type should yield empty tooltip, got %q", got)
	}
}
