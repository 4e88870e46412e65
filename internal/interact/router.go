// Package interact translates pick and hover events from the renderer into
// selection and tooltip state.
package interact

import (
	"fmt"
	"sync"

	"github.com/mr1hm/go-outbreak-globe/internal/compose"
	"github.com/mr1hm/go-outbreak-globe/internal/models"
)

type Kind string

const (
	KindClick Kind = "click"
	KindHover Kind = "hover"
)

// Event is one pick/hover event. Object is the resolved domain record under
// the cursor, or nil for a miss.
type Event struct {
	Kind    Kind
	LayerID compose.LayerID
	Object  any
}

// State is the current interaction state consumed by the UI.
type State struct {
	SelectedLocation string `json:"selected_location,omitempty"`
	HoveredArc       string `json:"hovered_arc,omitempty"`
	Tooltip          string `json:"tooltip,omitempty"`
}

// Router dispatches events by layer. Marker clicks select a location, arc
// hovers drive the tooltip, misses clear hover state.
type Router struct {
	mu       sync.Mutex
	state    State
	onSelect func(locationID string)
}

// NewRouter creates a Router. onSelect is invoked on every location
// selection and may be nil.
func NewRouter(onSelect func(locationID string)) *Router {
	return &Router{onSelect: onSelect}
}

// Handle processes one event and reports whether it changed any state.
// A nil object is a miss: clicks are ignored, hovers clear the tooltip.
func (r *Router) Handle(ev Event) bool {
	if ev.Object == nil {
		if ev.Kind == KindHover {
			return r.clearHover()
		}
		return false
	}

	switch ev.LayerID {
	case compose.LayerLocations, compose.LayerDetections:
		if ev.Kind == KindClick {
			return r.selectLocation(ev)
		}
		return r.setTooltip("", Tooltip(ev.LayerID, ev.Object))
	case compose.LayerFlightArcs, compose.LayerSpreadArcs:
		if ev.Kind != KindHover {
			return false
		}
		arc, ok := ev.Object.(models.Arc)
		if !ok {
			return false
		}
		return r.setTooltip(arc.ID, Tooltip(ev.LayerID, ev.Object))
	default:
		return false
	}
}

func (r *Router) selectLocation(ev Event) bool {
	var id string
	switch obj := ev.Object.(type) {
	case models.LocationSnapshot:
		id = obj.ID
	case models.DetectionMarker:
		id = obj.LocationID
	default:
		return false
	}

	r.mu.Lock()
	r.state.SelectedLocation = id
	r.mu.Unlock()

	if r.onSelect != nil {
		r.onSelect(id)
	}
	return true
}

func (r *Router) setTooltip(arcID, tooltip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.HoveredArc == arcID && r.state.Tooltip == tooltip {
		return false
	}
	r.state.HoveredArc = arcID
	r.state.Tooltip = tooltip
	return true
}

func (r *Router) clearHover() bool {
	return r.setTooltip("", "")
}

// State returns a copy of the current interaction state.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Tooltip formats hover content per layer type. Unknown layers or object
// types yield an empty tooltip.
func Tooltip(layerID compose.LayerID, object any) string {
	switch layerID {
	case compose.LayerLocations:
		loc, ok := object.(models.LocationSnapshot)
		if !ok {
			return ""
		}
		if loc.RiskScore == nil {
			return fmt.Sprintf("%s: no data", loc.Name)
		}
		return fmt.Sprintf("%s: risk %.0f", loc.Name, *loc.RiskScore)
	case compose.LayerFlightArcs:
		arc, ok := object.(models.Arc)
		if !ok {
			return ""
		}
		return fmt.Sprintf("~%.0f passengers/day", arc.Weight)
	case compose.LayerSpreadArcs:
		arc, ok := object.(models.Arc)
		if !ok {
			return ""
		}
		return fmt.Sprintf("spread volume %.0f, first detected %d days ago", arc.Weight, arc.DaysSinceOriginDetection)
	case compose.LayerDetections:
		det, ok := object.(models.DetectionMarker)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%s detection (%.0f%% confidence)", det.Type, det.Confidence*100)
	default:
		return ""
	}
}
