// Package compose builds the ordered renderable layer set from the current
// data, encoders and animation phase. Compose is a pure function: it holds
// no state, and every layer declares exactly which upstream values
// invalidate it so the engine can skip non-animated layers on pulse ticks.
package compose

import (
	"github.com/mr1hm/go-outbreak-globe/internal/encoding"
	"github.com/mr1hm/go-outbreak-globe/internal/models"
)

// DepKey names an upstream value whose change invalidates a layer.
type DepKey string

const (
	DepData  DepKey = "data"
	DepMode  DepKey = "mode"
	DepPulse DepKey = "pulse"
)

type LayerID string

const (
	LayerFlightArcs LayerID = "flight-arcs"
	LayerSpreadArcs LayerID = "spread-arcs"
	LayerLocations  LayerID = "locations"
	LayerDetections LayerID = "detections"
)

// ArcRecord is one render-ready arc.
type ArcRecord struct {
	ID     string             `json:"id"`
	Source models.Coordinates `json:"source"`
	Target models.Coordinates `json:"target"`
	Width  float64            `json:"width"`
	Color  encoding.RGBA      `json:"color"`
}

// PointRecord is one render-ready marker.
type PointRecord struct {
	ID          string             `json:"id"`
	Position    models.Coordinates `json:"position"`
	Radius      float64            `json:"radius"`
	Color       encoding.RGBA      `json:"color"`
	Watchlisted bool               `json:"watchlisted,omitempty"`
}

// Layer is one renderable layer. Later layers in the slice render on top,
// which also gives them pick priority.
type Layer struct {
	ID     LayerID       `json:"id"`
	Deps   []DepKey      `json:"deps"`
	Arcs   []ArcRecord   `json:"arcs,omitempty"`
	Points []PointRecord `json:"points,omitempty"`
}

// DependsOn reports whether the layer declared the given dependency.
func (l Layer) DependsOn(key DepKey) bool {
	for _, d := range l.Deps {
		if d == key {
			return true
		}
	}
	return false
}

// Input carries everything Compose reads. The arc mode selects exactly one
// of FlightArcs or SpreadArcs; the other set is ignored entirely.
type Input struct {
	Locations  []models.LocationSnapshot
	FlightArcs []models.Arc
	SpreadArcs []models.Arc
	Detections []models.DetectionMarker
	Mode       models.ArcMode
	Pulse      float64
	Watchlist  map[string]bool
}

// Compose returns the ordered layer set, bottom to top: arcs, then location
// markers, then detection markers. Layers with zero records are omitted so
// the renderer never registers pick handlers on empty data.
func Compose(in Input) []Layer {
	layers := make([]Layer, 0, 3)

	if in.Mode == models.ArcModeSpread {
		if layer := spreadArcLayer(in.SpreadArcs, in.Pulse); layer != nil {
			layers = append(layers, *layer)
		}
	} else {
		if layer := flightArcLayer(in.FlightArcs); layer != nil {
			layers = append(layers, *layer)
		}
	}

	if layer := locationLayer(in.Locations, in.Watchlist, in.Pulse); layer != nil {
		layers = append(layers, *layer)
	}

	if layer := detectionLayer(in.Detections, in.Pulse); layer != nil {
		layers = append(layers, *layer)
	}

	return layers
}

func flightArcLayer(arcs []models.Arc) *Layer {
	if len(arcs) == 0 {
		return nil
	}

	records := make([]ArcRecord, 0, len(arcs))
	for _, a := range arcs {
		records = append(records, ArcRecord{
			ID:     a.ID,
			Source: a.Origin,
			Target: a.Destination,
			Width:  encoding.ArcWidth(a.Weight),
			Color:  encoding.RiskColor(a.OriginRisk),
		})
	}

	// Flight arcs do not pulse; they recompose only on data or mode change.
	return &Layer{
		ID:   LayerFlightArcs,
		Deps: []DepKey{DepData, DepMode},
		Arcs: records,
	}
}

func spreadArcLayer(arcs []models.Arc, pulse float64) *Layer {
	if len(arcs) == 0 {
		return nil
	}

	records := make([]ArcRecord, 0, len(arcs))
	for _, a := range arcs {
		width := encoding.ArcWidth(a.Weight)
		if a.IsActive {
			width = encoding.PulsingWidth(width, pulse, true)
		}
		records = append(records, ArcRecord{
			ID:     a.ID,
			Source: a.Origin,
			Target: a.Destination,
			Width:  width,
			Color:  encoding.TimeBasedColor(a.DaysSinceOriginDetection, 200),
		})
	}

	return &Layer{
		ID:   LayerSpreadArcs,
		Deps: []DepKey{DepData, DepMode, DepPulse},
		Arcs: records,
	}
}

func locationLayer(locations []models.LocationSnapshot, watchlist map[string]bool, pulse float64) *Layer {
	if len(locations) == 0 {
		return nil
	}

	pulsing := false
	records := make([]PointRecord, 0, len(locations))
	for _, loc := range locations {
		radius := encoding.RiskRadius(loc.RiskScore, loc.Tier)
		watched := watchlist[loc.ID]
		if watched {
			radius = encoding.PulsingWidth(radius, pulse, true)
			pulsing = true
		}
		records = append(records, PointRecord{
			ID:          loc.ID,
			Position:    loc.Coordinates,
			Radius:      radius,
			Color:       encoding.RiskColor(loc.RiskScore),
			Watchlisted: watched,
		})
	}

	// The layer only declares the pulse dependency when something on it
	// actually pulses; otherwise every clock tick would recompose it.
	deps := []DepKey{DepData}
	if pulsing {
		deps = append(deps, DepPulse)
	}

	return &Layer{
		ID:     LayerLocations,
		Deps:   deps,
		Points: records,
	}
}

func detectionLayer(detections []models.DetectionMarker, pulse float64) *Layer {
	if len(detections) == 0 {
		return nil
	}

	records := make([]PointRecord, 0, len(detections))
	for _, d := range detections {
		alpha := uint8(120 + d.Confidence*135)
		color := encoding.RGBA{0, 200, 255, alpha}
		if d.Type == models.DetectionLocal {
			color = encoding.RGBA{255, 70, 60, alpha}
		}
		records = append(records, PointRecord{
			ID:       d.LocationID,
			Position: d.Coordinates,
			Radius:   encoding.PulsingWidth(20000, pulse, d.Confidence >= 0.8),
			Color:    color,
		})
	}

	return &Layer{
		ID:     LayerDetections,
		Deps:   []DepKey{DepData, DepPulse},
		Points: records,
	}
}
