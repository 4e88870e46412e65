// Package waves lays out variant prevalence waves as horizontal segments
// under the time slider.
package waves

import (
	"time"

	"github.com/mr1hm/go-outbreak-globe/internal/models"
)

// minWidthPct keeps near-instantaneous waves visible.
const minWidthPct = 2.0

// Segment is one wave positioned as percentages of the slider width.
type Segment struct {
	VariantID string  `json:"variant_id"`
	StartPos  float64 `json:"start_pos"`
	PeakPos   float64 `json:"peak_pos"`
	EndPos    float64 `json:"end_pos"`
	Width     float64 `json:"width"`
	Lane      int     `json:"lane"`
	Ongoing   bool    `json:"ongoing"`
	Color     string  `json:"color"`
}

// Layout maps waves onto the [windowStart, windowStart+totalDays] axis.
// Ongoing waves (nil end date) extend to now. Positions are clamped to
// [0,100], so waves partially outside the window pin to its edges.
//
// Lanes alternate by index to reduce overlap. This is a heuristic, not an
// interval-graph coloring: three or more waves overlapping the same span
// can still collide visually.
func Layout(waves []models.VariantWave, windowStart time.Time, totalDays int, now time.Time) []Segment {
	if totalDays <= 0 {
		return nil
	}

	segments := make([]Segment, 0, len(waves))
	for i, w := range waves {
		end := now
		ongoing := w.EndDate == nil
		if !ongoing {
			end = *w.EndDate
		}

		seg := Segment{
			VariantID: w.VariantID,
			StartPos:  positionPct(w.StartDate, windowStart, totalDays),
			PeakPos:   positionPct(w.PeakDate, windowStart, totalDays),
			EndPos:    positionPct(end, windowStart, totalDays),
			Lane:      i % 2,
			Ongoing:   ongoing,
			Color:     w.Color,
		}
		seg.Width = seg.EndPos - seg.StartPos
		if seg.Width < minWidthPct {
			seg.Width = minWidthPct
		}
		segments = append(segments, seg)
	}
	return segments
}

func positionPct(date, windowStart time.Time, totalDays int) float64 {
	days := date.Sub(windowStart).Hours() / 24
	pct := days / float64(totalDays) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
