// Package encoding maps risk scores, traffic volumes and event recency to
// render colors and sizes. Every function here is pure and total: any input
// produces a usable color or size, so the composer never has to special-case
// missing data.
package encoding

import "github.com/mr1hm/go-outbreak-globe/internal/models"

// RGBA is a render color. Marshals as a JSON array, which is what the
// renderer expects for per-record color accessors.
type RGBA [4]uint8

var (
	colorNeutral = RGBA{128, 128, 128, 160}
	colorRed     = RGBA{220, 45, 35, 210}
	colorAmber   = RGBA{245, 166, 35, 210}
	colorGreen   = RGBA{60, 175, 80, 210}
)

// RiskColor buckets a risk score into hard color bands. A nil score means no
// data for this date and renders neutral gray.
func RiskColor(score *float64) RGBA {
	if score == nil {
		return colorNeutral
	}
	switch {
	case *score >= 70:
		return colorRed
	case *score >= 30:
		return colorAmber
	default:
		return colorGreen
	}
}

// baseRadius is the marker footprint in meters per granularity tier. Tier 1
// (city) is the highest resolution and gets the smallest footprint.
func baseRadius(tier models.GranularityTier) float64 {
	switch tier {
	case models.TierCity:
		return 8000
	case models.TierRegion:
		return 15000
	default:
		return 25000
	}
}

// RiskRadius scales the tier base radius by risk score. Nil score renders the
// unscaled base. Monotonic non-decreasing in score.
func RiskRadius(score *float64, tier models.GranularityTier) float64 {
	base := baseRadius(tier)
	if score == nil {
		return base
	}
	s := clamp(*score, 0, 100)
	return base * (0.5 + (s/100)*1.5)
}

// ArcWidth maps passenger or transmission volume to a stroke width,
// clamped to [1,8].
func ArcWidth(weight float64) float64 {
	return clamp(weight/500, 1, 8)
}

// TimeBasedColor encodes days-since-detection as a cooling color ramp:
// fresh detections are hot red, aging ones pass through orange, yellow and
// cyan, and anything older than 60 days sits at a dim floor. Adjacent bands
// share their boundary color so the ramp is continuous.
func TimeBasedColor(daysSinceDetection int, baseAlpha uint8) RGBA {
	var (
		red    = RGBA{255, 0, 0, baseAlpha}
		orange = RGBA{255, 165, 0, baseAlpha}
		yellow = RGBA{255, 255, 0, baseAlpha}
		cyan   = RGBA{0, 210, 255, baseAlpha}
		dim    = RGBA{0, 210, 255, uint8(float64(baseAlpha) * 0.3)}
	)

	days := daysSinceDetection
	if days < 0 {
		days = 0
	}

	switch {
	case days <= 7:
		return lerpColor(red, orange, float64(days)/7)
	case days <= 14:
		return lerpColor(orange, yellow, float64(days-7)/7)
	case days <= 21:
		return lerpColor(yellow, cyan, float64(days-14)/7)
	case days <= 60:
		return lerpColor(cyan, dim, float64(days-21)/39)
	default:
		return dim
	}
}

// PulsingWidth widens a stroke by the current pulse value. High-priority
// records (watchlisted, active spread) breathe harder.
func PulsingWidth(base, pulseValue float64, highPriority bool) float64 {
	amplitude := 0.2
	if highPriority {
		amplitude = 0.4
	}
	return base * (1 + amplitude*pulseValue)
}

func lerpColor(a, b RGBA, t float64) RGBA {
	t = clamp(t, 0, 1)
	var out RGBA
	for i := 0; i < 4; i++ {
		out[i] = uint8(float64(a[i]) + (float64(b[i])-float64(a[i]))*t + 0.5)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
