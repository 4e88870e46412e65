package models

import "time"

type GranularityTier int

const (
	TierCity    GranularityTier = 1
	TierRegion  GranularityTier = 2
	TierCountry GranularityTier = 3
)

type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// LocationSnapshot is one location's state for a given date. Immutable per
// fetch; the fetch layer replaces the whole set when the query key changes.
type LocationSnapshot struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Coordinates Coordinates     `json:"coordinates"`
	RiskScore   *float64        `json:"risk_score"` // nil when no data for this date
	Tier        GranularityTier `json:"granularity_tier"`
}

type VariantInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `json:"is_active"`
}

// VariantWave is one variant's prevalence wave at a location. EndDate is nil
// while the wave is ongoing.
type VariantWave struct {
	VariantID string     `json:"variant_id"`
	StartDate time.Time  `json:"start_date"`
	PeakDate  time.Time  `json:"peak_date"`
	EndDate   *time.Time `json:"end_date"`
	Color     string     `json:"color"`
}
