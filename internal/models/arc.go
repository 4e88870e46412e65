package models

type ArcMode string

const (
	ArcModeFlights ArcMode = "flights"
	ArcModeSpread  ArcMode = "spread"
)

// Arc is a directed great-circle path between two coordinates. Weight is
// passenger volume for flight arcs and transmission volume for spread arcs.
type Arc struct {
	ID          string      `json:"id"`
	Origin      Coordinates `json:"origin"`
	Destination Coordinates `json:"destination"`
	Weight      float64     `json:"weight"`
	OriginRisk  *float64    `json:"origin_risk"`
	IsActive    bool        `json:"is_active"`

	// Spread arcs only: days since first detection at the origin.
	DaysSinceOriginDetection int `json:"days_since_origin_detection,omitempty"`
}

type DetectionType string

const (
	DetectionTraveler DetectionType = "traveler"
	DetectionLocal    DetectionType = "local"
)

// DetectionMarker marks the first detection of a variant at a location.
type DetectionMarker struct {
	LocationID  string        `json:"location_id"`
	Coordinates Coordinates   `json:"coordinates"`
	Type        DetectionType `json:"detection_type"`
	Confidence  float64       `json:"confidence"` // [0,1]
}
