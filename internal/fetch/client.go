// Package fetch retrieves location, arc, detection and wave data from the
// upstream data service and caches it with per-resource staleness windows.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mr1hm/go-outbreak-globe/internal/models"
)

const dateFormat = "2006-01-02"

// APIError is a structured upstream failure. Status 0 means the request
// never reached the server (connectivity failure).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("network error: %s", e.Message)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// Retriable reports whether a later identical request could succeed:
// network failures and server errors are retriable, client errors are not.
func (e *APIError) Retriable() bool {
	return e.Status == 0 || e.Status >= 500
}

// Client performs raw requests against the upstream data service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response body: %w", err)
	}
	return nil
}

type locationItem struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
	RiskScore       *float64 `json:"risk_score"`
	GranularityTier int      `json:"granularity_tier"`
}

type locationsResponse struct {
	Items []locationItem `json:"items"`
	Total int            `json:"total"`
}

// Locations fetches the full location snapshot set.
func (c *Client) Locations(ctx context.Context, pageSize int) ([]models.LocationSnapshot, error) {
	q := url.Values{"page_size": {strconv.Itoa(pageSize)}}
	var resp locationsResponse
	if err := c.getJSON(ctx, "/api/locations", q, &resp); err != nil {
		return nil, err
	}

	locations := make([]models.LocationSnapshot, 0, len(resp.Items))
	for _, it := range resp.Items {
		locations = append(locations, models.LocationSnapshot{
			ID:          it.ID,
			Name:        it.Name,
			Coordinates: models.Coordinates{Latitude: it.Lat, Longitude: it.Lon},
			RiskScore:   it.RiskScore,
			Tier:        models.GranularityTier(it.GranularityTier),
		})
	}
	return locations, nil
}

type coordsPayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type flightArcItem struct {
	ID          string        `json:"id"`
	Origin      coordsPayload `json:"origin"`
	Destination coordsPayload `json:"destination"`
	PaxEstimate float64       `json:"pax_estimate"`
	OriginRisk  *float64      `json:"origin_risk"`
	IsActive    bool          `json:"is_active"`
}

type flightArcsResponse struct {
	Arcs  []flightArcItem `json:"arcs"`
	Total int             `json:"total"`
	Date  string          `json:"date"`
}

// FlightArcs fetches flight arcs for a date, filtered server-side to
// pax_estimate >= minPax.
func (c *Client) FlightArcs(ctx context.Context, date time.Time, minPax int) ([]models.Arc, error) {
	q := url.Values{
		"date":    {date.UTC().Format(dateFormat)},
		"min_pax": {strconv.Itoa(minPax)},
	}
	var resp flightArcsResponse
	if err := c.getJSON(ctx, "/api/flights/arcs", q, &resp); err != nil {
		return nil, err
	}

	arcs := make([]models.Arc, 0, len(resp.Arcs))
	for _, a := range resp.Arcs {
		arcs = append(arcs, models.Arc{
			ID:          a.ID,
			Origin:      models.Coordinates{Latitude: a.Origin.Lat, Longitude: a.Origin.Lon},
			Destination: models.Coordinates{Latitude: a.Destination.Lat, Longitude: a.Destination.Lon},
			Weight:      a.PaxEstimate,
			OriginRisk:  a.OriginRisk,
			IsActive:    a.IsActive,
		})
	}
	return arcs, nil
}

type spreadArcItem struct {
	ID                       string        `json:"id"`
	Origin                   coordsPayload `json:"origin"`
	Destination              coordsPayload `json:"destination"`
	Volume                   float64       `json:"volume"`
	OriginRisk               *float64      `json:"origin_risk"`
	IsActive                 bool          `json:"is_active"`
	DaysSinceOriginDetection int           `json:"days_since_origin_detection"`
}

type spreadArcsResponse struct {
	Arcs []spreadArcItem `json:"arcs"`
}

// SpreadArcs fetches variant transmission arcs for the given lookback window.
func (c *Client) SpreadArcs(ctx context.Context, variantID string, days int) ([]models.Arc, error) {
	q := url.Values{"days": {strconv.Itoa(days)}}
	var resp spreadArcsResponse
	if err := c.getJSON(ctx, "/api/variants/spread-arcs/"+url.PathEscape(variantID), q, &resp); err != nil {
		return nil, err
	}

	arcs := make([]models.Arc, 0, len(resp.Arcs))
	for _, a := range resp.Arcs {
		arcs = append(arcs, models.Arc{
			ID:                       a.ID,
			Origin:                   models.Coordinates{Latitude: a.Origin.Lat, Longitude: a.Origin.Lon},
			Destination:              models.Coordinates{Latitude: a.Destination.Lat, Longitude: a.Destination.Lon},
			Weight:                   a.Volume,
			OriginRisk:               a.OriginRisk,
			IsActive:                 a.IsActive,
			DaysSinceOriginDetection: a.DaysSinceOriginDetection,
		})
	}
	return arcs, nil
}

type detectionItem struct {
	LocationID string  `json:"location_id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Type       string  `json:"detection_type"`
	Confidence float64 `json:"confidence"`
}

type detectionsResponse struct {
	Markers []detectionItem `json:"markers"`
}

// Detections fetches first-detection markers for a variant.
func (c *Client) Detections(ctx context.Context, variantID string, days int) ([]models.DetectionMarker, error) {
	q := url.Values{"days": {strconv.Itoa(days)}}
	var resp detectionsResponse
	if err := c.getJSON(ctx, "/api/variants/first-detections/"+url.PathEscape(variantID), q, &resp); err != nil {
		return nil, err
	}

	markers := make([]models.DetectionMarker, 0, len(resp.Markers))
	for _, m := range resp.Markers {
		markers = append(markers, models.DetectionMarker{
			LocationID:  m.LocationID,
			Coordinates: models.Coordinates{Latitude: m.Lat, Longitude: m.Lon},
			Type:        models.DetectionType(m.Type),
			Confidence:  m.Confidence,
		})
	}
	return markers, nil
}

type variantsResponse struct {
	Variants []models.VariantInfo `json:"variants"`
}

// Variants fetches the variant catalog.
func (c *Client) Variants(ctx context.Context) ([]models.VariantInfo, error) {
	var resp variantsResponse
	if err := c.getJSON(ctx, "/api/variants/list", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Variants, nil
}

type waveItem struct {
	VariantID string `json:"variant_id"`
	StartDate string `json:"start_date"`
	PeakDate  string `json:"peak_date"`
	EndDate   string `json:"end_date"` // empty while ongoing
	Color     string `json:"color"`
}

type wavesResponse struct {
	Waves []waveItem `json:"waves"`
}

// Waves fetches the variant prevalence waves for a location.
func (c *Client) Waves(ctx context.Context, locationID string, days int) ([]models.VariantWave, error) {
	q := url.Values{
		"location_id": {locationID},
		"days":        {strconv.Itoa(days)},
	}
	var resp wavesResponse
	if err := c.getJSON(ctx, "/api/history/variant-waves", q, &resp); err != nil {
		return nil, err
	}

	waves := make([]models.VariantWave, 0, len(resp.Waves))
	for _, w := range resp.Waves {
		start, err := time.Parse(dateFormat, w.StartDate)
		if err != nil {
			return nil, fmt.Errorf("error parsing wave start date %q: %w", w.StartDate, err)
		}
		peak, err := time.Parse(dateFormat, w.PeakDate)
		if err != nil {
			return nil, fmt.Errorf("error parsing wave peak date %q: %w", w.PeakDate, err)
		}
		wave := models.VariantWave{
			VariantID: w.VariantID,
			StartDate: start,
			PeakDate:  peak,
			Color:     w.Color,
		}
		if w.EndDate != "" {
			end, err := time.Parse(dateFormat, w.EndDate)
			if err != nil {
				return nil, fmt.Errorf("error parsing wave end date %q: %w", w.EndDate, err)
			}
			wave.EndDate = &end
		}
		waves = append(waves, wave)
	}
	return waves, nil
}

// AsAPIError unwraps err into an APIError if it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
