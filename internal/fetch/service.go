package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mr1hm/go-outbreak-globe/internal/models"
)

// TTLs holds the per-resource staleness windows. Arc data tolerates a long
// window because flight schedules change slowly.
type TTLs struct {
	Locations  time.Duration
	Arcs       time.Duration
	Detections time.Duration
	Waves      time.Duration
	Variants   time.Duration
}

// DefaultTTLs matches the staleness policy in the design: locations refresh
// every 5 minutes, arcs every 30, variant resources every 15.
func DefaultTTLs() TTLs {
	return TTLs{
		Locations:  5 * time.Minute,
		Arcs:       30 * time.Minute,
		Detections: 15 * time.Minute,
		Waves:      15 * time.Minute,
		Variants:   15 * time.Minute,
	}
}

type cacheEntry struct {
	value     any
	err       error
	fetchedAt time.Time
}

// Service wraps the Client with a staleness-windowed cache and in-flight
// deduplication. Identical query keys share one upstream request; repeated
// scrubs to an already-seen date are served from cache until the resource's
// window expires.
//
// Failed fetches are returned as (zero value, error) so the caller can render
// the layer empty. Non-retriable failures (4xx) are cached for the window to
// avoid hammering upstream with requests that cannot succeed; retriable ones
// (network, 5xx) are not cached.
type Service struct {
	client   *Client
	ttls     TTLs
	pageSize int

	mu      sync.Mutex
	entries map[string]*cacheEntry
	group   singleflight.Group
}

func NewService(client *Client, ttls TTLs, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Service{
		client:   client,
		ttls:     ttls,
		pageSize: pageSize,
		entries:  make(map[string]*cacheEntry),
	}
}

// lookup returns a cached value if it is still within ttl.
func (s *Service) lookup(key string, ttl time.Duration) (*cacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || time.Since(e.fetchedAt) > ttl {
		return nil, false
	}
	return e, true
}

func (s *Service) store(key string, value any, err error) {
	s.mu.Lock()
	s.entries[key] = &cacheEntry{value: value, err: err, fetchedAt: time.Now()}
	s.mu.Unlock()
}

// cached runs fn for key at most once concurrently and caches the outcome
// for ttl. The singleflight group collapses concurrent callers of the same
// key onto one upstream request.
func cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if e, ok := s.lookup(key, ttl); ok {
		if e.err != nil {
			var zero T
			return zero, e.err
		}
		return e.value.(T), nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		val, err := fn(ctx)
		if err != nil {
			if apiErr, ok := AsAPIError(err); ok && !apiErr.Retriable() {
				s.store(key, nil, err)
			}
			slog.Warn("fetch failed", "key", key, "error", err)
			return nil, err
		}
		s.store(key, val, nil)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *Service) Locations(ctx context.Context) ([]models.LocationSnapshot, error) {
	key := fmt.Sprintf("locations|%d", s.pageSize)
	return cached(ctx, s, key, s.ttls.Locations, func(ctx context.Context) ([]models.LocationSnapshot, error) {
		return s.client.Locations(ctx, s.pageSize)
	})
}

func (s *Service) FlightArcs(ctx context.Context, date time.Time, minPax int) ([]models.Arc, error) {
	key := fmt.Sprintf("flight-arcs|%s|%d", date.UTC().Format(dateFormat), minPax)
	return cached(ctx, s, key, s.ttls.Arcs, func(ctx context.Context) ([]models.Arc, error) {
		return s.client.FlightArcs(ctx, date, minPax)
	})
}

func (s *Service) SpreadArcs(ctx context.Context, variantID string, days int) ([]models.Arc, error) {
	key := fmt.Sprintf("spread-arcs|%s|%d", variantID, days)
	return cached(ctx, s, key, s.ttls.Arcs, func(ctx context.Context) ([]models.Arc, error) {
		return s.client.SpreadArcs(ctx, variantID, days)
	})
}

func (s *Service) Detections(ctx context.Context, variantID string, days int) ([]models.DetectionMarker, error) {
	key := fmt.Sprintf("detections|%s|%d", variantID, days)
	return cached(ctx, s, key, s.ttls.Detections, func(ctx context.Context) ([]models.DetectionMarker, error) {
		return s.client.Detections(ctx, variantID, days)
	})
}

func (s *Service) Variants(ctx context.Context) ([]models.VariantInfo, error) {
	return cached(ctx, s, "variants", s.ttls.Variants, func(ctx context.Context) ([]models.VariantInfo, error) {
		return s.client.Variants(ctx)
	})
}

func (s *Service) Waves(ctx context.Context, locationID string, days int) ([]models.VariantWave, error) {
	key := fmt.Sprintf("waves|%s|%d", locationID, days)
	return cached(ctx, s, key, s.ttls.Waves, func(ctx context.Context) ([]models.VariantWave, error) {
		return s.client.Waves(ctx, locationID, days)
	})
}

// Invalidate drops every cached entry.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.entries = make(map[string]*cacheEntry)
	s.mu.Unlock()
}

// CachedKeys reports how many entries are currently held.
func (s *Service) CachedKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
