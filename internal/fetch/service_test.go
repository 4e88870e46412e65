package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-outbreak-globe/internal/models"
)

func TestMain(m *testing.M) {
	// Transport keep-alive goroutines linger briefly after server close.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// upstreamStub serves the data service endpoints with canned payloads and
// counts requests per path.
type upstreamStub struct {
	mu       sync.Mutex
	requests map[string]int
}

func newUpstreamStub() *upstreamStub {
	return &upstreamStub{requests: make(map[string]int)}
}

func (u *upstreamStub) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests[path]
}

func (u *upstreamStub) handler() http.Handler {
	mux := http.NewServeMux()

	record := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			u.mu.Lock()
			u.requests[r.URL.Path]++
			u.mu.Unlock()
			next(w, r)
		}
	}

	mux.HandleFunc("/api/locations", record(func(w http.ResponseWriter, r *http.Request) {
		score := 82.0
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "tyo", "name": "Tokyo", "lat": 35.68, "lon": 139.69, "risk_score": score, "granularity_tier": 1},
				{"id": "jp", "name": "Japan", "lat": 36.2, "lon": 138.25, "risk_score": nil, "granularity_tier": 3},
			},
			"total": 2,
		})
	}))

	mux.HandleFunc("/api/flights/arcs", record(func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if _, err := time.Parse("2006-01-02", date); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid date"})
			return
		}
		minPax, _ := strconv.Atoi(r.URL.Query().Get("min_pax"))
		all := []map[string]any{
			{"id": "a1", "origin": map[string]float64{"lat": 35.68, "lon": 139.69}, "destination": map[string]float64{"lat": 37.57, "lon": 126.98}, "pax_estimate": 820.0, "is_active": true},
			{"id": "a2", "origin": map[string]float64{"lat": 35.68, "lon": 139.69}, "destination": map[string]float64{"lat": 1.35, "lon": 103.99}, "pax_estimate": 310.0, "is_active": true},
		}
		arcs := make([]map[string]any, 0, len(all))
		for _, a := range all {
			if a["pax_estimate"].(float64) >= float64(minPax) {
				arcs = append(arcs, a)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"arcs": arcs, "total": len(arcs), "date": date})
	}))

	mux.HandleFunc("/api/variants/spread-arcs/", record(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"arcs": []map[string]any{
				{"id": "s1", "origin": map[string]float64{"lat": -26.2, "lon": 28.04}, "destination": map[string]float64{"lat": 51.47, "lon": -0.45}, "volume": 1200.0, "is_active": true, "days_since_origin_detection": 4},
			},
		})
	}))

	mux.HandleFunc("/api/variants/first-detections/", record(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"markers": []map[string]any{
				{"location_id": "lhr", "lat": 51.47, "lon": -0.45, "detection_type": "traveler", "confidence": 0.93},
			},
		})
	}))

	mux.HandleFunc("/api/variants/list", record(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"variants": []map[string]any{
				{"id": "ba.2.86", "display_name": "BA.2.86", "is_active": true},
			},
		})
	}))

	mux.HandleFunc("/api/history/variant-waves", record(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"waves": []map[string]any{
				{"variant_id": "ba.2.86", "start_date": "2025-11-01", "peak_date": "2025-12-05", "end_date": "", "color": "#e04030"},
			},
		})
	}))

	return mux
}

func newTestService(t *testing.T, srv *httptest.Server) *Service {
	t.Helper()
	client := NewClient(srv.URL, 5*time.Second)
	return NewService(client, DefaultTTLs(), 500)
}

func TestService_LocationsDecodesNullScores(t *testing.T) {
	stub := newUpstreamStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	svc := newTestService(t, srv)
	locs, err := svc.Locations(context.Background())
	if err != nil {
		t.Fatalf("Locations failed: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(locs))
	}
	if locs[0].RiskScore == nil || *locs[0].RiskScore != 82 {
		t.Errorf("expected risk score 82, got %v", locs[0].RiskScore)
	}
	if locs[1].RiskScore != nil {
		t.Errorf("expected nil risk score, got %v", *locs[1].RiskScore)
	}
	if locs[1].Tier != models.TierCountry {
		t.Errorf("expected country tier, got %d", locs[1].Tier)
	}
}

func TestService_CacheAvoidsRefetch(t *testing.T) {
	stub := newUpstreamStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	svc := newTestService(t, srv)
	ctx := context.Background()
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if _, err := svc.FlightArcs(ctx, date, 500); err != nil {
			t.Fatalf("FlightArcs failed: %v", err)
		}
	}
	if got := stub.count("/api/flights/arcs"); got != 1 {
		t.Errorf("expected 1 upstream request for repeated key, got %d", got)
	}

	// A different key is a different fetch.
	if _, err := svc.FlightArcs(ctx, date.AddDate(0, 0, 1), 500); err != nil {
		t.Fatalf("FlightArcs failed: %v", err)
	}
	if got := stub.count("/api/flights/arcs"); got != 2 {
		t.Errorf("expected 2 upstream requests after new date, got %d", got)
	}
}

func TestService_ConcurrentRequestsCollapse(t *testing.T) {
	stub := newUpstreamStub()
	var inflight, maxInflight atomic.Int64
	slowWrap := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inflight.Add(1)
		for {
			old := maxInflight.Load()
			if cur <= old || maxInflight.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		stub.handler().ServeHTTP(w, r)
		inflight.Add(-1)
	})
	srv := httptest.NewServer(slowWrap)
	defer srv.Close()

	svc := newTestService(t, srv)
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.FlightArcs(context.Background(), date, 500)
		}()
	}
	wg.Wait()

	if got := stub.count("/api/flights/arcs"); got != 1 {
		t.Errorf("expected concurrent identical keys to collapse to 1 request, got %d", got)
	}
}

func TestService_MinPaxFilterApplied(t *testing.T) {
	stub := newUpstreamStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	svc := newTestService(t, srv)
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	arcs, err := svc.FlightArcs(context.Background(), date, 500)
	if err != nil {
		t.Fatalf("FlightArcs failed: %v", err)
	}
	if len(arcs) != 1 {
		t.Fatalf("expected 1 arc at min_pax=500, got %d", len(arcs))
	}
	if arcs[0].Weight < 500 {
		t.Errorf("arc below threshold leaked through: weight %.0f", arcs[0].Weight)
	}
}

func TestClient_BadRequestIsStructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid date"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.FlightArcs(context.Background(), time.Now(), 0)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.Status)
	}
	if apiErr.Retriable() {
		t.Error("400 must be non-retriable")
	}
}

func TestClient_NetworkFailureIsStatusZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, time.Second)
	_, err := client.Variants(context.Background())
	if err == nil {
		t.Fatal("expected network error")
	}
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != 0 {
		t.Errorf("expected status 0 for network failure, got %d", apiErr.Status)
	}
	if !apiErr.Retriable() {
		t.Error("network failures must be retriable")
	}
}

func TestService_NonRetriableErrorsAreCached(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "date out of bounds"})
	}))
	defer srv.Close()

	svc := newTestService(t, srv)
	date := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		arcs, err := svc.FlightArcs(context.Background(), date, 0)
		if err == nil {
			t.Fatal("expected 400 error")
		}
		if len(arcs) != 0 {
			t.Errorf("expected empty arcs on error, got %d", len(arcs))
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit for repeated 400 key, got %d", hits.Load())
	}
}

func TestService_RetriableErrorsAreNotCached(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "boom"})
	}))
	defer srv.Close()

	svc := newTestService(t, srv)

	for i := 0; i < 3; i++ {
		if _, err := svc.Variants(context.Background()); err == nil {
			t.Fatal("expected 500 error")
		}
	}
	if hits.Load() != 3 {
		t.Errorf("expected every 5xx attempt to hit upstream, got %d", hits.Load())
	}
}

func TestService_WavesParsesOngoingWave(t *testing.T) {
	stub := newUpstreamStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	svc := newTestService(t, srv)
	waves, err := svc.Waves(context.Background(), "global", 180)
	if err != nil {
		t.Fatalf("Waves failed: %v", err)
	}
	if len(waves) != 1 {
		t.Fatalf("expected 1 wave, got %d", len(waves))
	}
	if waves[0].EndDate != nil {
		t.Error("expected ongoing wave to have nil end date")
	}
	if waves[0].StartDate.After(waves[0].PeakDate) {
		t.Error("wave start must not be after peak")
	}
}

func TestPrefetchPool_WarmsCache(t *testing.T) {
	stub := newUpstreamStub()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	svc := newTestService(t, srv)
	pool := NewPrefetchPool(2, 10, svc)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for off := -2; off <= 2; off++ {
		pool.Submit(PrefetchJob{Date: date.AddDate(0, 0, off), Mode: models.ArcModeFlights, MinPax: 500})
	}

	deadline := time.After(3 * time.Second)
	for stub.count("/api/flights/arcs") < 5 {
		select {
		case <-deadline:
			t.Fatalf("prefetch incomplete: %d requests", stub.count("/api/flights/arcs"))
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	pool.Stop()

	// The viewed date now hits cache.
	before := stub.count("/api/flights/arcs")
	if _, err := svc.FlightArcs(context.Background(), date, 500); err != nil {
		t.Fatalf("FlightArcs failed: %v", err)
	}
	if got := stub.count("/api/flights/arcs"); got != before {
		t.Errorf("expected cache hit after prefetch, got %d -> %d requests", before, got)
	}
}

func TestPrefetchPool_SubmitDropsWhenFull(t *testing.T) {
	svc := NewService(NewClient("http://127.0.0.1:0", time.Second), DefaultTTLs(), 500)
	pool := NewPrefetchPool(1, 1, svc) // not started: buffer fills immediately

	if !pool.Submit(PrefetchJob{Mode: models.ArcModeFlights}) {
		t.Fatal("first submit should be accepted")
	}
	if pool.Submit(PrefetchJob{Mode: models.ArcModeFlights}) {
		t.Error("submit on full buffer should drop, not block")
	}
	close(pool.jobs)
}
