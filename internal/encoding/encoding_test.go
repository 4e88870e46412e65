package encoding

import (
	"testing"

	"github.com/mr1hm/go-outbreak-globe/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestRiskColor_Bands(t *testing.T) {
	if got := RiskColor(nil); got != colorNeutral {
		t.Errorf("nil score: expected neutral, got %v", got)
	}
	if got := RiskColor(fptr(70)); got != colorRed {
		t.Errorf("score 70: expected red, got %v", got)
	}
	if got := RiskColor(fptr(92.5)); got != colorRed {
		t.Errorf("score 92.5: expected red, got %v", got)
	}
	if got := RiskColor(fptr(30)); got != colorAmber {
		t.Errorf("score 30: expected amber, got %v", got)
	}
	if got := RiskColor(fptr(69.99)); got != colorAmber {
		t.Errorf("score 69.99: expected amber, got %v", got)
	}
	if got := RiskColor(fptr(0)); got != colorGreen {
		t.Errorf("score 0: expected green, got %v", got)
	}
	if got := RiskColor(fptr(29.99)); got != colorGreen {
		t.Errorf("score 29.99: expected green, got %v", got)
	}
}

func TestRiskRadius_Monotonic(t *testing.T) {
	for _, tier := range []models.GranularityTier{models.TierCity, models.TierRegion, models.TierCountry} {
		prev := -1.0
		for s := 0.0; s <= 100; s += 0.5 {
			r := RiskRadius(fptr(s), tier)
			if r < prev {
				t.Fatalf("tier %d: radius decreased at score %.1f: %.2f < %.2f", tier, s, r, prev)
			}
			prev = r
		}
	}
}

func TestRiskRadius_NilScoreIsBase(t *testing.T) {
	if got := RiskRadius(nil, models.TierCity); got != 8000 {
		t.Errorf("expected base 8000, got %.1f", got)
	}
	if got := RiskRadius(nil, models.TierRegion); got != 15000 {
		t.Errorf("expected base 15000, got %.1f", got)
	}
	if got := RiskRadius(nil, models.TierCountry); got != 25000 {
		t.Errorf("expected base 25000, got %.1f", got)
	}
}

func TestRiskRadius_ScaleEndpoints(t *testing.T) {
	// score 0 halves the base, score 100 doubles it.
	if got := RiskRadius(fptr(0), models.TierCity); got != 4000 {
		t.Errorf("score 0: expected 4000, got %.1f", got)
	}
	if got := RiskRadius(fptr(100), models.TierCity); got != 16000 {
		t.Errorf("score 100: expected 16000, got %.1f", got)
	}
}

func TestArcWidth_Clamped(t *testing.T) {
	cases := []struct {
		weight float64
		want   float64
	}{
		{0, 1},
		{100, 1},
		{500, 1},
		{1000, 2},
		{4000, 8},
		{1e6, 8},
	}
	for _, tc := range cases {
		if got := ArcWidth(tc.weight); got != tc.want {
			t.Errorf("ArcWidth(%.0f): expected %.1f, got %.1f", tc.weight, tc.want, got)
		}
	}
}

func TestTimeBasedColor_ContinuousAtBandBoundaries(t *testing.T) {
	// The value at each boundary must agree whichever band computes it.
	// Band formulas meet exactly at days 7, 14, 21 and 60; compare the
	// boundary day against the next day and require a small step, which
	// fails if a band introduces a jump.
	const tol = 40 // per-channel step for one day within a 7-day band
	for _, day := range []int{7, 14, 21, 60} {
		a := TimeBasedColor(day, 200)
		b := TimeBasedColor(day+1, 200)
		for i := 0; i < 4; i++ {
			diff := int(a[i]) - int(b[i])
			if diff < 0 {
				diff = -diff
			}
			if diff > tol {
				t.Errorf("discontinuity at day %d channel %d: %d -> %d", day, i, a[i], b[i])
			}
		}
	}
}

func TestTimeBasedColor_BoundaryDay7(t *testing.T) {
	// days=7 is the top of the first band; its value must equal the bottom
	// of the second band (t=0 at day 7).
	got := TimeBasedColor(7, 200)
	want := RGBA{255, 165, 0, 200}
	if got != want {
		t.Errorf("day 7: expected %v, got %v", want, got)
	}
}

func TestTimeBasedColor_NegativeDaysClampToZero(t *testing.T) {
	if TimeBasedColor(-3, 200) != TimeBasedColor(0, 200) {
		t.Error("negative days should clamp to day 0")
	}
}

func TestTimeBasedColor_OldDetectionsDim(t *testing.T) {
	old := TimeBasedColor(61, 200)
	older := TimeBasedColor(365, 200)
	if old != older {
		t.Errorf("past 60 days color should be constant: %v vs %v", old, older)
	}
	if old[3] >= 200 {
		t.Errorf("dim band should reduce alpha, got %d", old[3])
	}
}

func TestPulsingWidth(t *testing.T) {
	if got := PulsingWidth(10, 0, false); got != 10 {
		t.Errorf("pulse 0: expected base width, got %.2f", got)
	}
	if got := PulsingWidth(10, 1, false); got != 12 {
		t.Errorf("pulse 1 normal: expected 12, got %.2f", got)
	}
	if got := PulsingWidth(10, 1, true); got != 14 {
		t.Errorf("pulse 1 high-priority: expected 14, got %.2f", got)
	}
}
