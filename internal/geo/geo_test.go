package geo

import (
	"math"
	"testing"
)

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][4]float64{
		{37.7749, -122.4194, 37.7750, -122.4195},
		{-6.2, 106.816, -6.9175, 107.6191},
		{0, 0, 45, 90},
		{51.5074, -0.1278, 48.8566, 2.3522},
	}
	for _, p := range pairs {
		ab := Distance(p[0], p[1], p[2], p[3])
		ba := Distance(p[2], p[3], p[0], p[1])
		if ab != ba {
			t.Fatalf("distance not symmetric: d(a,b)=%v d(b,a)=%v", ab, ba)
		}
	}
}

func TestDistanceIdentity(t *testing.T) {
	if d := Distance(37.7749, -122.4194, 37.7749, -122.4194); d != 0 {
		t.Fatalf("d(a,a) = %v, want 0", d)
	}
}

func TestDistanceKnownPair(t *testing.T) {
	// One block in San Francisco, ~13.9 m.
	d := Distance(37.7749, -122.4194, 37.7750, -122.4195)
	if math.Abs(d-13.9)/13.9 > 0.01 {
		t.Fatalf("unexpected distance: %v, want ~13.9 m", d)
	}
}

func TestDistanceLongHaul(t *testing.T) {
	// Jakarta to Bandung, roughly 115-120 km.
	d := Distance(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100_000 || d > 140_000 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestBearing(t *testing.T) {
	// Due north along a meridian.
	b := Bearing(0, 0, 1, 0)
	if math.Abs(b) > 0.01 && math.Abs(b-360) > 0.01 {
		t.Fatalf("expected northward bearing, got %v", b)
	}
	// Due east along the equator.
	b = Bearing(0, 0, 0, 1)
	if math.Abs(b-90) > 0.01 {
		t.Fatalf("expected eastward bearing, got %v", b)
	}
}
