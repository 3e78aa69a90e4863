package delivery

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 55.7558, lng1: 37.6173,
			lat2: 55.7558, lng2: 37.6173,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "Red Square to Ostankino (~10km)",
			lat1: 55.7539, lng1: 37.6208,
			lat2: 55.8197, lng2: 37.6117,
			wantKm:    7.3,
			tolerance: 1.0,
		},
		{
			name: "Moscow to Saint Petersburg (~634km)",
			lat1: 55.7558, lng1: 37.6173,
			lat2: 59.9311, lng2: 30.3609,
			wantKm:    634,
			tolerance: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("haversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestNearest_PicksClosest(t *testing.T) {
	order := Coords{Lon: 37.6173, Lat: 55.7558}
	points := []ServicePoint{
		{ID: "ten-km", Latitude: 55.7558, Longitude: 37.7753},   // ~9.9 km east
		{ID: "two-km", Latitude: 55.7384, Longitude: 37.6248},   // ~2 km south
		{ID: "fifty-km", Latitude: 55.3090, Longitude: 37.6173}, // ~50 km south
	}

	got, err := Nearest(order, points)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if got.Point.ID != "two-km" {
		t.Fatalf("Nearest() picked %q, want %q", got.Point.ID, "two-km")
	}
	if math.Abs(got.DistanceKm-2.0) > 0.3 {
		t.Errorf("DistanceKm = %f, want ~2.0", got.DistanceKm)
	}
	if math.Abs(got.DistanceM-got.DistanceKm*1000) > 0.0001 {
		t.Errorf("DistanceM = %f, want %f", got.DistanceM, got.DistanceKm*1000)
	}
	if BandFor(got.DistanceKm) != BandNearby {
		t.Errorf("BandFor(%f) = %v, want BandNearby", got.DistanceKm, BandFor(got.DistanceKm))
	}
}

func TestNearest_Deterministic(t *testing.T) {
	order := Coords{Lon: 37.6, Lat: 55.75}
	points := []ServicePoint{
		{ID: "a", Latitude: 55.76, Longitude: 37.61},
		{ID: "b", Latitude: 55.74, Longitude: 37.59},
		{ID: "c", Latitude: 55.80, Longitude: 37.70},
	}
	first, err := Nearest(order, points)
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Nearest(order, points)
		if err != nil {
			t.Fatalf("Nearest() error = %v", err)
		}
		if again.Point.ID != first.Point.ID || again.DistanceKm != first.DistanceKm {
			t.Fatalf("run %d differs: %v vs %v", i, again, first)
		}
	}
}

func TestNearest_TieResolvesToFirst(t *testing.T) {
	order := Coords{Lon: 37.6, Lat: 55.75}
	same := ServicePoint{Latitude: 55.76, Longitude: 37.61}
	a, b := same, same
	a.ID = "first"
	b.ID = "second"

	got, err := Nearest(order, []ServicePoint{a, b})
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if got.Point.ID != "first" {
		t.Errorf("tie resolved to %q, want %q", got.Point.ID, "first")
	}
}

func TestNearest_Empty(t *testing.T) {
	if _, err := Nearest(Coords{}, nil); err != ErrNoServicePoints {
		t.Fatalf("Nearest() error = %v, want ErrNoServicePoints", err)
	}
}

func TestBandFor_ExhaustiveAndMonotonic(t *testing.T) {
	tests := []struct {
		km   float64
		want Band
	}{
		{0, BandWalkingDistance},
		{0.499, BandWalkingDistance},
		{0.5, BandNearby},
		{2.0, BandNearby},
		{4.999, BandNearby},
		{5.0, BandFar},
		{19.999, BandFar},
		{20.0, BandPickupOnly},
		{1000, BandPickupOnly},
	}
	for _, tt := range tests {
		if got := BandFor(tt.km); got != tt.want {
			t.Errorf("BandFor(%f) = %v, want %v", tt.km, got, tt.want)
		}
	}

	prev := BandFor(0)
	for km := 0.0; km <= 25; km += 0.01 {
		b := BandFor(km)
		if b < prev {
			t.Fatalf("banding not monotonic at %f km: %v after %v", km, b, prev)
		}
		prev = b
	}
}

func TestBandPolicy(t *testing.T) {
	if BandPickupOnly.DeliveryOffered() {
		t.Error("pickup-only band must not offer delivery")
	}
	for _, b := range []Band{BandWalkingDistance, BandNearby, BandFar} {
		if !b.DeliveryOffered() {
			t.Errorf("band %v must offer delivery", b)
		}
	}
	if BandWalkingDistance.Fee() != 0 {
		t.Error("walking distance delivery must be free")
	}
	if BandNearby.Fee() != FeeNearby || BandFar.Fee() != FeeFar {
		t.Error("flat fee tiers mismatch")
	}
}
