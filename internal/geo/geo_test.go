package geo

import (
	"math"
	"testing"
)

func TestHaversine_KnownDistances(t *testing.T) {
	// Madrid -> Barcelona is roughly 505 km.
	madrid := Point{Lat: 40.4168, Lon: -3.7038}
	barcelona := Point{Lat: 41.3874, Lon: 2.1686}
	d := Haversine(madrid, barcelona)
	if d < 500 || d > 510 {
		t.Fatalf("Madrid-Barcelona = %.2f km; want ~505", d)
	}

	// 0.01 degree of latitude is ~1.112 km.
	d = Haversine(Point{0, 0}, Point{0.01, 0})
	if math.Abs(d-1.112) > 0.001 {
		t.Fatalf("0.01deg = %.4f km; want ~1.112", d)
	}

	if Haversine(madrid, madrid) != 0 {
		t.Fatalf("distance to self must be zero")
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	pts := []Point{{40.4, -3.7}, {-33.86, 151.2}, {51.5, -0.12}, {0, 179.99}, {0, -179.99}}
	for _, a := range pts {
		for _, b := range pts {
			if ab, ba := Haversine(a, b), Haversine(b, a); math.Abs(ab-ba) > 1e-9 {
				t.Fatalf("asymmetric: %v->%v=%f, back=%f", a, b, ab, ba)
			}
		}
	}
}

func TestRoundTo(t *testing.T) {
	if got := RoundTo(1.23456, 3); got != 1.235 {
		t.Fatalf("RoundTo = %v; want 1.235", got)
	}
	if got := RoundTo(2, 3); got != 2 {
		t.Fatalf("RoundTo(2) = %v", got)
	}
}

func TestPoint_Valid(t *testing.T) {
	if !(Point{90, 180}).Valid() || (Point{91, 0}).Valid() || (Point{0, -181}).Valid() || (Point{math.NaN(), 0}).Valid() {
		t.Fatalf("Valid() unexpected")
	}
}

func TestBoundAround_ContainsRadius(t *testing.T) {
	center := Point{Lat: 40.4168, Lon: -3.7038}
	box, ok := BoundAround(center, 5)
	if !ok {
		t.Fatalf("expected a usable box")
	}
	if !box.Contains(center) {
		t.Fatalf("box must contain its center")
	}
	// Points exactly 5 km away in each cardinal direction must be inside.
	dLat := 5 / EarthRadiusKm * 180 / math.Pi
	dLon := dLat / math.Cos(center.Lat*math.Pi/180)
	for _, p := range []Point{
		{center.Lat + dLat, center.Lon},
		{center.Lat - dLat, center.Lon},
		{center.Lat, center.Lon + dLon},
		{center.Lat, center.Lon - dLon},
	} {
		if !box.Contains(p) {
			t.Fatalf("box %+v should contain %+v", box, p)
		}
	}
	if box.Contains(Point{center.Lat + 1, center.Lon}) {
		t.Fatalf("box too large")
	}
}

func TestBoundAround_Antimeridian(t *testing.T) {
	if _, ok := BoundAround(Point{Lat: 0, Lon: 179.99}, 5); ok {
		t.Fatalf("box crossing the antimeridian must be rejected")
	}
}

func TestWithin_FiltersAndSorts(t *testing.T) {
	type user struct {
		name string
		p    *Point
	}
	center := Point{0, 0}
	users := []user{
		{"far", &Point{0.1, 0}},    // ~11 km
		{"mid", &Point{0.02, 0}},   // ~2.2 km
		{"near", &Point{0.01, 0}},  // ~1.1 km
		{"nowhere", nil},           // no location
		{"edge", &Point{0.044, 0}}, // ~4.9 km
	}
	hits := Within(center, 5, users, func(u user) (Point, bool) {
		if u.p == nil {
			return Point{}, false
		}
		return *u.p, true
	})
	want := []string{"near", "mid", "edge"}
	if len(hits) != len(want) {
		t.Fatalf("got %d hits; want %d", len(hits), len(want))
	}
	for i, h := range hits {
		if h.Item.name != want[i] {
			t.Fatalf("hit[%d] = %s; want %s", i, h.Item.name, want[i])
		}
		if h.DistanceKm > 5 {
			t.Fatalf("hit beyond radius: %v", h.DistanceKm)
		}
		if i > 0 && hits[i-1].DistanceKm > h.DistanceKm {
			t.Fatalf("hits not sorted")
		}
	}
}
