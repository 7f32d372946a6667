// Package geo implements great-circle distance and radius filtering used by
// the nearby-users search.
//
// Distances use the haversine formula on a sphere of radius EarthRadiusKm.
// BoundAround produces a lat/lon box that a database can use as a cheap
// prefilter before the exact distance check runs in memory.
package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// EarthRadiusKm is the mean Earth radius used for all distances.
const EarthRadiusKm = 6371.0

// boxPadding widens the prefilter box so that it never excludes a point the
// haversine check would keep. orb measures on a slightly larger sphere.
const boxPadding = 1.01

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Valid reports whether p lies inside the latitude/longitude domain.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Box is an axis-aligned latitude/longitude range.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether p falls inside the box (edges inclusive).
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// BoundAround returns a box enclosing every point within radiusKm of center.
// ok is false when the box would cross the antimeridian; callers should then
// skip the prefilter and scan everything.
func BoundAround(center Point, radiusKm float64) (Box, bool) {
	bound := orbgeo.NewBoundAroundPoint(orb.Point{center.Lon, center.Lat}, radiusKm*1000*boxPadding)
	if bound.Min.Lon() > bound.Max.Lon() {
		return Box{}, false
	}
	return Box{
		MinLat: bound.Min.Lat(),
		MaxLat: bound.Max.Lat(),
		MinLon: bound.Min.Lon(),
		MaxLon: bound.Max.Lon(),
	}, true
}

// Hit pairs an item with its distance from the search center.
type Hit[T any] struct {
	Item       T
	DistanceKm float64
}

// Within keeps the items whose position lies at most radiusKm from center and
// returns them sorted by ascending distance. Items for which locate returns
// ok=false are skipped. Ties keep their input order.
func Within[T any](center Point, radiusKm float64, items []T, locate func(T) (Point, bool)) []Hit[T] {
	hits := make([]Hit[T], 0, len(items))
	for _, it := range items {
		p, ok := locate(it)
		if !ok {
			continue
		}
		d := Haversine(center, p)
		if d <= radiusKm {
			hits = append(hits, Hit[T]{Item: it, DistanceKm: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].DistanceKm < hits[j].DistanceKm })
	return hits
}
