// Package geofence derives geofence polygons from viewport bounds and circle
// parameters, and validates geofence geometry before it is stored.
//
// Distances follow the haversine model of github.com/paulmach/orb/geo, so all
// derivations are deterministic and need neither a live map nor the network.
package geofence

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

const (
	// CircleSteps is the number of distinct vertices on a derived circle.
	CircleSteps = 64

	// DefaultRadiusDivisor turns the bounds diagonal into a default circle radius.
	DefaultRadiusDivisor = 8
)

// Bounds is a viewport rectangle given by its south-west and north-east corners.
// The corners are used as given: no ordering, wrapping or range check applies.
type Bounds struct {
	SouthWest orb.Point `json:"southWest" doc:"South-west corner as [lon, lat]"`
	NorthEast orb.Point `json:"northEast" doc:"North-east corner as [lon, lat]"`
}

// Diagonal returns the geodesic distance between the corners in kilometers.
func (b Bounds) Diagonal() float64 {
	return geo.DistanceHaversine(b.SouthWest, b.NorthEast) / 1000
}

// RectangleFromBounds returns an axis-aligned rectangle inset inside b.
//
// The corners of the rectangle come from the points one quarter and three
// quarters of the way along the sw→ne line. The single ring runs
// sw, se, ne, nw and closes on sw: the two derived corners are never
// adjacent, so the ring is a simple counter-clockwise rectangle rather than
// one crossing itself. Zero-size bounds collapse to one coordinate repeated
// five times.
func RectangleFromBounds(b Bounds) orb.Polygon {
	if b.SouthWest.Equal(b.NorthEast) {
		p := b.SouthWest
		return orb.Polygon{orb.Ring{p, p, p, p, p}}
	}

	line := orb.LineString{b.SouthWest, b.NorthEast}
	distance := geo.DistanceHaversine(b.SouthWest, b.NorthEast)

	sw, _ := geo.PointAtDistanceAlongLine(line, distance/4)
	ne, _ := geo.PointAtDistanceAlongLine(line, distance*3/4)

	se := orb.Point{ne.Lon(), sw.Lat()}
	nw := orb.Point{sw.Lon(), ne.Lat()}

	return orb.Polygon{orb.Ring{sw, se, ne, nw, sw}}
}

// Circle is a circular geofence approximated by a closed 65 vertex ring.
type Circle struct {
	Center  orb.Point
	Radius  float64 // kilometers
	Polygon orb.Polygon
}

// CircleFromCenter approximates a circle around center.
//
// When radius is nil the radius defaults to an eighth of the bounds diagonal.
// The center must be a valid coordinate; it may lie outside b.
func CircleFromCenter(center orb.Point, b Bounds, radius *float64) (Circle, error) {
	if err := ValidateCoordinate(center); err != nil {
		return Circle{}, err
	}

	r := b.Diagonal() / DefaultRadiusDivisor
	if radius != nil {
		if *radius < 0 || math.IsNaN(*radius) || math.IsInf(*radius, 0) {
			return Circle{}, &InvalidRadiusError{Radius: *radius}
		}
		r = *radius
	}

	ring := make(orb.Ring, 0, CircleSteps+1)
	for i := range CircleSteps {
		bearing := float64(i) * 360 / CircleSteps
		ring = append(ring, geo.PointAtBearingAndDistance(center, bearing, r*1000))
	}
	ring = append(ring, ring[0])

	return Circle{
		Center:  center,
		Radius:  r,
		Polygon: orb.Polygon{ring},
	}, nil
}

// Feature renders the circle as a GeoJSON polygon feature. The center and
// radius are kept in the properties so the circle can be edited later.
func (c Circle) Feature(id string) *geojson.Feature {
	f := geojson.NewFeature(c.Polygon)
	if id != "" {
		f.ID = id
	}
	f.Properties["center"] = c.Center
	f.Properties["radius"] = c.Radius
	return f
}

// RectangleFeature renders a rectangle derived from b as a GeoJSON feature.
func RectangleFeature(id string, b Bounds) *geojson.Feature {
	f := geojson.NewFeature(RectangleFromBounds(b))
	if id != "" {
		f.ID = id
	}
	return f
}
