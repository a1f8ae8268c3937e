package geofence

import (
	"math"
	"regexp"

	"github.com/paulmach/orb"
)

var idPattern = regexp.MustCompile(`^[-._\p{L}\p{N}]{1,100}$`)

// ValidateCoordinate reports whether p is a finite lon/lat pair within range.
func ValidateCoordinate(p orb.Point) error {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return &InvalidCoordinateError{Point: p}
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return &InvalidCoordinateError{Point: p}
	}
	return nil
}

// ValidatePolygon checks that every ring is closed, has at least four
// positions and only holds valid coordinates.
func ValidatePolygon(poly orb.Polygon) error {
	if len(poly) == 0 {
		return &InvalidPolygonError{Ring: 0, Reason: "is missing"}
	}
	for i, ring := range poly {
		if len(ring) < 4 {
			return &InvalidPolygonError{Ring: i, Reason: "needs at least 4 positions"}
		}
		if !ring.Closed() {
			return &InvalidPolygonError{Ring: i, Reason: "is not closed"}
		}
		for _, p := range ring {
			if err := ValidateCoordinate(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateGeofenceID checks a geofence id against the allowed pattern.
func ValidateGeofenceID(id string) error {
	if !idPattern.MatchString(id) {
		return &InvalidIDError{ID: id}
	}
	return nil
}
