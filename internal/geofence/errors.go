package geofence

import (
	"fmt"

	"github.com/paulmach/orb"
)

// InvalidCoordinateError reports a coordinate outside lon [-180,180] / lat [-90,90]
// or one that is not a finite number.
type InvalidCoordinateError struct {
	Point orb.Point
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate [%v, %v]: longitude must be within [-180, 180] and latitude within [-90, 90]",
		e.Point.Lon(), e.Point.Lat())
}

// InvalidRadiusError reports a circle radius that is negative or not finite.
type InvalidRadiusError struct {
	Radius float64
}

func (e *InvalidRadiusError) Error() string {
	return fmt.Sprintf("invalid radius %v: must be a finite, non-negative number of kilometers", e.Radius)
}

// InvalidPolygonError reports a polygon that cannot be stored as a geofence.
type InvalidPolygonError struct {
	Ring   int
	Reason string
}

func (e *InvalidPolygonError) Error() string {
	return fmt.Sprintf("invalid polygon: ring %d %s", e.Ring, e.Reason)
}

// InvalidIDError reports a geofence id that does not match the allowed pattern.
type InvalidIDError struct {
	ID string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid geofence id %q: use 1-100 letters, digits, '-', '.' or '_'", e.ID)
}
