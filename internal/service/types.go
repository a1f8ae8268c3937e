// Package service contains the geofence collection and its change events.
package service

import (
	"time"

	"github.com/paulmach/orb"
)

// Geofence is a named polygon region.
// Huma reads the tags for OpenAPI and validation.
type Geofence struct {
	ID         string    `json:"geofenceId" doc:"Unique geofence identifier" example:"home"`
	Geometry   Geometry  `json:"geometry" doc:"Geofence geometry"`
	CreateTime time.Time `json:"createTime,omitempty" doc:"When the geofence was first saved"`
	UpdateTime time.Time `json:"updateTime,omitempty" doc:"When the geofence was last saved"`
}

// Geometry holds the polygon of a geofence. The first ring is the outer
// boundary, further rings are holes.
type Geometry struct {
	Polygon orb.Polygon `json:"polygon" doc:"Polygon rings of [lon, lat] positions"`
}

// DeleteFailure describes a geofence that could not be deleted.
type DeleteFailure struct {
	ID     string `json:"geofenceId" doc:"Geofence identifier"`
	Reason string `json:"reason" doc:"Why the delete failed"`
}
