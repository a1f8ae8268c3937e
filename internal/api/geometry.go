package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geofence/internal/geofence"
	"github.com/joeblew999/plat-geofence/internal/metrics"
)

type RectangleInput struct {
	Body struct {
		ID     string          `json:"id,omitempty" doc:"Feature id to set on the result"`
		Bounds geofence.Bounds `json:"bounds" doc:"Viewport bounds the rectangle is inset into"`
	}
}

type CircleInput struct {
	Body struct {
		ID     string          `json:"id,omitempty" doc:"Feature id to set on the result"`
		Center orb.Point       `json:"center" doc:"Circle center as [lon, lat]"`
		Bounds geofence.Bounds `json:"bounds" doc:"Viewport bounds the default radius derives from"`
		Radius *float64        `json:"radius,omitempty" doc:"Radius in kilometers; defaults to an eighth of the bounds diagonal"`
	}
}

type FeatureOutput struct {
	Body *geojson.Feature
}

func (h *APIHandler) DeriveRectangle(ctx context.Context, input *RectangleInput) (*FeatureOutput, error) {
	metrics.GeometriesDerived.WithLabelValues("rectangle").Inc()
	return &FeatureOutput{Body: geofence.RectangleFeature(input.Body.ID, input.Body.Bounds)}, nil
}

func (h *APIHandler) DeriveCircle(ctx context.Context, input *CircleInput) (*FeatureOutput, error) {
	c, err := geofence.CircleFromCenter(input.Body.Center, input.Body.Bounds, input.Body.Radius)
	if err != nil {
		var (
			coordErr  *geofence.InvalidCoordinateError
			radiusErr *geofence.InvalidRadiusError
		)
		if errors.As(err, &coordErr) || errors.As(err, &radiusErr) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("deriving circle", err)
	}
	metrics.GeometriesDerived.WithLabelValues("circle").Inc()
	return &FeatureOutput{Body: c.Feature(input.Body.ID)}, nil
}
