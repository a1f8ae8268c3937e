package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geofence/internal/geofence"
	"github.com/joeblew999/plat-geofence/internal/humastar"
	"github.com/joeblew999/plat-geofence/internal/service"
)

// DefaultPageSize is the list page size when none is given.
const DefaultPageSize = 50

var geofenceActions = []humastar.ActionDef{
	{Rel: "edit", Pattern: "/api/v1/geofences/%s", Method: http.MethodPut, Title: "Replace geofence polygon"},
	{Rel: "delete", Pattern: "/api/v1/geofences/%s", Method: http.MethodDelete, Title: "Delete geofence"},
}

// GeofenceBody is a geofence with its state-dependent actions.
type GeofenceBody struct {
	service.Geofence
}

// Actions implements humastar.Actor.
func (b GeofenceBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, geofenceActions)
}

type ListGeofencesInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Number of geofences to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"50" doc:"Maximum number of geofences to return"`
}

type GeofenceOutput struct {
	Status int
	Body   GeofenceBody
}

type PutGeofenceInput struct {
	IDInput
	Body struct {
		Geometry service.Geometry `json:"geometry" doc:"Geofence geometry"`
	}
}

type BatchDeleteInput struct {
	Body struct {
		IDs []string `json:"geofenceIds" minItems:"1" maxItems:"10" doc:"Geofences to delete"`
	}
}

type BatchDeleteBody struct {
	Errors []service.DeleteFailure `json:"errors" doc:"Geofences that could not be deleted"`
}

func (h *APIHandler) ListGeofences(ctx context.Context, input *ListGeofencesInput) (*struct {
	Body humastar.PageBody[service.Geofence]
}, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	items, total := h.svc.Geofences.List(input.Offset, limit)
	return &struct {
		Body humastar.PageBody[service.Geofence]
	}{Body: humastar.NewPage(items, total, input.Offset, limit)}, nil
}

func (h *APIHandler) GetGeofence(ctx context.Context, input *IDInput) (*GeofenceOutput, error) {
	g, ok := h.svc.Geofences.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("geofence not found: " + input.ID)
	}
	return &GeofenceOutput{Status: http.StatusOK, Body: GeofenceBody{g}}, nil
}

func (h *APIHandler) PutGeofence(ctx context.Context, input *PutGeofenceInput) (*GeofenceOutput, error) {
	g, created, err := h.svc.Geofences.Save(input.ID, input.Body.Geometry.Polygon)
	if err != nil {
		return nil, geofenceError(err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.log.Info("geofence saved", "id", g.ID, "created", created)
	return &GeofenceOutput{Status: status, Body: GeofenceBody{g}}, nil
}

func (h *APIHandler) DeleteGeofence(ctx context.Context, input *IDInput) (*struct{}, error) {
	if failures := h.svc.Geofences.Delete(input.ID); len(failures) > 0 {
		return nil, huma.Error404NotFound("geofence not found: " + input.ID)
	}
	h.log.Info("geofence deleted", "id", input.ID)
	return &struct{}{}, nil
}

func (h *APIHandler) BatchDeleteGeofences(ctx context.Context, input *BatchDeleteInput) (*struct{ Body BatchDeleteBody }, error) {
	failures := h.svc.Geofences.Delete(input.Body.IDs...)
	if failures == nil {
		failures = []service.DeleteFailure{}
	}
	return &struct{ Body BatchDeleteBody }{Body: BatchDeleteBody{Errors: failures}}, nil
}

// geofenceError maps validation errors to 400s.
func geofenceError(err error) error {
	var (
		idErr    *geofence.InvalidIDError
		polyErr  *geofence.InvalidPolygonError
		coordErr *geofence.InvalidCoordinateError
	)
	if errors.As(err, &idErr) || errors.As(err, &polyErr) || errors.As(err, &coordErr) {
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error500InternalServerError("saving geofence", err)
}
