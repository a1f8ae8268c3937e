// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geofence/internal/auth"
	"github.com/joeblew999/plat-geofence/internal/service"
	"github.com/joeblew999/plat-geofence/internal/signer"
)

// Version is the API version reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Geofences *service.GeofenceService
	// Transformer is nil when no credentials are configured.
	Transformer *signer.Transformer
	Hub         *auth.Hub
	Region      string
	Logger      *slog.Logger
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Geofence ID" example:"home" minLength:"1" maxLength:"100"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
	log *slog.Logger
}

func NewAPIHandler(svc *Services) *APIHandler {
	log := svc.Logger
	if log == nil {
		log = slog.Default()
	}
	return &APIHandler{svc: svc, log: log}
}

// RegisterRoutes registers every API route.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
	NewInfoHandler(svc).RegisterRoutes(api)
	NewEventHandler(svc.Geofences.Bus(), svc.Logger).RegisterRoutes(api)
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterGeofences registers geofence CRUD routes.
func (h *APIHandler) RegisterGeofences(api huma.API) {
	huma.Get(api, "/api/v1/geofences", h.ListGeofences, huma.OperationTags("geofences"))
	huma.Post(api, "/api/v1/geofences/delete", h.BatchDeleteGeofences, huma.OperationTags("geofences"))
	huma.Get(api, "/api/v1/geofences/{id}", h.GetGeofence, huma.OperationTags("geofences"))
	huma.Put(api, "/api/v1/geofences/{id}", h.PutGeofence, huma.OperationTags("geofences"))
	huma.Delete(api, "/api/v1/geofences/{id}", h.DeleteGeofence, huma.OperationTags("geofences"))
}

// RegisterGeometry registers the shape derivation routes.
func (h *APIHandler) RegisterGeometry(api huma.API) {
	huma.Post(api, "/api/v1/geometry/rectangle", h.DeriveRectangle, huma.OperationTags("geometry"))
	huma.Post(api, "/api/v1/geometry/circle", h.DeriveCircle, huma.OperationTags("geometry"))
}

// RegisterRequests registers the request signing and session routes.
func (h *APIHandler) RegisterRequests(api huma.API) {
	huma.Post(api, "/api/v1/requests/transform", h.TransformRequest, huma.OperationTags("requests"))
	huma.Post(api, "/api/v1/auth/signout", h.SignOut, huma.OperationTags("auth"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}
