package api

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geofence/internal/humastar"
	"github.com/joeblew999/plat-geofence/internal/service"
)

// EventHandler streams geofence change events via SSE.
type EventHandler struct {
	humastar.Handler
	bus *service.EventBus
	log *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(bus *service.EventBus, log *slog.Logger) *EventHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EventHandler{bus: bus, log: log}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events,
		huma.OperationTags(humastar.StreamTag),
	)
}

// Events sends a "connected" signal, then one signal patch and one
// "geofence-changed" DOM event per mutation until the client goes away.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		if err := sse.Signals(map[string]any{"connected": true}); err != nil {
			return
		}

		done := ctx.Done()
		for {
			select {
			case <-done:
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				err := sse.Signals(map[string]any{
					"lastGeofenceId":     ev.ID,
					"lastGeofenceAction": string(ev.Action),
				})
				if err == nil {
					err = sse.Event("geofence-changed", ev)
				}
				if err != nil {
					h.log.Debug("event stream closed", "error", err)
					return
				}
			}
		}
	}), nil
}
