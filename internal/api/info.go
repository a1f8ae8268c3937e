package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	svc *Services
}

func NewInfoHandler(svc *Services) *InfoHandler {
	return &InfoHandler{svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

// CredentialsInfo describes the credentials in use without exposing secrets.
type CredentialsInfo struct {
	IdentityID    string    `json:"identityId,omitempty" doc:"Identity the credentials belong to"`
	Authenticated bool      `json:"authenticated" doc:"Whether the identity is signed in"`
	Expiration    time.Time `json:"expiration,omitempty" doc:"When the credentials expire"`
	RefreshState  string    `json:"refreshState" doc:"Refresh state: idle, scheduled or refreshing" enum:"idle,scheduled,refreshing"`
}

type InfoBody struct {
	Name        string           `json:"name" doc:"Service name"`
	Version     string           `json:"version" doc:"Service version"`
	Region      string           `json:"region" doc:"Region used to expand style names"`
	Geofences   int              `json:"geofences" doc:"Number of stored geofences"`
	Credentials *CredentialsInfo `json:"credentials,omitempty" doc:"Credentials in use, absent when none are configured"`
	Features    []string         `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	_, total := h.svc.Geofences.List(0, 1)
	body := InfoBody{
		Name:      "plat-geofence",
		Version:   Version,
		Region:    h.svc.Region,
		Geofences: total,
		Features:  []string{"geofences", "rectangle", "circle", "events"},
	}

	if t := h.svc.Transformer; t != nil {
		r := t.Refresher()
		c := r.Current()
		body.Credentials = &CredentialsInfo{
			IdentityID:    c.IdentityID,
			Authenticated: c.Authenticated,
			Expiration:    c.Expiration,
			RefreshState:  r.State().String(),
		}
		body.Features = append(body.Features, "sigv4")
	}

	return &struct{ Body InfoBody }{Body: body}, nil
}
