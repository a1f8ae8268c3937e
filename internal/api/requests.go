package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geofence/internal/signer"
)

type TransformInput struct {
	Body struct {
		URL          string `json:"url" minLength:"1" doc:"Resource URL, or a map name for Style requests" example:"https://maps.geo.us-west-2.amazonaws.com/maps/v0/maps/explore/tiles/1/2/3"`
		ResourceType string `json:"resourceType,omitempty" doc:"Kind of map resource, e.g. Style, Tile, Glyphs" example:"Tile"`
	}
}

type TransformBody struct {
	Signed  bool        `json:"signed" doc:"Whether the request targets the service and was signed"`
	URL     string      `json:"url" doc:"URL to fetch; the input URL when not signed"`
	Headers http.Header `json:"headers,omitempty" doc:"Headers covered by the signature"`
}

type SignOutBody struct {
	Seq  uint64    `json:"seq" doc:"Sequence number of the sign-out event"`
	Time time.Time `json:"time" doc:"When the sign-out was published"`
}

func (h *APIHandler) TransformRequest(ctx context.Context, input *TransformInput) (*struct{ Body TransformBody }, error) {
	if h.svc.Transformer == nil {
		return nil, huma.Error503ServiceUnavailable("no credentials configured")
	}

	desc, err := h.svc.Transformer.TransformRequest(input.Body.URL, input.Body.ResourceType)
	if err != nil {
		var (
			urlErr *signer.MalformedURLError
			cfgErr *signer.ConfigurationError
		)
		if errors.As(err, &urlErr) || errors.As(err, &cfgErr) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		h.log.Error("transform request failed", "url", input.Body.URL, "error", err)
		return nil, huma.Error500InternalServerError("signing request", err)
	}

	if desc == nil {
		return &struct{ Body TransformBody }{Body: TransformBody{URL: input.Body.URL}}, nil
	}
	return &struct{ Body TransformBody }{Body: TransformBody{
		Signed:  true,
		URL:     desc.URL,
		Headers: desc.Headers,
	}}, nil
}

func (h *APIHandler) SignOut(ctx context.Context, input *struct{}) (*struct{ Body SignOutBody }, error) {
	if h.svc.Hub == nil {
		return nil, huma.Error503ServiceUnavailable("no credentials configured")
	}
	ev := h.svc.Hub.SignOut()
	h.log.Info("sign-out published", "seq", ev.Seq)
	return &struct{ Body SignOutBody }{Body: SignOutBody{Seq: ev.Seq, Time: ev.Time}}, nil
}
