package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/facebookgo/clock"

	"github.com/joeblew999/plat-geofence/internal/auth"
	"github.com/joeblew999/plat-geofence/internal/humastar"
	"github.com/joeblew999/plat-geofence/internal/service"
	"github.com/joeblew999/plat-geofence/internal/signer"
)

var square = [][][2]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}

func newTestAPI(t *testing.T, withCreds bool) (humatest.TestAPI, *Services) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mock := clock.NewMock()
	mock.Add(1000 * 24 * time.Hour)

	svc := &Services{
		Geofences: service.NewGeofenceService(service.NewEventBus(), mock),
		Region:    signer.DefaultRegion,
		Logger:    log,
	}
	if withCreds {
		creds := auth.Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
			SessionToken:    "token",
			IdentityID:      "us-west-2:0000",
			Expiration:      mock.Now().Add(time.Hour),
		}
		provider := auth.ProviderFunc(func(ctx context.Context) (auth.Credentials, error) {
			return creds, nil
		})
		svc.Hub = auth.NewHub()
		tr, err := signer.New(creds, provider, signer.Options{
			Region:  svc.Region,
			Clock:   mock,
			Logger:  log,
			SignOut: svc.Hub,
		})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(tr.Close)
		svc.Transformer = tr
	}

	links := humastar.NewLinks()
	cfg := huma.DefaultConfig("plat-geofence API", Version)
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	_, api := humatest.New(t, cfg)
	RegisterRoutes(api, svc)
	links.Build(api)
	return api, svc
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestHealth(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	body := decode[HealthBody](t, resp.Body)
	if body.Status != "ok" || body.Version != Version {
		t.Fatalf("body=%+v", body)
	}
	if !slices.Contains(resp.Header().Values("Link"), `</api/v1/geofences>; rel="geofences"`) {
		t.Fatalf("Link=%q, want geofences entry link", resp.Header().Values("Link"))
	}
}

func TestGeofenceCRUD(t *testing.T) {
	api, svc := newTestAPI(t, false)
	body := map[string]any{"geometry": map[string]any{"polygon": square}}

	resp := api.Put("/api/v1/geofences/home", body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = api.Put("/api/v1/geofences/home", body)
	if resp.Code != http.StatusOK {
		t.Fatalf("update status=%d", resp.Code)
	}

	resp = api.Get("/api/v1/geofences/home")
	if resp.Code != http.StatusOK {
		t.Fatalf("get status=%d", resp.Code)
	}
	links := resp.Header().Values("Link")
	for _, want := range []string{
		`</api/v1/geofences/home>; rel="self"`,
		`</api/v1/geofences/home>; rel="delete"; method="DELETE"; title="Delete geofence"`,
	} {
		if !slices.Contains(links, want) {
			t.Errorf("Link=%q missing %s", links, want)
		}
	}
	g := decode[service.Geofence](t, resp.Body)
	if g.ID != "home" || len(g.Geometry.Polygon[0]) != 5 {
		t.Fatalf("geofence=%+v", g)
	}

	if resp := api.Delete("/api/v1/geofences/home"); resp.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", resp.Code)
	}
	if resp := api.Delete("/api/v1/geofences/home"); resp.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", resp.Code)
	}
	if resp := api.Get("/api/v1/geofences/home"); resp.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d, want 404", resp.Code)
	}
	if _, total := svc.Geofences.List(0, 0); total != 0 {
		t.Fatalf("total=%d, want 0", total)
	}
}

func TestPutGeofenceInvalid(t *testing.T) {
	api, _ := newTestAPI(t, false)

	open := [][][2]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
	resp := api.Put("/api/v1/geofences/home", map[string]any{"geometry": map[string]any{"polygon": open}})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("open ring status=%d, want 400", resp.Code)
	}

	resp = api.Put("/api/v1/geofences/bad%20id", map[string]any{"geometry": map[string]any{"polygon": square}})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d, want 400", resp.Code)
	}
}

func TestListGeofencesPaging(t *testing.T) {
	api, svc := newTestAPI(t, false)
	for _, id := range []string{"a", "b", "c"} {
		resp := api.Put("/api/v1/geofences/"+id, map[string]any{"geometry": map[string]any{"polygon": square}})
		if resp.Code != http.StatusCreated {
			t.Fatalf("create %s status=%d", id, resp.Code)
		}
	}

	resp := api.Get("/api/v1/geofences?offset=1&limit=1")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	page := decode[humastar.PageBody[service.Geofence]](t, resp.Body)
	if page.Total != 3 || len(page.Data) != 1 || page.Data[0].ID != "b" {
		t.Fatalf("page=%+v", page)
	}
	links := resp.Header().Values("Link")
	for _, want := range []string{
		`</api/v1/geofences?offset=0&limit=1>; rel="prev"`,
		`</api/v1/geofences?offset=2&limit=1>; rel="next"`,
	} {
		if !slices.Contains(links, want) {
			t.Errorf("Link=%q missing %s", links, want)
		}
	}

	resp = api.Post("/api/v1/geofences/delete", map[string]any{"geofenceIds": []string{"a", "zzz"}})
	if resp.Code != http.StatusOK {
		t.Fatalf("batch delete status=%d", resp.Code)
	}
	batch := decode[BatchDeleteBody](t, resp.Body)
	if len(batch.Errors) != 1 || batch.Errors[0].ID != "zzz" {
		t.Fatalf("errors=%+v", batch.Errors)
	}
	if _, total := svc.Geofences.List(0, 0); total != 2 {
		t.Fatalf("total=%d, want 2", total)
	}
}

func TestDeriveRectangle(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Post("/api/v1/geometry/rectangle", map[string]any{
		"id":     "viewport",
		"bounds": map[string]any{"southWest": []float64{-10, -10}, "northEast": []float64{10, 10}},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	f := decode[struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Geometry struct {
			Type        string         `json:"type"`
			Coordinates [][][2]float64 `json:"coordinates"`
		} `json:"geometry"`
	}](t, resp.Body)
	if f.Type != "Feature" || f.ID != "viewport" || f.Geometry.Type != "Polygon" {
		t.Fatalf("feature=%+v", f)
	}
	ring := f.Geometry.Coordinates[0]
	if len(ring) != 5 || ring[0] != ring[4] {
		t.Fatalf("ring=%v, want 5 closed positions", ring)
	}
}

func TestDeriveCircle(t *testing.T) {
	api, _ := newTestAPI(t, false)
	bounds := map[string]any{"southWest": []float64{-10, -10}, "northEast": []float64{10, 10}}

	resp := api.Post("/api/v1/geometry/circle", map[string]any{
		"center": []float64{1, 2},
		"bounds": bounds,
		"radius": 5,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	f := decode[struct {
		Geometry struct {
			Coordinates [][][2]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Center [2]float64 `json:"center"`
			Radius float64    `json:"radius"`
		} `json:"properties"`
	}](t, resp.Body)
	if n := len(f.Geometry.Coordinates[0]); n != 65 {
		t.Fatalf("ring has %d positions, want 65", n)
	}
	if f.Properties.Center != [2]float64{1, 2} || f.Properties.Radius != 5 {
		t.Fatalf("properties=%+v", f.Properties)
	}

	resp = api.Post("/api/v1/geometry/circle", map[string]any{
		"center": []float64{-900, 1000},
		"bounds": bounds,
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("invalid center status=%d, want 400", resp.Code)
	}

	resp = api.Post("/api/v1/geometry/circle", map[string]any{
		"center": []float64{1, 2},
		"bounds": bounds,
		"radius": -1,
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("negative radius status=%d, want 400", resp.Code)
	}
}

func TestTransformRequestEndpoint(t *testing.T) {
	api, _ := newTestAPI(t, true)

	resp := api.Post("/api/v1/requests/transform", map[string]any{"url": "https://example.com/tiles/1/2/3"})
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	body := decode[TransformBody](t, resp.Body)
	if body.Signed || body.URL != "https://example.com/tiles/1/2/3" {
		t.Fatalf("untrusted body=%+v", body)
	}

	resp = api.Post("/api/v1/requests/transform", map[string]any{"url": "explore", "resourceType": signer.ResourceTypeStyle})
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	body = decode[TransformBody](t, resp.Body)
	if !body.Signed || !strings.HasPrefix(body.URL, "https://maps.geo.us-west-2.amazonaws.com/maps/v0/maps/explore/style-descriptor?") {
		t.Fatalf("style body=%+v", body)
	}
	if !strings.Contains(body.URL, "X-Amz-Signature=") {
		t.Fatalf("url not signed: %s", body.URL)
	}

	resp = api.Post("/api/v1/requests/transform", map[string]any{"url": "example"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("malformed status=%d, want 400", resp.Code)
	}
}

func TestTransformRequestWithoutCredentials(t *testing.T) {
	api, _ := newTestAPI(t, false)

	resp := api.Post("/api/v1/requests/transform", map[string]any{"url": "https://maps.geo.us-west-2.amazonaws.com/"})
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", resp.Code)
	}
	if resp := api.Post("/api/v1/auth/signout"); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("signout status=%d, want 503", resp.Code)
	}
}

func TestSignOutEndpoint(t *testing.T) {
	api, svc := newTestAPI(t, true)

	resp := api.Post("/api/v1/auth/signout")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	if body := decode[SignOutBody](t, resp.Body); body.Seq != 1 {
		t.Fatalf("seq=%d, want 1", body.Seq)
	}
	if n := svc.Hub.Listeners(); n != 1 {
		t.Fatalf("hub listeners=%d, want the transformer's refresher", n)
	}
}

func TestInfo(t *testing.T) {
	api, _ := newTestAPI(t, true)

	resp := api.Get("/api/v1/info")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "secret") {
		t.Fatal("info leaks the secret key")
	}
	body := decode[InfoBody](t, resp.Body)
	if body.Region != signer.DefaultRegion || body.Credentials == nil {
		t.Fatalf("info=%+v", body)
	}
	if body.Credentials.IdentityID != "us-west-2:0000" || body.Credentials.RefreshState != "scheduled" {
		t.Fatalf("credentials=%+v", body.Credentials)
	}
}
