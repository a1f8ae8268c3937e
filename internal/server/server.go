package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/facebookgo/clock"

	"github.com/joeblew999/plat-geofence/internal/api"
	"github.com/joeblew999/plat-geofence/internal/auth"
	"github.com/joeblew999/plat-geofence/internal/humastar"
	"github.com/joeblew999/plat-geofence/internal/metrics"
	"github.com/joeblew999/plat-geofence/internal/service"
	"github.com/joeblew999/plat-geofence/internal/signer"
)

// Config holds the server configuration.
type Config struct {
	Host   string
	Port   string
	Region string

	// Provider supplies credentials for request signing. Without one the
	// signing routes answer 503.
	Provider auth.Provider

	Logger *slog.Logger
	Clock  clock.Clock
}

// Server is the geofence HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	services *api.Services
	links    *humastar.Links
	log      *slog.Logger
}

// New creates a new geofence server. When a provider is configured its
// current credentials are fetched once to start the signer; a failure there
// is returned.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	links := humastar.NewLinks()
	humaConfig := huma.DefaultConfig("plat-geofence API", api.Version)
	humaConfig.Info.Description = "Geofence geometry, collection and SigV4 request signing for hosted map resources."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	services := &api.Services{
		Geofences: service.NewGeofenceService(service.NewEventBus(), cfg.Clock),
		Region:    cfg.Region,
		Logger:    cfg.Logger,
	}

	if cfg.Provider != nil {
		initial, err := cfg.Provider.Credentials(ctx)
		if err != nil {
			return nil, fmt.Errorf("initial credentials: %w", err)
		}
		services.Hub = auth.NewHub()
		tr, err := signer.New(initial, cfg.Provider, signer.Options{
			Region:  cfg.Region,
			Clock:   cfg.Clock,
			Logger:  cfg.Logger.With("component", "signer"),
			SignOut: services.Hub,
		})
		if err != nil {
			return nil, err
		}
		services.Transformer = tr
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		services: services,
		links:    links,
		log:      cfg.Logger,
	}

	s.routes()
	links.Build(humaAPI)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI document of the server.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Transformer returns the request signer, or nil without credentials.
func (s *Server) Transformer() *signer.Transformer {
	return s.services.Transformer
}

// Geofences returns the geofence collection.
func (s *Server) Geofences() *service.GeofenceService {
	return s.services.Geofences
}

// Close stops the credential refresh lifecycle.
func (s *Server) Close() error {
	if s.services.Transformer != nil {
		s.services.Transformer.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)

	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	// Reuse the entry point links for the root.
	for _, link := range s.links.For(humastar.EntryPath) {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-geofence",
		"status":  "running",
	})
}
