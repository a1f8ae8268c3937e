package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-geofence/internal/auth"
	"github.com/joeblew999/plat-geofence/internal/geofence"
	"github.com/joeblew999/plat-geofence/internal/logging"
	"github.com/joeblew999/plat-geofence/internal/server"
	"github.com/joeblew999/plat-geofence/internal/signer"
)

// Options defines all CLI flags and env vars for the geofence server.
// Flags: --host, --port, --region, --credentials, --identity-id, --env-ttl, --log-level, --log-format
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_REGION, SERVICE_CREDENTIALS, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8086"`
	Region      string `doc:"Region used to expand map style names" default:"us-west-2"`
	Credentials string `doc:"YAML credentials file, re-read on every refresh; AWS_* env vars are used when empty"`
	IdentityID  string `doc:"Identity id reported for env credentials"`
	EnvTTL      int    `doc:"Seconds env credentials are considered valid before re-reading" default:"3600"`
	LogLevel    string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat   string `doc:"Log format: text or json" default:"text"`
}

// provider picks the credential source, or nil when none is configured.
func provider(opts *Options) auth.Provider {
	if opts.Credentials != "" {
		return auth.NewFileProvider(opts.Credentials)
	}
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		return nil
	}
	return auth.NewEnvProvider(opts.IdentityID, time.Duration(opts.EnvTTL)*time.Second)
}

func newServer(ctx context.Context, opts *Options, log *slog.Logger) (*server.Server, error) {
	p := provider(opts)
	if p == nil {
		log.Warn("no credentials configured, request signing disabled")
	}
	return server.New(ctx, server.Config{
		Host:     opts.Host,
		Port:     strconv.Itoa(opts.Port),
		Region:   opts.Region,
		Provider: p,
		Logger:   log,
	})
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func parseFloats(args []string) []float64 {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			fail("Invalid number %q: %v", a, err)
		}
		out[i] = f
	}
	return out
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("Error marshaling output: %v", err)
	}
	fmt.Println(string(out))
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := logging.Setup(opts.LogLevel, opts.LogFormat)

		var httpServer *http.Server
		var srv *server.Server

		hooks.OnStart(func() {
			var err error
			srv, err = newServer(context.Background(), opts, log)
			if err != nil {
				log.Error("starting server", "error", err)
				os.Exit(1)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			log.Info("plat-geofence API server starting",
				"server", baseURL,
				"region", opts.Region,
				"signing", srv.Transformer() != nil,
				"docs", baseURL+"/docs",
				"openapi", baseURL+"/openapi.json",
			)

			httpServer = &http.Server{Addr: addr, Handler: srv}
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				log.Error("shutdown", "error", err)
			}
			srv.Close()
		})
	})

	cli.Root().Use = "geofence"
	cli.Root().Short = "Geofence geometry and signed map resource requests"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			quiet := logging.New(os.Stderr, "error", opts.LogFormat)
			// The document does not depend on credentials.
			srv, err := server.New(cmd.Context(), server.Config{
				Host:   opts.Host,
				Port:   strconv.Itoa(opts.Port),
				Region: opts.Region,
				Logger: quiet,
			})
			if err != nil {
				fail("Error building server: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fail("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// rect subcommand: rectangle feature inset into bounds
	rectCmd := &cobra.Command{
		Use:   "rect <sw-lon> <sw-lat> <ne-lon> <ne-lat>",
		Short: "Print the rectangle geofence derived from bounds as GeoJSON",
		Args:  cobra.ExactArgs(4),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			v := parseFloats(args)
			id, _ := cmd.Flags().GetString("id")
			b := geofence.Bounds{SouthWest: orb.Point{v[0], v[1]}, NorthEast: orb.Point{v[2], v[3]}}
			printJSON(geofence.RectangleFeature(id, b))
		}),
	}
	rectCmd.Flags().String("id", "", "Feature id")
	cli.Root().AddCommand(rectCmd)

	// circle subcommand: circle feature around a center
	circleCmd := &cobra.Command{
		Use:   "circle <lon> <lat> <sw-lon> <sw-lat> <ne-lon> <ne-lat>",
		Short: "Print the circle geofence around a center as GeoJSON",
		Args:  cobra.ExactArgs(6),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			v := parseFloats(args)
			id, _ := cmd.Flags().GetString("id")
			b := geofence.Bounds{SouthWest: orb.Point{v[2], v[3]}, NorthEast: orb.Point{v[4], v[5]}}

			var radius *float64
			if cmd.Flags().Changed("radius") {
				r, _ := cmd.Flags().GetFloat64("radius")
				radius = &r
			}
			c, err := geofence.CircleFromCenter(orb.Point{v[0], v[1]}, b, radius)
			if err != nil {
				fail("Error: %v", err)
			}
			printJSON(c.Feature(id))
		}),
	}
	circleCmd.Flags().String("id", "", "Feature id")
	circleCmd.Flags().Float64("radius", 0, "Radius in kilometers (default: an eighth of the bounds diagonal)")
	cli.Root().AddCommand(circleCmd)

	// sign subcommand: transform one resource URL
	signCmd := &cobra.Command{
		Use:   "sign <url>",
		Short: "Sign a map resource URL with the configured credentials",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			log := logging.New(os.Stderr, opts.LogLevel, opts.LogFormat)
			p := provider(opts)
			if p == nil {
				fail("No credentials: pass --credentials or set AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY")
			}
			creds, err := p.Credentials(cmd.Context())
			if err != nil {
				fail("Error loading credentials: %v", err)
			}
			tr, err := signer.New(creds, p, signer.Options{Region: opts.Region, Logger: log})
			if err != nil {
				fail("Error: %v", err)
			}
			defer tr.Close()

			resourceType, _ := cmd.Flags().GetString("type")
			desc, err := tr.TransformRequest(args[0], resourceType)
			if err != nil {
				fail("Error: %v", err)
			}
			if desc == nil {
				// Not a service URL; used as is.
				fmt.Println(args[0])
				return
			}
			fmt.Println(desc.URL)
		}),
	}
	signCmd.Flags().StringP("type", "t", "", "Resource type, e.g. Style to expand a map name")
	cli.Root().AddCommand(signCmd)

	cli.Run()
}
