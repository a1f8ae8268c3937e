package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-geofence/internal/auth"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProvider() auth.Provider {
	return auth.ProviderFunc(func(ctx context.Context) (auth.Credentials, error) {
		return auth.Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
			IdentityID:      "us-west-2:0000",
			Expiration:      time.Now().Add(time.Hour),
		}, nil
	})
}

func newTestServer(t *testing.T, provider auth.Provider) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(context.Background(), Config{
		Host:     "127.0.0.1",
		Port:     "0",
		Region:   "us-west-2",
		Provider: provider,
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func TestServerRoutes(t *testing.T) {
	_, ts := newTestServer(t, nil)

	for path, want := range map[string]int{
		"/":             http.StatusOK,
		"/health":       http.StatusOK,
		"/openapi.json": http.StatusOK,
		"/metrics":      http.StatusOK,
		"/nope":         http.StatusNotFound,
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("GET %s status=%d, want %d", path, resp.StatusCode, want)
		}
	}

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(resp.Header.Values("Link")) == 0 {
		t.Error("root has no Link headers")
	}
}

func TestServerTransform(t *testing.T) {
	srv, ts := newTestServer(t, testProvider())
	if srv.Transformer() == nil {
		t.Fatal("transformer not configured")
	}

	body, _ := json.Marshal(map[string]string{"url": "https://maps.geo.us-west-2.amazonaws.com/maps/v0/maps/explore/tiles/1/2/3"})
	resp, err := http.Post(ts.URL+"/api/v1/requests/transform", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var out struct {
		Signed bool   `json:"signed"`
		URL    string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Signed || !strings.Contains(out.URL, "X-Amz-Signature=") || !strings.Contains(out.URL, "x-amz-user-agent=") {
		t.Fatalf("out=%+v", out)
	}

	metrics, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer metrics.Body.Close()
	text, _ := io.ReadAll(metrics.Body)
	if !strings.Contains(string(text), `platgeofence_signer_requests_transformed_total{outcome="signed"}`) {
		t.Fatal("transform not counted in metrics")
	}
}

func TestServerInitialCredentialsError(t *testing.T) {
	boom := errors.New("no identity")
	_, err := New(context.Background(), Config{
		Provider: auth.ProviderFunc(func(ctx context.Context) (auth.Credentials, error) {
			return auth.Credentials{}, boom
		}),
		Logger: quietLogger(),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want %v", err, boom)
	}
}

func TestServerEvents(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type=%q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	readUntil := func(substr string) {
		t.Helper()
		for lines.Scan() {
			if strings.Contains(lines.Text(), substr) {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", substr, lines.Err())
	}

	readUntil("connected")

	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	if _, _, err := srv.Geofences().Save("home", poly); err != nil {
		t.Fatal(err)
	}
	readUntil("lastGeofenceId")
	readUntil("geofence-changed")
}
