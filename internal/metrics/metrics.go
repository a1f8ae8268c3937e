// Package metrics holds the Prometheus collectors of the geofence service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTransformed counts transformRequest outcomes:
	// signed, untrusted or error.
	RequestsTransformed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platgeofence",
		Subsystem: "signer",
		Name:      "requests_transformed_total",
		Help:      "Resource requests seen by the request transformer, by outcome",
	}, []string{"outcome"})

	// CredentialRefreshes counts refresh attempts: success, retry or exhausted.
	CredentialRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platgeofence",
		Subsystem: "signer",
		Name:      "credential_refreshes_total",
		Help:      "Credential refresh attempts, by result",
	}, []string{"result"})

	// CredentialExpiry is the expiration of the credentials currently held,
	// as a unix timestamp.
	CredentialExpiry = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "platgeofence",
		Subsystem: "signer",
		Name:      "credential_expiry_timestamp_seconds",
		Help:      "Expiration time of the credentials in use",
	})

	// GeometriesDerived counts derived geofence shapes by kind.
	GeometriesDerived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platgeofence",
		Subsystem: "geofence",
		Name:      "geometries_derived_total",
		Help:      "Geofence polygons derived from bounds or centers, by shape",
	}, []string{"shape"})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
