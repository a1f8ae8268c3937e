// Package signer decides which map resource requests go to the hosted
// geospatial service and presigns those with SigV4, keeping the credentials
// fresh in the background.
//
// A Transformer is safe for concurrent use. TransformRequest never waits for
// a refresh: it signs with whatever credentials are held at the time.
package signer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/cenkalti/backoff/v4"
	"github.com/facebookgo/clock"

	"github.com/joeblew999/plat-geofence/internal/auth"
	"github.com/joeblew999/plat-geofence/internal/metrics"
)

const (
	// DefaultRegion is the region map bootstrap code falls back to.
	DefaultRegion = "us-west-2"

	// ResourceTypeStyle marks a request for a map style. Style requests may
	// name a map instead of giving a URL.
	ResourceTypeStyle = "Style"

	// TrustedDomain is the service domain requests are signed for.
	TrustedDomain = "amazonaws.com"

	// SigningService is the SigV4 service name of the location service.
	SigningService = "geo"

	// UserAgentParam is the query parameter identifying this client.
	UserAgentParam = "x-amz-user-agent"

	// PresignExpiry is the X-Amz-Expires lifetime of a signed URL.
	PresignExpiry = 15 * time.Minute

	// hex SHA-256 of an empty body; map resource requests are plain GETs.
	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// DefaultUserAgent identifies this client to the service.
const DefaultUserAgent = "plat-geofence/0.1.0 go"

// RequestDescriptor is the rewritten request for one map resource.
type RequestDescriptor struct {
	URL     string      `json:"url" doc:"Final, signed URL"`
	Headers http.Header `json:"headers,omitempty" doc:"Headers covered by the signature"`
}

// Options configures a Transformer and its Refresher. Zero values fall back
// to defaults.
type Options struct {
	// Region expands style names into URLs. It has no default here; an
	// empty region makes style-name requests fail with ConfigurationError.
	Region string

	UserAgent        string
	Clock            clock.Clock
	Logger           *slog.Logger
	SignOut          auth.SignOutSource
	NewBackOff       func() backoff.BackOff
	RetryCooldown    time.Duration
	OnRefreshFailure func(error)
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.NewBackOff == nil {
		clk := o.Clock
		o.NewBackOff = func() backoff.BackOff { return DefaultBackOff(clk) }
	}
	if o.RetryCooldown <= 0 {
		o.RetryCooldown = DefaultRetryCooldown
	}
	return o
}

// Transformer rewrites and signs map resource requests.
type Transformer struct {
	region    string
	userAgent string
	clock     clock.Clock
	log       *slog.Logger
	signer    *v4.Signer
	refresher *Refresher
}

// New creates a Transformer holding initial and starts its refresh lifecycle
// against provider.
func New(initial auth.Credentials, provider auth.Provider, opts Options) (*Transformer, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial credentials: %w", err)
	}
	if provider == nil {
		return nil, &ConfigurationError{Setting: "credentials provider", Reason: "is required"}
	}
	opts = opts.withDefaults()

	return &Transformer{
		region:    opts.Region,
		userAgent: opts.UserAgent,
		clock:     opts.Clock,
		log:       opts.Logger,
		signer:    v4.NewSigner(),
		refresher: NewRefresher(initial, provider, opts),
	}, nil
}

// Region returns the configured region, which may be empty.
func (t *Transformer) Region() string {
	return t.region
}

// Refresher returns the credential lifecycle of the transformer.
func (t *Transformer) Refresher() *Refresher {
	return t.refresher
}

// Close stops the credential lifecycle.
func (t *Transformer) Close() {
	t.refresher.Close()
}

// StyleURL returns the style descriptor URL of a named map.
func StyleURL(region, mapName string) string {
	return fmt.Sprintf("https://maps.geo.%s.%s/maps/v0/maps/%s/style-descriptor", region, TrustedDomain, mapName)
}

// TransformRequest returns the signed request for rawURL, or nil when the URL
// does not target the service and should be used as is.
//
// Style requests may pass a bare map name, which is expanded to the style
// descriptor URL of the configured region.
func (t *Transformer) TransformRequest(rawURL, resourceType string) (*RequestDescriptor, error) {
	desc, err := t.transform(rawURL, resourceType)
	switch {
	case err != nil:
		metrics.RequestsTransformed.WithLabelValues("error").Inc()
	case desc == nil:
		metrics.RequestsTransformed.WithLabelValues("untrusted").Inc()
	default:
		metrics.RequestsTransformed.WithLabelValues("signed").Inc()
	}
	return desc, err
}

func (t *Transformer) transform(rawURL, resourceType string) (*RequestDescriptor, error) {
	if resourceType == ResourceTypeStyle && !strings.Contains(rawURL, "://") {
		if t.region == "" {
			return nil, &ConfigurationError{Setting: "region", Reason: "is required to expand a style name"}
		}
		rawURL = StyleURL(t.region, rawURL)
	}

	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if !IsTrustedHost(u.Hostname()) {
		return nil, nil
	}

	// The fully qualified form names the same host; the signed host header
	// and the region read from it must match the unqualified one.
	if h := u.Hostname(); strings.HasSuffix(h, ".") {
		h = strings.TrimSuffix(h, ".")
		if port := u.Port(); port != "" {
			h = net.JoinHostPort(h, port)
		}
		u.Host = h
	}

	u.RawQuery = appendQueryParam(u.RawQuery, UserAgentParam+"="+url.QueryEscape(t.userAgent))
	u.ForceQuery = false
	u.Fragment = ""

	return t.presign(u)
}

func (t *Transformer) presign(u *url.URL) (*RequestDescriptor, error) {
	u.RawQuery = appendQueryParam(u.RawQuery, "X-Amz-Expires="+strconv.Itoa(int(PresignExpiry/time.Second)))

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &MalformedURLError{URL: u.String(), Reason: "cannot build request", Err: err}
	}

	service, region := t.serviceInfo(u.Hostname())
	creds := t.refresher.Current()

	signed, headers, err := t.signer.PresignHTTP(context.Background(), creds.AWS(), req,
		emptyPayloadHash, service, region, t.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("presigning %s: %w", u.Host, err)
	}

	t.log.Debug("request signed", "host", u.Host, "service", service, "region", region)
	return &RequestDescriptor{URL: signed, Headers: headers}, nil
}

// serviceInfo reads the service and region from a host such as
// maps.geo.us-east-1.amazonaws.com, falling back to the location service in
// the configured region.
func (t *Transformer) serviceInfo(host string) (service, region string) {
	service, region = SigningService, t.region
	if region == "" {
		region = DefaultRegion
	}

	host = strings.TrimSuffix(strings.ToLower(host), ".")
	prefix := strings.TrimSuffix(host, "."+TrustedDomain)
	if prefix == host {
		return service, region
	}
	labels := strings.Split(prefix, ".")
	switch n := len(labels); {
	case n >= 2:
		return labels[n-2], labels[n-1]
	case n == 1 && labels[0] != "":
		return labels[0], region
	}
	return service, region
}

// IsTrustedHost reports whether host is the service domain or one of its
// subdomains. Containing the domain elsewhere is not enough.
func IsTrustedHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return host == TrustedDomain || strings.HasSuffix(host, "."+TrustedDomain)
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &MalformedURLError{URL: rawURL, Reason: "cannot parse", Err: err}
	}
	if u.Scheme == "" {
		return nil, &MalformedURLError{URL: rawURL, Reason: "missing scheme"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &MalformedURLError{URL: rawURL, Reason: "unsupported scheme " + u.Scheme}
	}
	if u.Hostname() == "" {
		return nil, &MalformedURLError{URL: rawURL, Reason: "missing host"}
	}
	return u, nil
}

// appendQueryParam adds param to a raw query string without re-encoding the
// existing pairs. An empty query or a trailing & gets no extra separator.
// PresignHTTP later rebuilds the query in canonical form, so the signed URL
// keeps every pair but not their order or encoding.
func appendQueryParam(rawQuery, param string) string {
	switch {
	case rawQuery == "":
		return param
	case strings.HasSuffix(rawQuery, "&"):
		return rawQuery + param
	default:
		return rawQuery + "&" + param
	}
}

var _ aws.CredentialsProvider = (*staticAWS)(nil)

// staticAWS exposes held credentials to SDK code that wants a provider.
type staticAWS struct{ r *Refresher }

func (s *staticAWS) Retrieve(context.Context) (aws.Credentials, error) {
	return s.r.Current().AWS(), nil
}

// CredentialsProvider exposes the held credentials as an aws-sdk-go-v2
// provider, for SDK clients that should share the refreshed credentials.
func (t *Transformer) CredentialsProvider() aws.CredentialsProvider {
	return &staticAWS{r: t.refresher}
}
