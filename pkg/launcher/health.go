package launcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultProbeTimeout bounds a single health probe.
const DefaultProbeTimeout = 2 * time.Second

// HealthProber checks whether a server answering at baseURL is alive.
type HealthProber interface {
	Check(ctx context.Context, baseURL string) bool
}

// HTTPProber probes GET <root>/health.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber returns a prober using client, or a client with DefaultProbeTimeout when nil.
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: DefaultProbeTimeout}
	}
	return &HTTPProber{client: client}
}

// Check reports true only for a 2xx answer. Network errors, timeouts, bad URLs
// and non-2xx statuses all yield false.
func (p *HTTPProber) Check(ctx context.Context, baseURL string) bool {
	endpoint, err := endpointURL(baseURL, "/health")
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// endpointURL resolves path against the HTTP root of baseURL, dropping any API
// prefix such as /v1: health and admin routes live at the server root.
func endpointURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base URL %q is not absolute", baseURL)
	}
	root := url.URL{Scheme: u.Scheme, Host: u.Host, Path: path}
	return root.String(), nil
}

// HealthURL returns the /health endpoint for a server advertising baseURL.
func HealthURL(baseURL string) (string, error) {
	return endpointURL(baseURL, "/health")
}
