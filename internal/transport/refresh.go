package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Refresher renews the session. Success is judged by status alone; the new
// token arrives as a cookie set on the shared jar.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

// Refresh implements Refresher.
func (f RefreshFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

// HTTPRefresher posts to the auth backend's refresh endpoint with credentials
// included and no body.
type HTTPRefresher struct {
	url        string
	httpClient *http.Client
}

// HTTPRefresherConfig configures an HTTPRefresher.
type HTTPRefresherConfig struct {
	BaseURL string
	Path    string
	Jar     http.CookieJar
	Timeout time.Duration
	Base    http.RoundTripper
}

// NewHTTPRefresher creates a refresher. Its client shares the factory jar but
// not the auth interceptor, so a 401 from the refresh endpoint cannot recurse.
func NewHTTPRefresher(cfg HTTPRefresherConfig) (*HTTPRefresher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("refresh base URL is required")
	}
	path := cfg.Path
	if path == "" {
		path = "/auth/refresh"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	base := cfg.Base
	if base == nil {
		base = DefaultBase()
	}

	return &HTTPRefresher{
		url: strings.TrimSuffix(cfg.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Jar:       cfg.Jar,
			Transport: base,
		},
	}, nil
}

// Refresh implements Refresher.
func (r *HTTPRefresher) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create refresh request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh request: %w", err)
	}
	discard(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}
	return nil
}
