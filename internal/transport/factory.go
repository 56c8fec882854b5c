// Package transport builds the per-backend HTTP clients and the auth
// interceptor installed on each of them.
package transport

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/R3E-Network/storefront_layer/internal/credentials"
	"github.com/R3E-Network/storefront_layer/internal/logging"
)

// DefaultTimeout bounds every request of a client unless its descriptor says otherwise.
const DefaultTimeout = 30 * time.Second

// ClientDescriptor describes one backend host.
type ClientDescriptor struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	// IncludeCredentials is always honored; cookies travel through the shared jar.
	IncludeCredentials bool
}

// FactoryConfig holds the collaborators shared by every client.
type FactoryConfig struct {
	Credentials credentials.Store
	Refresher   Refresher
	Redirector  LoginRedirector
	Logger      *logging.Logger

	// Jar is shared by all clients; a fresh one is created when nil.
	Jar http.CookieJar
	// Base is the underlying transport; a compression-aware wrapper around
	// http.DefaultTransport when nil.
	Base http.RoundTripper
	// Now is used for token expiry checks; time.Now when nil.
	Now func() time.Time
}

// Factory creates exactly one Client per backend name.
type Factory struct {
	cfg FactoryConfig

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewFactory creates a client factory.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		cfg.Jar = jar
	}
	if cfg.Base == nil {
		cfg.Base = DefaultBase()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Factory{
		cfg:     cfg,
		clients: make(map[string]*Client),
	}, nil
}

// Jar returns the cookie jar shared by all clients.
func (f *Factory) Jar() http.CookieJar {
	return f.cfg.Jar
}

// CreateClient binds a new client to desc.BaseURL with the auth interceptor
// installed. Creating a second client for the same name is an error; callers
// hold the returned client or look it up with Client.
func (f *Factory) CreateClient(desc ClientDescriptor) (*Client, error) {
	if desc.Name == "" {
		return nil, fmt.Errorf("client name is required")
	}
	base, err := parseBaseURL(desc.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", desc.Name, err)
	}

	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[desc.Name]; exists {
		return nil, fmt.Errorf("client %s already created", desc.Name)
	}

	client := &Client{
		name:    desc.Name,
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     f.cfg.Jar,
			Transport: &authTransport{
				backend:    desc.Name,
				base:       f.cfg.Base,
				store:      f.cfg.Credentials,
				refresher:  f.cfg.Refresher,
				redirector: f.cfg.Redirector,
				jar:        f.cfg.Jar,
				logger:     f.cfg.Logger,
				now:        f.cfg.Now,
			},
		},
	}
	f.clients[desc.Name] = client

	f.cfg.Logger.WithFields(map[string]interface{}{
		"backend":  desc.Name,
		"base_url": base.String(),
		"timeout":  timeout.String(),
	}).Debug("backend client created")

	return client, nil
}

// Client returns the client created for name.
func (f *Factory) Client(name string) (*Client, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.clients[name]
	return c, ok
}

// Names lists the created clients in sorted order.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.clients))
	for name := range f.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultBase negotiates gzip and zstd response encoding on top of
// http.DefaultTransport.
func DefaultBase() http.RoundTripper {
	return gzhttp.Transport(http.DefaultTransport)
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", raw)
	}
	return u, nil
}
