package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/R3E-Network/storefront_layer/internal/config"
	"github.com/R3E-Network/storefront_layer/internal/credentials"
	"github.com/R3E-Network/storefront_layer/internal/identity"
	"github.com/R3E-Network/storefront_layer/internal/logging"
	"github.com/R3E-Network/storefront_layer/internal/service"
	"github.com/R3E-Network/storefront_layer/internal/storefront"
	"github.com/R3E-Network/storefront_layer/internal/transport"
)

// Option customizes New.
type Option func(*options)

type options struct {
	logger     *logging.Logger
	store      credentials.Store
	redirector transport.LoginRedirector
	base       http.RoundTripper
	provider   identity.ContextProvider
}

// WithLogger replaces the logger built from the logging config.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCredentials replaces the credential store selected by the config.
func WithCredentials(store credentials.Store) Option {
	return func(o *options) { o.store = store }
}

// WithRedirector replaces the login redirect hook.
func WithRedirector(r transport.LoginRedirector) Option {
	return func(o *options) { o.redirector = r }
}

// WithTransport replaces the base round tripper under every client.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithContextProvider replaces the default credential-store resolver.
func WithContextProvider(p identity.ContextProvider) Option {
	return func(o *options) { o.provider = p }
}

// Application owns the shared state of the layer: the cookie jar, the one
// client per backend and the service registry.
type Application struct {
	cfg      *config.Config
	log      *logging.Logger
	jar      http.CookieJar
	store    credentials.Store
	provider identity.ContextProvider
	factory  *transport.Factory
	registry *service.Registry
	deps     storefront.Deps
	closers  []io.Closer
}

// New builds the application from cfg.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	log := o.logger
	if log == nil {
		log = logging.New("storefront", cfg.Logging.Level, cfg.Logging.Format)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	a := &Application{
		cfg:      cfg,
		log:      log,
		jar:      jar,
		registry: service.NewRegistry(),
	}

	a.store = o.store
	if a.store == nil {
		if a.store, err = a.buildStore(); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.provider = o.provider
	if a.provider == nil {
		a.provider = identity.NewResolver(a.store, cfg.Origin, log)
	}

	base := o.base
	if base == nil {
		base = transport.DefaultBase()
	}

	var refresher transport.Refresher
	if auth, ok := cfg.Backends[config.BackendAuth]; ok {
		refresher, err = transport.NewHTTPRefresher(transport.HTTPRefresherConfig{
			BaseURL: auth.URL,
			Path:    cfg.Auth.RefreshPath,
			Jar:     jar,
			Timeout: auth.Timeout,
			Base:    base,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		log.Warn("auth backend not configured; 401 responses will not trigger a session refresh")
	}

	redirector := o.redirector
	if redirector == nil {
		redirector = transport.LogRedirector{LoginURL: cfg.Auth.LoginURL, Logger: log}
	}

	a.factory, err = transport.NewFactory(transport.FactoryConfig{
		Credentials: a.store,
		Refresher:   refresher,
		Redirector:  redirector,
		Logger:      log,
		Jar:         jar,
		Base:        base,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	clients := make(map[string]service.Doer, len(cfg.Backends))
	for _, name := range cfg.BackendNames() {
		backend := cfg.Backends[name]
		client, err := a.factory.CreateClient(transport.ClientDescriptor{
			Name:               name,
			BaseURL:            backend.URL,
			Timeout:            backend.Timeout,
			IncludeCredentials: true,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create %s client: %w", name, err)
		}
		clients[name] = client
	}

	a.deps = storefront.Deps{
		Clients:  clients,
		Provider: a.provider,
		Search:   cfg.Search,
		Logger:   log,
	}

	log.WithFields(map[string]interface{}{
		"backends":    cfg.BackendNames(),
		"credentials": cfg.Credentials.Store,
	}).Debug("storefront layer initialised")

	return a, nil
}

func (a *Application) buildStore() (credentials.Store, error) {
	c := a.cfg.Credentials
	switch c.Store {
	case "", "memory":
		return credentials.NewMemoryStore(c.Token), nil

	case "cookie":
		rawURL := a.cookieURL()
		if rawURL == "" {
			return nil, fmt.Errorf("credentials: cookie store needs an auth backend or origin URL")
		}
		store, err := credentials.NewCookieStore(a.jar, rawURL, c.CookieName)
		if err != nil {
			return nil, err
		}
		if c.Token != "" {
			u, err := url.Parse(rawURL)
			if err != nil {
				return nil, fmt.Errorf("credentials: %w", err)
			}
			a.jar.SetCookies(u, []*http.Cookie{{Name: c.CookieName, Value: c.Token, Path: "/"}})
		}
		return store, nil

	case "redis":
		store, err := credentials.NewRedisStore(credentials.RedisConfig{
			Addr: c.RedisAddr,
			Key:  c.RedisKey,
			TTL:  c.RedisTTL,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		if c.Token != "" {
			if err := store.Set(context.Background(), c.Token); err != nil {
				return nil, fmt.Errorf("credentials: seed redis token: %w", err)
			}
		}
		return store, nil

	default:
		return nil, fmt.Errorf("credentials: unknown store %q", c.Store)
	}
}

func (a *Application) cookieURL() string {
	if auth, ok := a.cfg.Backends[config.BackendAuth]; ok && auth.URL != "" {
		return auth.URL
	}
	return strings.TrimSpace(a.cfg.Origin)
}

// Config returns the configuration the application was built from.
func (a *Application) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *Application) Logger() *logging.Logger { return a.log }

// Credentials returns the credential store.
func (a *Application) Credentials() credentials.Store { return a.store }

// Jar returns the cookie jar shared by every client.
func (a *Application) Jar() http.CookieJar { return a.jar }

// Registry returns the service registry.
func (a *Application) Registry() *service.Registry { return a.registry }

// Client returns the client created for a backend.
func (a *Application) Client(name string) (*transport.Client, bool) {
	return a.factory.Client(name)
}

// Context resolves the current RequestContext.
func (a *Application) Context(ctx context.Context) identity.RequestContext {
	return a.provider.Resolve(ctx)
}

// Catalog returns the catalog service.
func (a *Application) Catalog() *storefront.CatalogService {
	return storefront.Catalog(a.registry, a.deps)
}

// Cart returns the cart service.
func (a *Application) Cart() *storefront.CartService {
	return storefront.Cart(a.registry, a.deps)
}

// Orders returns the order service.
func (a *Application) Orders() *storefront.OrderService {
	return storefront.Orders(a.registry, a.deps)
}

// Preferences returns the preference service.
func (a *Application) Preferences() *storefront.PreferenceService {
	return storefront.Preferences(a.registry, a.deps)
}

// Search returns the search service.
func (a *Application) Search() *storefront.SearchService {
	return storefront.Search(a.registry, a.deps)
}

// Auth returns the auth service.
func (a *Application) Auth() *storefront.AuthService {
	return storefront.Auth(a.registry, a.deps)
}

// Close releases the credential store connections.
func (a *Application) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
