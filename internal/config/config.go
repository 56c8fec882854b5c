// Package config loads the storefront layer configuration from YAML, an optional
// .env file and STOREFRONT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names. One client is created per backend host.
const (
	BackendAuth        = "auth"
	BackendCatalog     = "catalog"
	BackendCommerce    = "commerce"
	BackendSearch      = "search"
	BackendPreferences = "preferences"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultBucketCap   = 10000
	DefaultRefreshPath = "/auth/refresh"
	DefaultSearchPath  = "/search"
	DefaultIndex       = "products"
)

// Config is the root configuration.
type Config struct {
	Backends    map[string]BackendConfig `yaml:"backends"`
	Auth        AuthConfig               `yaml:"auth"`
	Search      SearchConfig             `yaml:"search"`
	Credentials CredentialsConfig        `yaml:"credentials"`
	Logging     LoggingConfig            `yaml:"logging"`
	Origin      string                   `yaml:"origin"`
}

// BackendConfig describes one backend host.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig configures the refresh collaborator and the login entry point.
type AuthConfig struct {
	RefreshPath string `yaml:"refresh_path"`
	LoginURL    string `yaml:"login_url"`
}

// SearchConfig configures the search backend and the facet aggregation.
type SearchConfig struct {
	Path         string  `yaml:"path"`
	Index        string  `yaml:"index"`
	IndexPattern string  `yaml:"index_pattern"`
	BucketCap    int     `yaml:"bucket_cap"`
	Concurrency  int     `yaml:"concurrency"`
	RatePerSec   float64 `yaml:"rate_per_second"`

	// ResponseEnvelope declares how the search host wraps its responses:
	// "bare" (default) or "data".
	ResponseEnvelope string `yaml:"response_envelope"`
}

// CredentialsConfig selects the credential store backend.
type CredentialsConfig struct {
	// Store is one of "memory", "cookie" or "redis".
	Store      string        `yaml:"store"`
	Token      string        `yaml:"token"`
	CookieName string        `yaml:"cookie_name"`
	RedisAddr  string        `yaml:"redis_addr"`
	RedisKey   string        `yaml:"redis_key"`
	RedisTTL   time.Duration `yaml:"redis_ttl"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides are applied after the YAML file.
type envOverrides struct {
	AuthURL        string        `env:"STOREFRONT_AUTH_URL"`
	CatalogURL     string        `env:"STOREFRONT_CATALOG_URL"`
	CommerceURL    string        `env:"STOREFRONT_COMMERCE_URL"`
	SearchURL      string        `env:"STOREFRONT_SEARCH_URL"`
	PreferencesURL string        `env:"STOREFRONT_PREFERENCES_URL"`
	Timeout        time.Duration `env:"STOREFRONT_TIMEOUT"`
	Token          string        `env:"STOREFRONT_TOKEN"`
	CredentialsVia string        `env:"STOREFRONT_CREDENTIALS_STORE"`
	RedisAddr      string        `env:"STOREFRONT_REDIS_ADDR"`
	LoginURL       string        `env:"STOREFRONT_LOGIN_URL"`
	SearchEnvelope string        `env:"STOREFRONT_SEARCH_ENVELOPE"`
	LogLevel       string        `env:"STOREFRONT_LOG_LEVEL"`
	LogFormat      string        `env:"STOREFRONT_LOG_FORMAT"`
}

// Default returns a configuration with every default filled in and no backends.
func Default() *Config {
	return &Config{
		Backends: map[string]BackendConfig{},
		Auth: AuthConfig{
			RefreshPath: DefaultRefreshPath,
			LoginURL:    "/login",
		},
		Search: SearchConfig{
			Path:         DefaultSearchPath,
			Index:        DefaultIndex,
			IndexPattern: "%s-products",
			BucketCap:    DefaultBucketCap,
			Concurrency:  1,
		},
		Credentials: CredentialsConfig{
			Store:      "memory",
			CookieName: "access_token",
			RedisKey:   "storefront:access_token",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path (optional), then envFile (optional), then the environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("failed to decode environment: %w", err)
	}

	if c.Backends == nil {
		c.Backends = map[string]BackendConfig{}
	}
	for name, u := range map[string]string{
		BackendAuth:        env.AuthURL,
		BackendCatalog:     env.CatalogURL,
		BackendCommerce:    env.CommerceURL,
		BackendSearch:      env.SearchURL,
		BackendPreferences: env.PreferencesURL,
	} {
		if u == "" {
			continue
		}
		b := c.Backends[name]
		b.URL = u
		c.Backends[name] = b
	}
	if env.Timeout > 0 {
		for name, b := range c.Backends {
			b.Timeout = env.Timeout
			c.Backends[name] = b
		}
	}
	if env.Token != "" {
		c.Credentials.Token = env.Token
	}
	if env.CredentialsVia != "" {
		c.Credentials.Store = env.CredentialsVia
	}
	if env.RedisAddr != "" {
		c.Credentials.RedisAddr = env.RedisAddr
	}
	if env.LoginURL != "" {
		c.Auth.LoginURL = env.LoginURL
	}
	if env.SearchEnvelope != "" {
		c.Search.ResponseEnvelope = env.SearchEnvelope
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		c.Logging.Format = env.LogFormat
	}
	return nil
}

func (c *Config) fillDefaults() {
	for name, b := range c.Backends {
		if b.Timeout <= 0 {
			b.Timeout = DefaultTimeout
		}
		c.Backends[name] = b
	}
	if c.Auth.RefreshPath == "" {
		c.Auth.RefreshPath = DefaultRefreshPath
	}
	if c.Search.Path == "" {
		c.Search.Path = DefaultSearchPath
	}
	if c.Search.Index == "" {
		c.Search.Index = DefaultIndex
	}
	if c.Search.BucketCap <= 0 {
		c.Search.BucketCap = DefaultBucketCap
	}
	if c.Search.Concurrency <= 0 {
		c.Search.Concurrency = 1
	}
	if c.Credentials.Store == "" {
		c.Credentials.Store = "memory"
	}
}

// Validate checks that every backend has an absolute URL and the credential
// store is known.
func (c *Config) Validate() error {
	for _, name := range c.BackendNames() {
		raw := c.Backends[name].URL
		if raw == "" {
			return fmt.Errorf("backend %s: url is required", name)
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("backend %s: invalid url %q", name, raw)
		}
	}

	switch c.Search.ResponseEnvelope {
	case "", "bare", "data":
	default:
		return fmt.Errorf("search: unknown response_envelope %q", c.Search.ResponseEnvelope)
	}

	switch c.Credentials.Store {
	case "memory", "cookie":
	case "redis":
		if c.Credentials.RedisAddr == "" {
			return fmt.Errorf("credentials: redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("credentials: unknown store %q", c.Credentials.Store)
	}
	return nil
}

// BackendNames returns the configured backend names in sorted order.
func (c *Config) BackendNames() []string {
	names := make([]string, 0, len(c.Backends))
	for name := range c.Backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
