package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
origin: https://shop.example.com
backends:
  auth:
    url: https://auth.example.com
  catalog:
    url: https://catalog.example.com
    timeout: 5s
  search:
    url: https://search.example.com
auth:
  login_url: https://shop.example.com/login
search:
  index: catalog
  concurrency: 4
credentials:
  store: memory
  token: abc
logging:
  level: debug
  format: text
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultRefreshPath, cfg.Auth.RefreshPath)
	assert.Equal(t, DefaultBucketCap, cfg.Search.BucketCap)
	assert.Equal(t, 1, cfg.Search.Concurrency)
	assert.Equal(t, "memory", cfg.Credentials.Store)
	assert.Empty(t, cfg.Backends)
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "storefront.yaml", sampleYAML), "")
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com", cfg.Origin)
	assert.Equal(t, []string{BackendAuth, BackendCatalog, BackendSearch}, cfg.BackendNames())
	assert.Equal(t, 5*time.Second, cfg.Backends[BackendCatalog].Timeout)
	assert.Equal(t, DefaultTimeout, cfg.Backends[BackendAuth].Timeout)
	assert.Equal(t, "catalog", cfg.Search.Index)
	assert.Equal(t, 4, cfg.Search.Concurrency)
	assert.Equal(t, DefaultBucketCap, cfg.Search.BucketCap)
	assert.Equal(t, "abc", cfg.Credentials.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_CATALOG_URL", "https://catalog.internal")
	t.Setenv("STOREFRONT_COMMERCE_URL", "https://commerce.internal")
	t.Setenv("STOREFRONT_TIMEOUT", "12s")
	t.Setenv("STOREFRONT_TOKEN", "from-env")

	cfg, err := Load(writeFile(t, "storefront.yaml", sampleYAML), "")
	require.NoError(t, err)

	assert.Equal(t, "https://catalog.internal", cfg.Backends[BackendCatalog].URL)
	assert.Equal(t, "https://commerce.internal", cfg.Backends[BackendCommerce].URL)
	assert.Equal(t, 12*time.Second, cfg.Backends[BackendAuth].Timeout)
	assert.Equal(t, "from-env", cfg.Credentials.Token)
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "STOREFRONT_SEARCH_URL=https://search.from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("STOREFRONT_SEARCH_URL") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "https://search.from-dotenv", cfg.Backends[BackendSearch].URL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing url", func(c *Config) { c.Backends[BackendCatalog] = BackendConfig{} }, true},
		{"relative url", func(c *Config) { c.Backends[BackendCatalog] = BackendConfig{URL: "/catalog"} }, true},
		{"unknown store", func(c *Config) { c.Credentials.Store = "vault" }, true},
		{"redis without addr", func(c *Config) { c.Credentials.Store = "redis" }, true},
		{"data envelope", func(c *Config) { c.Search.ResponseEnvelope = "data" }, false},
		{"unknown envelope", func(c *Config) { c.Search.ResponseEnvelope = "hits" }, true},
		{"redis with addr", func(c *Config) {
			c.Credentials.Store = "redis"
			c.Credentials.RedisAddr = "localhost:6379"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Backends[BackendCatalog] = BackendConfig{URL: "https://catalog.example.com"}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
