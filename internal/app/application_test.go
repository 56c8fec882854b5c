package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/storefront_layer/internal/config"
	apierrors "github.com/R3E-Network/storefront_layer/internal/errors"
	"github.com/R3E-Network/storefront_layer/internal/logging"
	"github.com/R3E-Network/storefront_layer/internal/transport"
)

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func testConfig(urls map[string]string) *config.Config {
	cfg := config.Default()
	for name, u := range urls {
		cfg.Backends[name] = config.BackendConfig{URL: u, Timeout: 5 * time.Second}
	}
	return cfg
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNew_UnknownStore(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Credentials.Store = "vault"
	_, err := New(cfg, WithLogger(logging.Discard()))
	assert.Error(t, err)
}

func TestNew_OneClientPerBackend(t *testing.T) {
	cfg := testConfig(map[string]string{
		config.BackendCatalog: "https://catalog.example.com",
		config.BackendSearch:  "https://search.example.com",
	})
	application, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer application.Close()

	catalog, ok := application.Client(config.BackendCatalog)
	require.True(t, ok)
	assert.Equal(t, "https://catalog.example.com", catalog.BaseURL())

	_, ok = application.Client(config.BackendAuth)
	assert.False(t, ok)

	assert.Same(t, application.Catalog(), application.Catalog())
	assert.Same(t, application.Search(), application.Search())
	assert.Equal(t, 2, application.Registry().Len())
}

func TestNew_MemoryStoreContext(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Origin = "https://shop.example.com"
	cfg.Credentials.Token = token(t, jwt.MapClaims{"iss": "tenantA", "userId": 7, "companyId": 9})

	application, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	rc := application.Context(context.Background())
	assert.Equal(t, "tenantA", rc.TenantCode)
	assert.Equal(t, int64(7), rc.UserID)
	assert.Equal(t, int64(9), rc.CompanyID)
	assert.Equal(t, "https://shop.example.com", rc.Origin)
}

func TestNew_RedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := testConfig(nil)
	cfg.Credentials.Store = "redis"
	cfg.Credentials.RedisAddr = mr.Addr()
	cfg.Credentials.Token = token(t, jwt.MapClaims{"iss": "tenantR", "userId": 3})

	application, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer application.Close()

	stored, err := mr.Get("storefront:access_token")
	require.NoError(t, err)
	assert.Equal(t, cfg.Credentials.Token, stored)
	assert.Equal(t, "tenantR", application.Context(context.Background()).TenantCode)
}

// TestCookieSessionRefresh drives the whole stack: the first call is rejected,
// the refresh endpoint rotates the access cookie, and the resend succeeds.
func TestCookieSessionRefresh(t *testing.T) {
	fresh := token(t, jwt.MapClaims{"iss": "tenantA", "userId": 7})

	var refreshes, calls int32
	router := mux.NewRouter()
	router.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: fresh, Path: "/"})
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)
	router.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get(transport.AuthorizationHeader) != "Bearer "+fresh {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":7,"email":"ada@example.com","name":"Ada"}`))
	})
	server := httptest.NewServer(router)
	defer server.Close()

	cfg := testConfig(map[string]string{config.BackendAuth: server.URL})
	cfg.Credentials.Store = "cookie"
	cfg.Credentials.Token = token(t, jwt.MapClaims{"iss": "tenantA", "userId": 7, "exp": time.Now().Add(time.Hour).Unix()})

	application, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	profile, err := application.Auth().Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRefreshFailureRedirects(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	router.HandleFunc("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	server := httptest.NewServer(router)
	defer server.Close()

	cfg := testConfig(map[string]string{
		config.BackendAuth:    server.URL,
		config.BackendCatalog: server.URL,
	})

	var redirected int32
	application, err := New(cfg,
		WithLogger(logging.Discard()),
		WithRedirector(transport.RedirectFunc(func(context.Context, error) {
			atomic.AddInt32(&redirected, 1)
		})),
	)
	require.NoError(t, err)

	_, err = application.Catalog().GetProduct(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, apierrors.IsKind(err, apierrors.KindAuth))
	assert.Equal(t, int32(1), atomic.LoadInt32(&redirected))
}
