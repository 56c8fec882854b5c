// Package credentials holds the current access token and decodes its claims.
// Everything above this package only reads from a Store.
package credentials

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store is the read-only view of the current access token.
// An empty token with a nil error means "no session".
type Store interface {
	AccessToken(ctx context.Context) (string, error)
}

// =============================================================================
// Memory store
// =============================================================================

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates a memory store seeded with token (may be empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

// AccessToken implements Store.
func (s *MemoryStore) AccessToken(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// Set replaces the stored token.
func (s *MemoryStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear removes the stored token.
func (s *MemoryStore) Clear() {
	s.Set("")
}

// =============================================================================
// Cookie store
// =============================================================================

// CookieStore reads the token from a cookie jar, the same jar the HTTP
// clients send credentials from. A cookie-based refresh updates it in place.
type CookieStore struct {
	jar  http.CookieJar
	url  *url.URL
	name string
}

// NewCookieStore creates a store reading cookie name for rawURL from jar.
func NewCookieStore(jar http.CookieJar, rawURL, name string) (*CookieStore, error) {
	if jar == nil {
		return nil, fmt.Errorf("cookie jar is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse cookie url: %w", err)
	}
	if name == "" {
		name = "access_token"
	}
	return &CookieStore{jar: jar, url: u, name: name}, nil
}

// AccessToken implements Store.
func (s *CookieStore) AccessToken(_ context.Context) (string, error) {
	for _, c := range s.jar.Cookies(s.url) {
		if c.Name == s.name {
			return c.Value, nil
		}
	}
	return "", nil
}

// =============================================================================
// Redis store
// =============================================================================

// RedisStore keeps the token under one key in Redis, for server-side
// storefront sessions shared between processes.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr   string
	Key    string
	TTL    time.Duration
	Client *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := cfg.Client
	if client == nil {
		if cfg.Addr == "" {
			return nil, fmt.Errorf("redis address is required")
		}
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr})
	}
	key := cfg.Key
	if key == "" {
		key = "storefront:access_token"
	}
	return &RedisStore{client: client, key: key, ttl: cfg.TTL}, nil
}

// AccessToken implements Store.
func (s *RedisStore) AccessToken(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return token, nil
}

// Set stores token with the configured TTL (0 means no expiry).
func (s *RedisStore) Set(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Clear removes the token.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
