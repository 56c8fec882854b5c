package storefront

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/R3E-Network/storefront_layer/internal/identity"
	"github.com/R3E-Network/storefront_layer/internal/service"
)

// Preference is one stored user preference.
type Preference struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// PreferenceService reads and writes per-user preferences.
type PreferenceService struct {
	service.Base
}

// Get returns the preference, or nil when there is no user or the lookup fails.
// rc overrides the resolved context when non-nil.
func (s *PreferenceService) Get(ctx context.Context, key string, rc *identity.RequestContext) *Preference {
	userID := s.userID(ctx, rc)
	if userID == 0 || !validKey(key) {
		return nil
	}

	raw := s.CallWithSafe(ctx, preferencePath(userID, key), nil, service.CallOptions{Context: rc})
	if raw == nil {
		return nil
	}
	pref, err := service.Decode[Preference](raw, service.ShapeObject)
	if err != nil {
		return nil
	}
	return &pref
}

// Save stores value under key for the user.
func (s *PreferenceService) Save(ctx context.Context, key string, value interface{}, rc *identity.RequestContext) error {
	if !validKey(key) {
		return fmt.Errorf("save preference: invalid key %q", key)
	}
	userID := s.userID(ctx, rc)
	if userID == 0 {
		return fmt.Errorf("save preference %s: user id is required but the current session has none", key)
	}

	_, err := s.CallWith(ctx, preferencePath(userID, key),
		map[string]interface{}{"value": value},
		service.CallOptions{Context: rc, Method: http.MethodPut})
	if err != nil {
		return fmt.Errorf("save preference %s: %w", key, err)
	}
	return nil
}

func (s *PreferenceService) userID(ctx context.Context, rc *identity.RequestContext) int64 {
	if rc != nil {
		return rc.UserID
	}
	return s.Context(ctx).UserID
}

func preferencePath(userID int64, key string) string {
	return fmt.Sprintf("/users/%d/preferences/%s", userID, key)
}

func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, "/?#")
}
