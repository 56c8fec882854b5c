package storefront

import (
	"context"
	"fmt"
	"net/http"

	"github.com/R3E-Network/storefront_layer/internal/service"
)

// Profile is the authenticated user as reported by the auth backend.
type Profile struct {
	ID        int64    `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	CompanyID int64    `json:"companyId,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// AuthService talks to the auth backend.
type AuthService struct {
	service.Base
}

// Me returns the profile of the session user.
func (s *AuthService) Me(ctx context.Context) (*Profile, error) {
	raw, err := s.Call(ctx, "/auth/me", nil, http.MethodGet)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	profile, err := service.Decode[Profile](raw, service.ShapeObject)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}
