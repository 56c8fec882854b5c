// Package identity derives the per-request identity context from the credential store.
package identity

import (
	"context"
	"fmt"
	"strconv"

	"github.com/R3E-Network/storefront_layer/internal/credentials"
	"github.com/R3E-Network/storefront_layer/internal/logging"
)

// RequestContext is the resolved identity attached to one outgoing call.
// A zero field means "absent": the matching header is simply not sent.
type RequestContext struct {
	TenantCode  string
	AccessToken string
	Origin      string
	CompanyID   int64
	UserID      int64

	// ElasticCode is only filled by providers that need it (search).
	ElasticCode string
}

// Anonymous reports whether no token was available.
func (rc RequestContext) Anonymous() bool {
	return rc.AccessToken == ""
}

// RequireCompanyID returns the company id or a descriptive error.
func (rc RequestContext) RequireCompanyID() (int64, error) {
	if rc.CompanyID == 0 {
		return 0, fmt.Errorf("company id is required but the current session has none")
	}
	return rc.CompanyID, nil
}

// RequireUserID returns the user id or a descriptive error.
func (rc RequestContext) RequireUserID() (int64, error) {
	if rc.UserID == 0 {
		return 0, fmt.Errorf("user id is required but the current session has none")
	}
	return rc.UserID, nil
}

// Annotate copies the identity onto ctx for logging.
func (rc RequestContext) Annotate(ctx context.Context) context.Context {
	if rc.UserID != 0 {
		ctx = logging.WithUserID(ctx, strconv.FormatInt(rc.UserID, 10))
	}
	if rc.TenantCode != "" {
		ctx = logging.WithTenant(ctx, rc.TenantCode)
	}
	return ctx
}

// ContextProvider resolves the RequestContext for a call.
type ContextProvider interface {
	Resolve(ctx context.Context) RequestContext
}

// ProviderFunc adapts a function to ContextProvider.
type ProviderFunc func(ctx context.Context) RequestContext

// Resolve implements ContextProvider.
func (f ProviderFunc) Resolve(ctx context.Context) RequestContext {
	return f(ctx)
}

// Static returns a provider that always yields rc.
func Static(rc RequestContext) ContextProvider {
	return ProviderFunc(func(context.Context) RequestContext { return rc })
}

// Resolver is the default ContextProvider backed by a credentials.Store.
type Resolver struct {
	store  credentials.Store
	origin string
	logger *logging.Logger
}

// NewResolver creates a resolver. origin may be empty.
func NewResolver(store credentials.Store, origin string, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{store: store, origin: origin, logger: logger}
}

// Resolve never fails: a missing, unreadable or malformed token produces a
// context with empty identity fields.
func (r *Resolver) Resolve(ctx context.Context) RequestContext {
	rc := RequestContext{Origin: r.origin}
	if r.store == nil {
		return rc
	}

	token, err := r.store.AccessToken(ctx)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Debug("credential store unavailable; resolving anonymous context")
		return rc
	}
	if token == "" {
		return rc
	}

	rc.AccessToken = token
	claims := credentials.DecodeClaims(token)
	if claims == nil {
		r.logger.WithContext(ctx).Debug("access token is not a decodable JWT; identity claims absent")
		return rc
	}

	rc.TenantCode = claims.TenantCode
	rc.UserID = claims.UserID
	rc.CompanyID = claims.CompanyID
	return rc
}
