// Package service provides the generic base every concrete backend service
// composes with: lazy singletons, context resolution and the four call
// primitives.
package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	apierrors "github.com/R3E-Network/storefront_layer/internal/errors"
	"github.com/R3E-Network/storefront_layer/internal/identity"
	"github.com/R3E-Network/storefront_layer/internal/logging"
	"github.com/R3E-Network/storefront_layer/internal/transport"
)

// Context headers set by the base in addition to the interceptor's.
const (
	UserIDHeader    = "x-user-id"
	CompanyIDHeader = "x-company-id"
	OriginHeader    = "Origin"
)

// Doer is the subset of *transport.Client the base dispatches through.
type Doer interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// BaseConfig configures a Base.
type BaseConfig struct {
	Name          string
	DefaultClient Doer
	Provider      identity.ContextProvider
	Logger        *logging.Logger
}

// CallOptions overrides the dependencies of a single call. Zero fields fall
// back to the resolved context, GET and the default client.
type CallOptions struct {
	Context *identity.RequestContext
	Method  string
	Client  Doer
}

// Base implements the call primitives for a concrete service.
type Base struct {
	name     string
	client   Doer
	provider identity.ContextProvider
	logger   *logging.Logger
}

// NewBase creates a Base.
func NewBase(cfg BaseConfig) Base {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	provider := cfg.Provider
	if provider == nil {
		provider = identity.Static(identity.RequestContext{})
	}
	return Base{
		name:     cfg.Name,
		client:   cfg.DefaultClient,
		provider: provider,
		logger:   logger,
	}
}

// Name returns the service name used in logs.
func (b *Base) Name() string {
	return b.name
}

// Context resolves the RequestContext the next call would use.
func (b *Base) Context(ctx context.Context) identity.RequestContext {
	return b.provider.Resolve(ctx)
}

// Call resolves the context automatically, dispatches through the default
// client and returns every failure.
func (b *Base) Call(ctx context.Context, endpoint string, data interface{}, method string) (json.RawMessage, error) {
	return b.CallWith(ctx, endpoint, data, CallOptions{Method: method})
}

// CallSafe is Call that returns nil instead of failing.
func (b *Base) CallSafe(ctx context.Context, endpoint string, data interface{}, method string) json.RawMessage {
	return b.CallWithSafe(ctx, endpoint, data, CallOptions{Method: method})
}

// CallWith is Call with every dependency overridable.
func (b *Base) CallWith(ctx context.Context, endpoint string, data interface{}, opts CallOptions) (json.RawMessage, error) {
	client := opts.Client
	if client == nil {
		client = b.client
	}
	if client == nil {
		return nil, apierrors.Request(b.name+": no client configured", nil)
	}

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	explicit := opts.Context != nil
	var rc identity.RequestContext
	if explicit {
		rc = *opts.Context
	} else {
		rc = b.provider.Resolve(ctx)
	}
	ctx = rc.Annotate(ctx)

	req := &transport.Request{
		Method: method,
		Path:   endpoint,
		Header: contextHeaders(rc, explicit),
	}
	if q, ok := data.(url.Values); ok {
		req.Query = q
	} else if data != nil {
		req.Body = data
	}

	b.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"service":  b.name,
		"method":   method,
		"endpoint": endpoint,
	}).Debug("calling backend")

	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

// CallWithSafe is CallWith that returns nil on any failure, including panics
// raised below it with non-error values.
func (b *Base) CallWithSafe(ctx context.Context, endpoint string, data interface{}, opts CallOptions) (result json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"service":  b.name,
				"endpoint": endpoint,
				"panic":    fmt.Sprint(r),
			}).Error("backend call panicked; returning empty result")
			result = nil
		}
	}()

	raw, err := b.CallWith(ctx, endpoint, data, opts)
	if err != nil {
		entry := b.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"service":  b.name,
			"endpoint": endpoint,
		})
		if apiErr := apierrors.GetAPIError(err); apiErr != nil {
			entry = entry.WithField("status", apiErr.Status)
		}
		entry.Warn("backend call failed; returning empty result")
		return nil
	}
	return raw
}

// contextHeaders renders rc as request headers. Authorization and tenant are
// only set for an explicit context; otherwise the interceptor derives them
// from the credential store so a resend after refresh picks up the new token.
func contextHeaders(rc identity.RequestContext, explicit bool) http.Header {
	h := http.Header{}
	if explicit {
		if rc.AccessToken != "" {
			h.Set(transport.AuthorizationHeader, "Bearer "+rc.AccessToken)
		}
		if rc.TenantCode != "" {
			h.Set(transport.TenantHeader, rc.TenantCode)
		}
	}
	if rc.UserID != 0 {
		h.Set(UserIDHeader, strconv.FormatInt(rc.UserID, 10))
	}
	if rc.CompanyID != 0 {
		h.Set(CompanyIDHeader, strconv.FormatInt(rc.CompanyID, 10))
	}
	if rc.Origin != "" {
		h.Set(OriginHeader, rc.Origin)
	}
	return h
}
