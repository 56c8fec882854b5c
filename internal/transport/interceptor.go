package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/storefront_layer/internal/credentials"
	apierrors "github.com/R3E-Network/storefront_layer/internal/errors"
	"github.com/R3E-Network/storefront_layer/internal/logging"
	"github.com/R3E-Network/storefront_layer/internal/metrics"
)

const (
	// AuthorizationHeader carries the bearer token.
	AuthorizationHeader = "Authorization"
	// TenantHeader carries the tenant code derived from the issuer claim.
	TenantHeader = "x-tenant"
	// RequestIDHeader correlates a logical request across its resend.
	RequestIDHeader = "X-Request-ID"
	// TraceIDHeader propagates the logging trace id.
	TraceIDHeader = "X-Trace-ID"
)

// authTransport is the Auth Interceptor. It injects credentials on the way out
// and performs at most one refresh-and-resend when the backend answers 401.
type authTransport struct {
	backend    string
	base       http.RoundTripper
	store      credentials.Store
	refresher  Refresher
	redirector LoginRedirector
	jar        http.CookieJar
	logger     *logging.Logger
	now        func() time.Time
}

// RoundTrip implements http.RoundTripper.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := drainBody(req)
	if err != nil {
		return nil, err
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	return t.send(req, body, requestID, 0)
}

// send dispatches one attempt. attempt is 0 for the original send and 1 for the
// single resend after a successful refresh; it never goes higher.
func (t *authTransport) send(orig *http.Request, body []byte, requestID string, attempt int) (*http.Response, error) {
	ctx := orig.Context()
	out := t.prepare(orig, body, requestID, attempt)

	start := time.Now()
	resp, err := t.base.RoundTrip(out)
	if err != nil {
		metrics.RecordRequest(t.backend, 0, time.Since(start))
		return nil, err
	}
	metrics.RecordRequest(t.backend, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if attempt > 0 || t.refresher == nil {
		t.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"backend":    t.backend,
			"request_id": requestID,
			"attempt":    attempt,
		}).Warn("request unauthorized; not retrying")
		return resp, nil
	}

	discard(resp)

	t.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"backend":    t.backend,
		"request_id": requestID,
	}).Info("request unauthorized; refreshing session")

	if err := t.refresher.Refresh(ctx); err != nil {
		metrics.RecordRefresh(t.backend, false)
		authErr := apierrors.Auth("session refresh failed", nil, err).
			WithDetails("backend", t.backend).
			WithDetails("request_id", requestID)
		t.logger.LogSecurityEvent(ctx, "token_refresh_failed", map[string]interface{}{
			"backend": t.backend,
			"error":   err.Error(),
		})
		if t.redirector != nil {
			t.redirector.RedirectToLogin(ctx, authErr)
		}
		return nil, authErr
	}
	metrics.RecordRefresh(t.backend, true)

	return t.send(orig, body, requestID, attempt+1)
}

// prepare clones orig and injects the headers the caller did not set.
// Headers are derived from the store on every attempt, so a resend after a
// refresh carries the new token.
func (t *authTransport) prepare(orig *http.Request, body []byte, requestID string, attempt int) *http.Request {
	ctx := orig.Context()
	out := orig.Clone(ctx)

	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		out.ContentLength = int64(len(body))
	}

	out.Header.Set(RequestIDHeader, requestID)
	if traceID := logging.GetTraceID(ctx); traceID != "" && out.Header.Get(TraceIDHeader) == "" {
		out.Header.Set(TraceIDHeader, traceID)
	}

	if attempt > 0 && t.jar != nil {
		// The client attached cookies before the refresh rotated them.
		out.Header.Del("Cookie")
		for _, c := range t.jar.Cookies(out.URL) {
			out.AddCookie(c)
		}
	}

	if out.Header.Get(AuthorizationHeader) != "" || t.store == nil {
		return out
	}

	token, err := t.store.AccessToken(ctx)
	if err != nil {
		t.logger.WithContext(ctx).WithError(err).Debug("credential store unavailable; sending without token")
		return out
	}
	if token == "" {
		return out
	}

	claims := credentials.DecodeClaims(token)
	if claims.Expired(t.now()) {
		return out
	}

	out.Header.Set(AuthorizationHeader, "Bearer "+token)
	if claims != nil && claims.TenantCode != "" && out.Header.Get(TenantHeader) == "" {
		out.Header.Set(TenantHeader, claims.TenantCode)
	}
	return out
}

func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return body, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// =============================================================================
// Login redirect
// =============================================================================

// LoginRedirector is invoked when a refresh fails and the session is over.
type LoginRedirector interface {
	RedirectToLogin(ctx context.Context, cause error)
}

// RedirectFunc adapts a function to LoginRedirector.
type RedirectFunc func(ctx context.Context, cause error)

// RedirectToLogin implements LoginRedirector.
func (f RedirectFunc) RedirectToLogin(ctx context.Context, cause error) {
	f(ctx, cause)
}

// LogRedirector records the redirect target; used outside a browser.
type LogRedirector struct {
	LoginURL string
	Logger   *logging.Logger
}

// RedirectToLogin implements LoginRedirector.
func (r LogRedirector) RedirectToLogin(ctx context.Context, cause error) {
	logger := r.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.WithContext(ctx).WithError(cause).WithField("login_url", r.LoginURL).Warn("session expired; redirecting to login")
}
