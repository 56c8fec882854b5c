package credentials

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims are the identity values carried by the bearer token.
// They are decoded without verification; the backend remains the authority.
type IdentityClaims struct {
	Subject     string
	Issuer      string
	TenantCode  string
	ExpiresAt   time.Time
	UserID      int64
	CompanyID   int64
	TenantID    string
	ElasticCode string
}

// Expired reports whether the token expired at or before now.
// A token without an exp claim never expires client-side.
func (c *IdentityClaims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

var parser = jwt.NewParser()

// DecodeClaims decodes the payload of a JWT without verifying its signature.
// Any malformed input (segment count, encoding, JSON) yields nil.
func DecodeClaims(token string) *IdentityClaims {
	token = strings.TrimSpace(token)
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil
	}

	// Only the payload is read; the header (alg, typ) is never consulted.
	payload, err := parser.DecodeSegment(segments[1])
	if err != nil {
		return nil
	}
	raw := jwt.MapClaims{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil
	}

	claims := &IdentityClaims{
		Subject:     stringClaim(raw, "sub"),
		Issuer:      stringClaim(raw, "iss"),
		UserID:      intClaim(raw, "userId", "user_id"),
		CompanyID:   intClaim(raw, "companyId", "company_id"),
		TenantID:    stringClaim(raw, "tenantId", "tenant_id"),
		ElasticCode: stringClaim(raw, "elasticCode", "elastic_code"),
	}
	claims.TenantCode = TenantFromIssuer(claims.Issuer)

	if exp, err := raw.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims
}

// TenantFromIssuer maps an issuer claim onto a tenant code. URL issuers
// (".../realms/<tenant>") resolve to their last path segment.
func TenantFromIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return ""
	}
	u, err := url.Parse(issuer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return issuer
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return u.Host
	}
	segments := strings.Split(path, "/")
	return segments[len(segments)-1]
}

func stringClaim(raw jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func intClaim(raw jwt.MapClaims, keys ...string) int64 {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return int64(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}
