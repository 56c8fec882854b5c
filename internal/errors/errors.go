// Package errors defines the error taxonomy shared by the backend-communication layer.
//
// Every failure that crosses a client boundary is normalized into an *APIError
// carrying a Kind, a human readable message, the HTTP status (0 when no response
// was received) and the decoded response payload, if any.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an APIError.
type Kind string

const (
	// KindNetwork means no response was received.
	KindNetwork Kind = "network"
	// KindAuth is a 401, possibly after the one-shot refresh was exhausted.
	KindAuth Kind = "auth"
	// KindClient is any other 4xx.
	KindClient Kind = "client"
	// KindServer is a 5xx.
	KindServer Kind = "server"
	// KindDecode is a malformed token or response shape.
	KindDecode Kind = "decode"
	// KindRequest means the request could not be built, so nothing was sent.
	KindRequest Kind = "request"
)

// APIError is the normalized {message, status, data} error shape.
type APIError struct {
	Kind    Kind                   `json:"kind"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Data    interface{}            `json:"data,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a diagnostic key/value and returns the same error.
func (e *APIError) WithDetails(key string, value interface{}) *APIError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Network wraps a transport failure where no response was received.
func Network(err error) *APIError {
	return &APIError{
		Kind:    KindNetwork,
		Message: "no response received",
		Err:     err,
	}
}

// Auth builds an authentication failure.
func Auth(message string, data interface{}, cause error) *APIError {
	if message == "" {
		message = http.StatusText(http.StatusUnauthorized)
	}
	return &APIError{
		Kind:    KindAuth,
		Message: message,
		Status:  http.StatusUnauthorized,
		Data:    data,
		Err:     cause,
	}
}

// Decode builds a decode failure for malformed tokens or response envelopes.
func Decode(message string, cause error) *APIError {
	return &APIError{
		Kind:    KindDecode,
		Message: message,
		Err:     cause,
	}
}

// Request builds a failure raised before dispatch: no client for the
// backend, or a payload that cannot be encoded.
func Request(message string, cause error) *APIError {
	return &APIError{
		Kind:    KindRequest,
		Message: message,
		Err:     cause,
	}
}

// FromStatus maps a non-2xx HTTP status onto the taxonomy.
func FromStatus(status int, message string, data interface{}) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}
	kind := KindClient
	switch {
	case status == http.StatusUnauthorized:
		kind = KindAuth
	case status >= 500:
		kind = KindServer
	}
	return &APIError{
		Kind:    kind,
		Message: message,
		Status:  status,
		Data:    data,
	}
}

// GetAPIError extracts an *APIError from an error chain.
func GetAPIError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// IsKind reports whether err carries an *APIError of the given kind.
func IsKind(err error, kind Kind) bool {
	apiErr := GetAPIError(err)
	return apiErr != nil && apiErr.Kind == kind
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if apiErr := GetAPIError(err); apiErr != nil {
		return apiErr.Status
	}
	return 0
}
