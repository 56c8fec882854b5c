package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	apierrors "github.com/R3E-Network/storefront_layer/internal/errors"
)

const (
	maxErrorBodyBytes   = 64 << 10
	maxSuccessBodyBytes = 8 << 20
)

// Request is one JSON call against a backend.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is marshaled as JSON unless it is already []byte or json.RawMessage.
	Body   interface{}
	Header http.Header
}

// Response is a successful (2xx) backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON unmarshals the body into v.
func (r *Response) JSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apierrors.Decode("response body is not valid JSON", err)
	}
	return nil
}

// Client is bound to one backend host. It is read-only after creation and
// shared by every service targeting that host.
type Client struct {
	name       string
	baseURL    *url.URL
	httpClient *http.Client
}

// Name returns the backend name the client was created for.
func (c *Client) Name() string {
	return c.name
}

// BaseURL returns the bound base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do sends req and returns the response, or an *errors.APIError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, apierrors.Request("request is required", nil).WithDetails("backend", c.name)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if req.Body != nil {
		payload, err := encodeBody(req.Body)
		if err != nil {
			return nil, apierrors.Request("encode request body", err).WithDetails("backend", c.name)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.resolve(req.Path, req.Query), bodyReader)
	if err != nil {
		return nil, apierrors.Request("create request", err).WithDetails("backend", c.name)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if bodyReader != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// http.Client wraps RoundTrip errors in *url.Error.
		if apiErr := apierrors.GetAPIError(err); apiErr != nil {
			return nil, apiErr
		}
		return nil, apierrors.Network(err).WithDetails("backend", c.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, parseErrorResponse(resp.StatusCode, respBody).WithDetails("backend", c.name)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxSuccessBodyBytes))
	if err != nil {
		return nil, apierrors.Network(fmt.Errorf("read response: %w", err)).WithDetails("backend", c.name)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	}
	return json.Marshal(body)
}

// parseErrorResponse normalizes a non-2xx response into {message, status, data}.
func parseErrorResponse(status int, body []byte) *apierrors.APIError {
	var data interface{}
	message := ""

	if len(body) > 0 {
		if gjson.ValidBytes(body) {
			data = json.RawMessage(body)
			for _, key := range []string{"message", "error.message", "error", "detail"} {
				if v := gjson.GetBytes(body, key); v.Type == gjson.String && v.Str != "" {
					message = v.Str
					break
				}
			}
		} else {
			data = string(body)
		}
	}

	return apierrors.FromStatus(status, message, data)
}
