package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fatflowers/checkout/pkg/metrics"
	"github.com/fatflowers/checkout/pkg/types"
)

const (
	defaultTimeout  = 20 * time.Second
	maxResponseSize = 1 << 20
)

// Options tunes how an adapter talks to its provider.
type Options struct {
	// BaseURL replaces the provider's production API root.
	BaseURL string
	Timeout time.Duration
	// HTTPClient replaces the default client. Efi still wraps it with OAuth2.
	HTTPClient *http.Client
	// Tolerance bounds the age of timestamped webhook signatures.
	Tolerance time.Duration
	Now       func() time.Time
}

func (o Options) baseURL(def string) string {
	if o.BaseURL != "" {
		return strings.TrimRight(o.BaseURL, "/")
	}
	return def
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) tolerance() time.Duration {
	if o.Tolerance > 0 {
		return o.Tolerance
	}
	return DefaultSignatureTolerance
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Gateway    types.Gateway
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Gateway, e.Op, e.StatusCode, truncate(e.Body, 512))
}

// Declined reports a 4xx answer, which providers use for business refusals.
func (e *APIError) Declined() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func asDecline(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Declined() {
		return apiErr, true
	}
	return nil, false
}

type restClient struct {
	gateway types.Gateway
	baseURL string
	http    *http.Client
	// authorize decorates every outgoing request with credentials.
	authorize func(req *http.Request)
}

func (c *restClient) doJSON(ctx context.Context, op, method, path string, in, out any, header map[string]string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: marshal request: %w", c.gateway, op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", c.gateway, op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	return c.send(op, req, out)
}

func (c *restClient) doForm(ctx context.Context, op, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", c.gateway, op, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.send(op, req, out)
}

func (c *restClient) send(op string, req *http.Request, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveGatewayCall(string(c.gateway), op, start, err) }()

	if c.authorize != nil {
		c.authorize(req)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", c.gateway, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", c.gateway, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Gateway: c.gateway, Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", c.gateway, op, err)
	}
	return nil
}

// errorMessage digs a human readable reason out of a provider error body.
func errorMessage(body string, keys ...string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return truncate(strings.TrimSpace(body), 200)
	}
	for _, k := range keys {
		cur := any(m)
		for _, part := range strings.Split(k, ".") {
			obj, ok := cur.(map[string]any)
			if !ok {
				cur = nil
				break
			}
			cur = obj[part]
		}
		if s, ok := cur.(string); ok && s != "" {
			return s
		}
	}
	return truncate(strings.TrimSpace(body), 200)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// flexibleID decodes ids that providers send either as strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

func (f flexibleID) String() string { return string(f) }
