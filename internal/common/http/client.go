// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"
)

type requestIDKey struct{}

// RequestIDHeader carries the correlation id to upstream services.
const RequestIDHeader = "X-Request-ID"

// WithRequestID stores a correlation id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation id stored on ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Client is the base HTTP client for upstream APIs. It stamps auth,
// user agent and correlation headers on every request.
type Client struct {
	httpClient *http.Client
	token      string
	userAgent  string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: "capacityd/1.0",
	}
}

// WithBearerToken returns a copy of c that authenticates with token.
func (c *Client) WithBearerToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// WithUserAgent returns a copy of c using ua.
func (c *Client) WithUserAgent(ua string) *Client {
	cp := *c
	cp.userAgent = ua
	return &cp
}

// WithTransport swaps the underlying RoundTripper.
func (c *Client) WithTransport(rt http.RoundTripper) *Client {
	cp := *c
	hc := *c.httpClient
	hc.Transport = rt
	cp.httpClient = &hc
	return &cp
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if id := RequestIDFromContext(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
	return c.httpClient.Do(req)
}
