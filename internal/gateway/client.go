// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Configuration defaults for the backend client.
const (
	// DefaultBaseURL is the local development backend.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// DefaultTimeout bounds non-streaming requests. Streaming requests are
	// bounded by their context only.
	DefaultTimeout = 30 * time.Second

	// MaxErrorBodySize caps how much of a failed streaming response is read.
	MaxErrorBodySize = 64 * 1024

	// UserAgent is sent with every request.
	UserAgent = "rigchat/0.1.0"
)

// TokenSource supplies the bearer credential for outgoing requests. ok is
// false when no session exists.
type TokenSource interface {
	Token() (token string, ok bool)
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, bool) {
	return string(t), t != ""
}

// Client talks to the chat backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	tokens  TokenSource
	rest    *resty.Client
	stream  *resty.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// New creates a client for baseURL. tokens may be nil for anonymous calls
// such as login.
func New(baseURL string, tokens TokenSource) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	logger := log.New(io.Discard, "", 0)

	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		logger:  logger,
	}
	c.rest = newResty(baseURL, logger).SetTimeout(DefaultTimeout)
	c.stream = newResty(baseURL, logger)
	return c
}

func newResty(baseURL string, logger *log.Logger) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", UserAgent).
		SetLogger(restyLogger{logger})
}

// WithTimeout sets the timeout for non-streaming requests.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.rest.SetTimeout(d)
	}
	return c
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables throttling.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger routes request logs to logger.
func (c *Client) WithLogger(logger *log.Logger) *Client {
	if logger == nil {
		return c
	}
	c.logger = logger
	c.rest.SetLogger(restyLogger{logger})
	c.stream.SetLogger(restyLogger{logger})
	return c
}

// WithTokenSource replaces the credential provider.
func (c *Client) WithTokenSource(tokens TokenSource) *Client {
	c.tokens = tokens
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// request waits for the limiter and prepares an authorized request.
func (c *Client) request(ctx context.Context, op string, rc *resty.Client) (*resty.Request, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Printf("API_THROTTLED | op=%s error=%v", op, err)
			return nil, transportError(op, err)
		}
	}
	req := rc.R().SetContext(ctx)
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.SetAuthToken(token)
		}
	}
	return req, nil
}

// execute runs a non-streaming request and decodes a 2xx body into out.
func (c *Client) execute(op string, req *resty.Request, method, path string, out any) error {
	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Printf("API_ERROR | op=%s method=%s path=%s error=%v", op, method, path, err)
		return transportError(op, err)
	}
	c.logger.Printf("API_RESPONSE | op=%s method=%s path=%s status=%d duration=%v",
		op, method, path, resp.StatusCode(), time.Since(start).Round(time.Millisecond))

	if !resp.IsSuccess() {
		return applicationError(op, resp.StatusCode(), resp.Body())
	}
	if out == nil {
		return nil
	}
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return transportError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// call runs a non-streaming request and returns its envelope. A nil body
// sends no payload. Result[Empty] skips decoding the response body.
func call[T any](ctx context.Context, c *Client, op, method, path string, params map[string]string, body any) Result[T] {
	req, err := c.request(ctx, op, c.rest)
	if err != nil {
		return failed[T](err)
	}
	req.SetPathParams(params)
	if body != nil {
		req.SetBody(body)
	}

	var data T
	var out any = &data
	if _, ok := out.(*Empty); ok {
		out = nil
	}
	if err := c.execute(op, req, method, path, out); err != nil {
		return failed[T](err)
	}
	return Result[T]{Success: true, Data: data}
}

// restyLogger adapts a *log.Logger to resty's logger interface.
type restyLogger struct {
	l *log.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.l.Printf("RESTY_ERROR | "+format, v...)
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.l.Printf("RESTY_WARN | "+format, v...)
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.l.Printf("RESTY_DEBUG | "+format, v...)
}
