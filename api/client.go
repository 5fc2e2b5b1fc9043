// Package api is the REST client for the flower-shop backend.
//
// Every request carries Accept: application/json and an X-Request-ID.
// Non-2xx answers come back as *StatusError; transport failures are wrapped
// with the operation name. Nothing is retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/itsneelabh/storefront/core"
	"github.com/itsneelabh/storefront/resilience"
	"github.com/itsneelabh/storefront/telemetry"
)

// HeaderRequestID carries a per-request uuid for backend log correlation.
const HeaderRequestID = "X-Request-ID"

// MetricRequests counts backend calls by operation and status class.
const MetricRequests = "storefront.api.requests"

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	jar       http.CookieJar
	cookies   *cookieStore
	breaker   *resilience.CircuitBreaker
	userAgent string
	timeout   time.Duration

	httpSet   bool
	logger    core.Logger
	telemetry core.Telemetry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client and transport chain. A cookie
// jar is added when the client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
			c.httpSet = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		c.logger = core.ComponentLogger(logger, "storefront/api")
	}
}

// WithTelemetry instruments requests with spans and counters.
func WithTelemetry(t core.Telemetry) Option {
	return func(c *Client) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithCircuitBreaker guards the transport with breaker.
func WithCircuitBreaker(breaker *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = breaker
	}
}

// WithCookieMemory persists the backend session cookies in mem.
func WithCookieMemory(mem core.Memory) Option {
	return func(c *Client) {
		if mem != nil {
			c.cookies = &cookieStore{memory: mem, key: core.KeySessionCookies}
		}
	}
}

// NewClient builds a client for cfg.BaseURL.
func NewClient(cfg core.APIConfig, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, core.NewStoreError("api.NewClient", "config",
			errors.Wrapf(core.ErrInvalidConfiguration, "invalid base url %q", cfg.BaseURL))
	}

	c := &Client{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(c)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create cookie jar")
	}

	if !c.httpSet {
		var transport http.RoundTripper = http.DefaultTransport
		if c.breaker != nil {
			transport = resilience.NewTransport(transport, c.breaker)
		}
		c.http = &http.Client{
			Transport: telemetry.HTTPTransport(c.telemetry, transport),
			Timeout:   c.timeout,
		}
	}
	if c.http.Jar == nil {
		c.http.Jar = jar
	}
	c.jar = c.http.Jar

	return c, nil
}

// NewFromConfig wires a client the way the CLI and App use it: breaker from
// the resilience section, cookie persistence when enabled.
func NewFromConfig(cfg *core.Config, mem core.Memory, logger core.Logger, t core.Telemetry) (*Client, error) {
	opts := []Option{WithLogger(logger), WithTelemetry(t)}

	if cfg.Resilience.CircuitBreaker.Enabled {
		cbConfig := resilience.FromConfig("backend", cfg.Resilience.CircuitBreaker)
		cbConfig.Logger = core.ComponentLogger(logger, "storefront/resilience")
		cbConfig.Metrics = resilience.NewTelemetryMetrics(t)
		breaker, err := resilience.NewCircuitBreaker(cbConfig)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCircuitBreaker(breaker))
	}
	if cfg.Session.PersistCookies {
		opts = append(opts, WithCookieMemory(mem))
	}
	return NewClient(cfg.API, opts...)
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Breaker returns the circuit breaker, or nil when none is configured.
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

// Do sends a request and reads the whole response. It only fails on
// transport errors; callers decide what a non-2xx status means.
func (c *Client) Do(ctx context.Context, op, method, path string, query url.Values, body interface{}) (*Response, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "api."+op)
	defer span.End()

	if err := c.cookies.load(ctx, c.jar, c.baseURL); err != nil {
		c.logger.Warn("Failed to restore session cookies", map[string]interface{}{
			"error": err.Error(),
		})
	}

	target := c.baseURL.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrapf(err, "%s: encode request", op)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "%s: build request", op)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	span.SetAttribute("http.method", method)
	span.SetAttribute("http.path", path)
	span.SetAttribute("request_id", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		c.record(op, "error")
		c.logger.Warn("Backend request failed", map[string]interface{}{
			"operation":  op,
			"method":     method,
			"path":       path,
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, errors.Wrapf(transportError(err), "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		c.record(op, "error")
		return nil, errors.Wrapf(err, "%s %s: read body", method, path)
	}

	span.SetAttribute("http.status_code", resp.StatusCode)
	c.record(op, strconv.Itoa(resp.StatusCode/100)+"xx")
	c.logger.Debug("Backend request completed", map[string]interface{}{
		"operation":   op,
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"request_id":  requestID,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if len(resp.Header.Values("Set-Cookie")) > 0 {
		if err := c.cookies.save(ctx, c.jar, c.baseURL); err != nil {
			c.logger.Warn("Failed to persist session cookies", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// doOK is Do plus a *StatusError for non-2xx responses.
func (c *Client) doOK(ctx context.Context, op, method, path string, query url.Values, body interface{}) (*Response, error) {
	resp, err := c.Do(ctx, op, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, errors.Wrapf(newStatusError(resp), "%s %s", method, path)
	}
	return resp, nil
}

func (c *Client) record(op, status string) {
	c.telemetry.RecordMetric(MetricRequests, 1, map[string]string{
		"operation": op,
		"status":    status,
	})
}
