package resilience

import (
	"fmt"
	"net/http"
)

// Transport wraps an http.RoundTripper with circuit breaker protection.
// Network errors and 5xx responses count as failures; 4xx responses do not.
// Requests are never retried.
type Transport struct {
	base    http.RoundTripper
	breaker *CircuitBreaker
}

// NewTransport wraps base (http.DefaultTransport when nil) with breaker.
func NewTransport(base http.RoundTripper, breaker *CircuitBreaker) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, breaker: breaker}
}

// ServerError marks a 5xx response for the breaker. The response itself is
// still returned to the caller.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: HTTP %d", e.StatusCode)
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := t.breaker.Execute(req.Context(), func() error {
		var rtErr error
		resp, rtErr = t.base.RoundTrip(req)
		if rtErr != nil {
			return rtErr
		}
		if resp.StatusCode >= 500 {
			return &ServerError{StatusCode: resp.StatusCode}
		}
		return nil
	})

	if resp != nil {
		// 5xx: the breaker counted it, the caller still sees the response
		return resp, nil
	}
	return nil, err
}

// Breaker exposes the underlying breaker for state inspection
func (t *Transport) Breaker() *CircuitBreaker {
	return t.breaker
}
