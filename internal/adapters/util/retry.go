package util

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryTransport retries idempotent requests on gateway errors and transport
// failures with exponential backoff.
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
	// Backoff is the first delay; it doubles on each attempt up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	Logger     *zap.Logger
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if !idempotent(req.Method) || t.MaxRetries <= 0 {
		return base.RoundTrip(req)
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return base.RoundTrip(req)
	}

	delay := t.Backoff
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	maxDelay := t.MaxBackoff
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for attempt := 0; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if attempt >= t.MaxRetries || !retryable(resp, err) {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}
		if t.Logger != nil {
			fields := []zap.Field{zap.String("url", req.URL.String()), zap.Int("attempt", attempt+1)}
			if err != nil {
				fields = append(fields, zap.Error(err))
			} else {
				fields = append(fields, zap.Int("status", resp.StatusCode))
			}
			t.Logger.Warn("retrying request", fields...)
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}

		if req.GetBody != nil {
			body, gerr := req.GetBody()
			if gerr != nil {
				return nil, gerr
			}
			req = req.Clone(req.Context())
			req.Body = body
		}
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
