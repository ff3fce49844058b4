// Package api is the HTTP client of the document-batch back-office API.
package api

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
	"sync"
	"time"

	"go.uber.org/zap"

	"smartcheck/internal/adapters/util"
	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
)

var (
	_ ports.BatchAPI = (*Client)(nil)
	_ ports.DealAPI  = (*Client)(nil)
)

// Client talks to the back-office API on behalf of one operator session.
type Client struct {
	baseURL   string
	http      *http.Client
	logger    *zap.Logger
	onExpired func(models.Session)
	now       func() time.Time

	mu      sync.RWMutex
	session models.Session
}

type options struct {
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	base       http.RoundTripper
}

type Option func(*Client, *options)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client, _ *options) { c.logger = l }
}

func WithSession(s models.Session) Option {
	return func(c *Client, _ *options) { c.session = s }
}

// OnAuthExpired registers the hook run when the API rejects the session.
func OnAuthExpired(fn func(models.Session)) Option {
	return func(c *Client, _ *options) { c.onExpired = fn }
}

func WithTimeout(d time.Duration) Option {
	return func(_ *Client, o *options) { o.timeout = d }
}

func WithRetries(n int, backoff time.Duration) Option {
	return func(_ *Client, o *options) {
		o.maxRetries = n
		o.backoff = backoff
	}
}

// WithBaseTransport replaces http.DefaultTransport at the bottom of the stack.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(_ *Client, o *options) { o.base = rt }
}

// NewClient creates an API client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	o := options{
		timeout:    5 * time.Minute, // large scans take a while to upload
		maxRetries: 3,
		base:       http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c, &o)
	}

	c.http = &http.Client{
		Transport: &sessionTransport{
			client: c,
			base: &util.RetryTransport{
				MaxRetries: o.maxRetries,
				Backoff:    o.backoff,
				Logger:     c.logger,
				Base:       &util.LoggingTransport{Base: o.base, Logger: c.logger},
			},
		},
		Timeout: o.timeout,
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// send executes req and maps transport and status failures to typed errors.
// On success the caller owns resp.Body.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return nil, ErrAuthExpired
		}
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{Method: req.Method, URL: req.URL.Redacted(), Err: unwrapURLError(err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, newHTTPError(resp.StatusCode, respBody)
	}
	return resp, nil
}

// download returns the body of a binary endpoint.
func (c *Client) download(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
