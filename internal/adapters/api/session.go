package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"smartcheck/internal/core/domain/models"
)

const loginPath = "/auth/login"

// sessionTransport attaches the bearer token and turns any 401 outside the
// login endpoint into a cleared session and ErrAuthExpired.
type sessionTransport struct {
	client *Client
	base   http.RoundTripper
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.client.Session().Token
	if token != "" && req.Header.Get("Authorization") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || strings.HasSuffix(req.URL.Path, loginPath) {
		return resp, nil
	}

	resp.Body.Close()
	t.client.expire(token, req.URL.Path)
	return nil, ErrAuthExpired
}

// Session returns the current session. The zero value means logged out.
func (c *Client) Session() models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession replaces the session, e.g. after loading it from disk.
func (c *Client) SetSession(s models.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = models.Session{}
	c.mu.Unlock()
}

// expire clears the session that issued a rejected request. Concurrent 401s
// for the same token fire the hook once.
func (c *Client) expire(token, path string) {
	c.mu.Lock()
	if token == "" || c.session.Token != token {
		c.mu.Unlock()
		return
	}
	expired := c.session
	c.session = models.Session{}
	c.mu.Unlock()

	c.logger.Warn("session rejected by api", zap.String("path", path), zap.String("user", expired.Username))
	if c.onExpired != nil {
		c.onExpired(expired)
	}
}
