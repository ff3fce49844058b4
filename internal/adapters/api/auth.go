package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"smartcheck/internal/core/domain/models"
)

// Login exchanges credentials for a session and makes it current.
func (c *Client) Login(ctx context.Context, emailOrUsername, password string) (models.Session, error) {
	var resp models.LoginResponse
	err := c.do(ctx, http.MethodPost, loginPath, models.LoginRequest{
		EmailOrUsername: emailOrUsername,
		Password:        password,
	}, &resp)
	if err != nil {
		return models.Session{}, err
	}

	s := models.NewSession(resp, c.now())
	c.SetSession(s)
	c.logger.Info("logged in", zap.String("user", s.Username), zap.String("role", string(s.Role)))
	return s, nil
}

// Logout revokes the token server-side when possible. The local session is
// cleared whatever the outcome.
func (c *Client) Logout(ctx context.Context) error {
	token := c.Session().Token
	if token == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{"token": token}, nil)
	c.clearSession()
	if errors.Is(err, ErrAuthExpired) {
		return nil
	}
	if err != nil {
		c.logger.Warn("logout request failed", zap.Error(err))
	}
	return err
}
