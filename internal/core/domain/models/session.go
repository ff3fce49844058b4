package models

import "time"

type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// Session is the authenticated state of an operator. The zero value is a
// logged-out session.
type Session struct {
	Token     string    `json:"access_token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Role      UserRole  `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession builds a session from a login response received at now.
func NewSession(resp LoginResponse, now time.Time) Session {
	s := Session{
		Token:    resp.AccessToken,
		UserID:   resp.UserID,
		Username: resp.Username,
		Role:     UserRole(resp.Role),
	}
	if resp.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return s
}

// Authenticated reports whether s carries a token that has not expired at now.
// A session without an expiry never expires locally; the server decides.
func (s Session) Authenticated(now time.Time) bool {
	if s.Token == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}
