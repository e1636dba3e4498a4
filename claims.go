package identity

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the signed envelope the HTTP boundary carries in
// the session cookie. It transports the session id and user id; the
// envelope never replaces the server-side session lookup, it only
// spares the boundary a database hit to learn which session to check.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
}

// GetSessionID returns the wrapped session id.
func (c *SessionClaims) GetSessionID() string {
	if c == nil {
		return ""
	}
	return c.SessionID
}

// GetUserID returns the wrapped user id.
func (c *SessionClaims) GetUserID() string {
	if c == nil {
		return ""
	}
	return c.UserID
}
