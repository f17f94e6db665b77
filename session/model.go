package session

import (
	"context"
	"errors"
)

type contextKey string

const (
	sessionKey contextKey = "USER_SESSION_DATA"
)
const sessionCookieName = "session"

// ErrNoSession means the request carries no usable session cookie.
var ErrNoSession = errors.New("no session")

// UserSessionData binds an HTTP session to an authenticated user. It never
// carries tokens: the token record's lifetime in the cache is independent
// of the session's, and either may outlive the other.
type UserSessionData struct {
	UserID    string `json:"user_id"`
	SignedIn  bool   `json:"signed_in"`
	ExpiresAt int64  `json:"expires_at"`
}

// WithContext attaches session data to context
func (u *UserSessionData) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey, u)
}

// GetSession retrieves session data previously attached to ctx.
func GetSession(ctx context.Context) (*UserSessionData, error) {
	v := ctx.Value(sessionKey)
	if v == nil {
		return nil, ErrNoSession
	}
	u, ok := v.(*UserSessionData)
	if !ok {
		return nil, errors.New("invalid session type in context")
	}
	return u, nil
}
