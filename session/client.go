package session

import (
	"net/http"
	"time"
)

// Client issues and verifies signed session cookies. The cookie carries the
// provider-derived user id and nothing else.
type Client struct {
	ttl    time.Duration
	secret []byte
}

// NewClient constructs a Client
func NewClient(secret []byte, sessionTTL time.Duration) *Client {
	return &Client{
		ttl:    sessionTTL,
		secret: secret,
	}
}

// Establish signs the user into a new session cookie after a successful
// OAuth callback.
func (c *Client) Establish(w http.ResponseWriter, userID string) (*UserSessionData, error) {
	u := &UserSessionData{
		UserID:    userID,
		SignedIn:  true,
		ExpiresAt: time.Now().Add(c.ttl).Unix(),
	}
	if err := SetSessionCookie(w, u, c.secret); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate loads the session from the request cookie. ErrNoSession
// covers both a missing cookie and an expired or tampered one.
func (c *Client) Authenticate(r *http.Request) (*UserSessionData, error) {
	u, err := GetSessionFromCookie(r, c.secret)
	if err != nil {
		return nil, ErrNoSession
	}
	return u, nil
}

// Clear signs the user out by expiring the cookie.
func (c *Client) Clear(w http.ResponseWriter) {
	ClearSessionCookie(w)
}
