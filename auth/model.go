package auth

import (
	"strings"
	"time"
)

// expirySkew is the window before expires_at during which a token is
// already treated as expired, so a refresh happens ahead of the provider
// rejecting the token mid-request.
const expirySkew = time.Minute

// TokenRecord is one persisted OAuth2 grant for a (platform, target, user)
// tuple. A record is never patched in place: refresh and persist always
// write a complete replacement.
type TokenRecord struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenType    string   `json:"token_type"`
	Scope        []string `json:"scope"`
	IssuedAt     int64    `json:"issued_at"`
	ExpiresIn    int64    `json:"expires_in"`
	// ExpiresAt is derived locally as capture time + expires_in; the
	// provider's own expiry claims are never trusted directly.
	ExpiresAt int64 `json:"expires_at"`
}

// Expired reports whether the access token is past (or within the refresh
// skew of) its derived expiry.
func (t *TokenRecord) Expired(now time.Time) bool {
	if t.ExpiresAt == 0 {
		return true
	}
	return now.Add(expirySkew).Unix() >= t.ExpiresAt
}

// CanRefresh reports whether a silent refresh is possible at all.
func (t *TokenRecord) CanRefresh() bool {
	return t.RefreshToken != ""
}

// ScopeString returns the scope set space-joined, as it appears on the wire.
func (t *TokenRecord) ScopeString() string {
	return strings.Join(t.Scope, " ")
}

// UserIdentity is the provider's answer from the userinfo endpoint.
type UserIdentity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// UserID returns the stable identifier used in cache keys: the email when
// the provider supplies one, otherwise the subject claim.
func (u *UserIdentity) UserID() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Subject
}
