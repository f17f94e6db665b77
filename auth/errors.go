package auth

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnsupportedPlatform means the (platform, target) pair is not in
	// the scope registry.
	ErrUnsupportedPlatform = errors.New("unsupported platform/target")

	// ErrUnauthenticated is a normal outcome, not a fault: the caller must
	// send the user back through the authorization flow.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrNoRefreshToken means a refresh was requested for a grant that
	// cannot be refreshed.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrCacheUnavailable wraps cache transport failures. It is never
	// treated as "no token stored".
	ErrCacheUnavailable = errors.New("credential cache unavailable")
)

// TokenExchangeError is a non-2xx response from the provider token endpoint
// during an authorization-code exchange.
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: status=%d body=%q", e.Status, e.Body)
}

// RefreshError is a non-2xx response during a refresh-token grant.
type RefreshError struct {
	Status int
	Body   string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: status=%d body=%q", e.Status, e.Body)
}

// IdentityFetchError is a failed call to the provider userinfo endpoint.
type IdentityFetchError struct {
	Status int
	Body   string
}

func (e *IdentityFetchError) Error() string {
	return fmt.Sprintf("identity fetch failed: status=%d body=%q", e.Status, e.Body)
}

// Temporary reports whether retrying the same operation could succeed:
// transport-level failures and provider 5xx responses are transient, 4xx
// rejections are not.
func Temporary(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if status, ok := providerStatus(err); ok {
		return status >= 500
	}
	return false
}

// NeedsReauth reports whether the error means the grant is unusable and the
// user must consent again, as opposed to an internal fault.
func NeedsReauth(err error) bool {
	if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrNoRefreshToken) {
		return true
	}
	if status, ok := providerStatus(err); ok {
		return status >= 400 && status < 500
	}
	return false
}

func providerStatus(err error) (int, bool) {
	var exchErr *TokenExchangeError
	if errors.As(err, &exchErr) {
		return exchErr.Status, true
	}
	var refErr *RefreshError
	if errors.As(err, &refErr) {
		return refErr.Status, true
	}
	var idErr *IdentityFetchError
	if errors.As(err, &idErr) {
		return idErr.Status, true
	}
	return 0, false
}
