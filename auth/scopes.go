package auth

// Platform is the integration surface consuming a credential.
type Platform string

// Target is the third-party service a credential grants access to.
type Target string

const (
	PlatformWeb Platform = "web"
	PlatformGPT Platform = "gpt"

	TargetCalendar Target = "calendar"
)

type scopeKey struct {
	platform Platform
	target   Target
}

// scopeRegistry is the closed set of supported (platform, target) pairs.
// Slices here are ordered; ScopesFor returns copies so persisted scope
// strings stay byte-for-byte comparable across writes.
var scopeRegistry = map[scopeKey][]string{
	{PlatformWeb, TargetCalendar}: {
		"openid",
		"https://www.googleapis.com/auth/calendar.readonly",
		"https://www.googleapis.com/auth/userinfo.email",
	},
	{PlatformGPT, TargetCalendar}: {
		"openid",
		"https://www.googleapis.com/auth/calendar",
		"https://www.googleapis.com/auth/userinfo.email",
	},
}

// ScopesFor returns the authorization scopes required for the pair, in
// stable order. Unregistered pairs fail with ErrUnsupportedPlatform before
// any network call is made.
func ScopesFor(platform Platform, target Target) ([]string, error) {
	scopes, ok := scopeRegistry[scopeKey{platform, target}]
	if !ok {
		return nil, ErrUnsupportedPlatform
	}
	out := make([]string, len(scopes))
	copy(out, scopes)
	return out, nil
}
