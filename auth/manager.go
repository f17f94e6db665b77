package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultRecordTTL = 30 * 24 * time.Hour

// ProviderConfig holds the OAuth client credentials and provider endpoints.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RevokeURL    string
}

// GoogleProvider returns the Google endpoint set with the given client
// credentials.
func GoogleProvider(clientID, clientSecret, redirectURL string) ProviderConfig {
	return ProviderConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://www.googleapis.com/oauth2/v3/userinfo",
		RevokeURL:    "https://oauth2.googleapis.com/revoke",
	}
}

// Manager owns the credential lifecycle: authorization URLs, code exchange,
// identity lookup, persistence, silent refresh, and revocation. All cache
// keys flow through the injected TokenStore, never built elsewhere.
type Manager struct {
	provider ProviderConfig
	store    TokenStore
	client   *http.Client
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager constructs a Manager. client bounds every provider call and
// must carry a timeout; ttl bounds how long records linger in the cache
// (zero means the default of 30 days).
func NewManager(provider ProviderConfig, store TokenStore, client *http.Client, ttl time.Duration, logger *slog.Logger) *Manager {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = defaultRecordTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		provider: provider,
		store:    store,
		client:   client,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

func (m *Manager) oauthConfig(platform Platform, target Target) (*oauth2.Config, error) {
	scopes, err := ScopesFor(platform, target)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     m.provider.ClientID,
		ClientSecret: m.provider.ClientSecret,
		RedirectURL:  m.provider.RedirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.provider.AuthURL,
			TokenURL: m.provider.TokenURL,
		},
	}, nil
}

// withHTTPClient makes oauth2 calls go through the manager's bounded client.
func (m *Manager) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}

// AuthorizationURL builds the provider consent URL for the pair. Offline
// access and forced consent are required: without them the provider only
// issues a refresh token on the very first approval, and re-logins silently
// lose refreshability.
func (m *Manager) AuthorizationURL(platform Platform, target Target, state string) (string, error) {
	cfg, err := m.oauthConfig(platform, target)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// ExchangeCode trades an authorization code for a fresh TokenRecord. The
// record is returned, not persisted: the caller must resolve the user's
// identity first, since the cache key depends on it.
func (m *Manager) ExchangeCode(ctx context.Context, platform Platform, target Target, code string) (*TokenRecord, error) {
	cfg, err := m.oauthConfig(platform, target)
	if err != nil {
		return nil, err
	}
	tok, err := cfg.Exchange(m.withHTTPClient(ctx), code)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			return nil, &TokenExchangeError{Status: rErr.Response.StatusCode, Body: string(rErr.Body)}
		}
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return m.recordFromToken(tok, cfg.Scopes), nil
}

// FetchIdentity resolves the stable tenant identity behind an access token.
// This call is mandatory right after ExchangeCode; nothing else in the flow
// knows who the grant belongs to.
func (m *Manager) FetchIdentity(ctx context.Context, accessToken string) (*UserIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.provider.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity fetch: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("identity fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &IdentityFetchError{Status: resp.StatusCode, Body: string(body)}
	}
	var identity UserIdentity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, &IdentityFetchError{Status: resp.StatusCode, Body: "unparseable userinfo response"}
	}
	if identity.UserID() == "" {
		return nil, &IdentityFetchError{Status: resp.StatusCode, Body: "userinfo response has no subject"}
	}
	return &identity, nil
}

// Persist writes a full record for the key. expires_at is always recomputed
// here from issued_at + expires_in rather than trusted from the caller.
func (m *Manager) Persist(ctx context.Context, userID string, platform Platform, target Target, record *TokenRecord) error {
	if _, err := ScopesFor(platform, target); err != nil {
		return err
	}
	stored := *record
	if stored.IssuedAt == 0 {
		stored.IssuedAt = m.now().Unix()
	}
	if stored.ExpiresIn > 0 {
		stored.ExpiresAt = stored.IssuedAt + stored.ExpiresIn
	}
	if err := m.store.Set(ctx, userID, platform, target, &stored, m.ttl); err != nil {
		return err
	}
	m.logger.Info("token record persisted",
		"platform", platform, "target", target, "user_id", userID,
		"expires_at", stored.ExpiresAt, "refreshable", stored.CanRefresh())
	return nil
}

// Load returns the stored record, or nil when the user never authenticated.
// Cache transport failures surface as ErrCacheUnavailable, never as absence.
func (m *Manager) Load(ctx context.Context, userID string, platform Platform, target Target) (*TokenRecord, error) {
	if _, err := ScopesFor(platform, target); err != nil {
		return nil, err
	}
	return m.store.Get(ctx, userID, platform, target)
}

// Refresh performs a silent refresh and persists the replacement record.
// Two concurrent refreshes for the same key may both succeed; each write is
// a complete record, so the loser of the race is simply overwritten.
func (m *Manager) Refresh(ctx context.Context, userID string, platform Platform, target Target) (*TokenRecord, error) {
	old, err := m.Load(ctx, userID, platform, target)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, ErrUnauthenticated
	}
	if !old.CanRefresh() {
		return nil, ErrNoRefreshToken
	}
	cfg, err := m.oauthConfig(platform, target)
	if err != nil {
		return nil, err
	}
	ts := cfg.TokenSource(m.withHTTPClient(ctx), &oauth2.Token{RefreshToken: old.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			return nil, &RefreshError{Status: rErr.Response.StatusCode, Body: string(rErr.Body)}
		}
		return nil, fmt.Errorf("token refresh: %w", err)
	}
	record := m.recordFromToken(tok, old.Scope)
	if record.RefreshToken == "" {
		// Providers routinely omit the refresh token on refresh
		// responses; the old one stays valid and must survive.
		record.RefreshToken = old.RefreshToken
	}
	if err := m.Persist(ctx, userID, platform, target, record); err != nil {
		return nil, err
	}
	m.logger.Info("token refreshed",
		"platform", platform, "target", target, "user_id", userID)
	return record, nil
}

// Revoke tells the provider to invalidate the current access token, then
// deletes the cache entry regardless of the provider's answer: local state
// consistency wins over provider confirmation. Safe to call when nothing is
// stored.
func (m *Manager) Revoke(ctx context.Context, userID string, platform Platform, target Target) error {
	record, err := m.Load(ctx, userID, platform, target)
	if err != nil && !errors.Is(err, ErrCacheUnavailable) {
		return err
	}
	if record != nil {
		if err := m.RevokeAccessToken(ctx, record.AccessToken); err != nil {
			m.logger.Warn("provider revoke failed",
				"platform", platform, "target", target, "user_id", userID, "err", err)
		}
	}
	if err := m.store.Delete(ctx, userID, platform, target); err != nil {
		return err
	}
	m.logger.Info("token record deleted",
		"platform", platform, "target", target, "user_id", userID)
	return nil
}

// RevokeAccessToken is the best-effort provider revoke call, exposed on its
// own for callers holding a token that is no longer worth keeping.
func (m *Manager) RevokeAccessToken(ctx context.Context, accessToken string) error {
	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.provider.RevokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	// The response code is advisory only.
	if resp.StatusCode >= 400 {
		return fmt.Errorf("revoke: provider returned status %d", resp.StatusCode)
	}
	return nil
}

// recordFromToken builds a full TokenRecord from a provider token response,
// deriving expires_at from the local clock.
func (m *Manager) recordFromToken(tok *oauth2.Token, fallbackScopes []string) *TokenRecord {
	now := m.now()
	issued := now.Unix()
	expiresIn := tok.ExpiresIn
	if expiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(tok.Expiry.Sub(now) / time.Second)
	}
	scopes := fallbackScopes
	if s, ok := tok.Extra("scope").(string); ok && s != "" {
		scopes = strings.Fields(s)
	}
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tokenType,
		Scope:        scopes,
		IssuedAt:     issued,
		ExpiresIn:    expiresIn,
		ExpiresAt:    issued + expiresIn,
	}
}
