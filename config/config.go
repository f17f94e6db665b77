// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the entry point needs to wire the process.
type Config struct {
	// Provider client credentials.
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURI   string

	// Cache.
	RedisURL string

	// HTTP.
	ListenAddr string

	// Session cookie signing.
	SessionSecret []byte
	SessionTTL    time.Duration

	// Token record hygiene TTL in the cache. Independent of the token's
	// own expiry.
	TokenTTL time.Duration

	// Bounded deadlines: a provider or cache outage must never hang a
	// request indefinitely.
	ProviderTimeout time.Duration
	CacheTimeout    time.Duration
}

// Load reads configuration from the environment, applying defaults and
// failing on missing required values.
func Load() (*Config, error) {
	cfg := &Config{
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		OAuthRedirectURI:   envOr("OAUTH_REDIRECT_URI", "http://localhost:8080/oauth/callback"),
		RedisURL:           envOr("REDIS_URL", "redis://localhost:6379/0"),
		ListenAddr:         ":" + envOr("PORT", "8080"),
		SessionSecret:      []byte(os.Getenv("SESSION_SECRET")),
		SessionTTL:         envDuration("SESSION_TTL", 7*24*time.Hour),
		TokenTTL:           envDuration("TOKEN_TTL", 30*24*time.Hour),
		ProviderTimeout:    envDuration("PROVIDER_TIMEOUT", 10*time.Second),
		CacheTimeout:       envDuration("CACHE_TIMEOUT", 5*time.Second),
	}
	if cfg.GoogleClientID == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID environment variable is required")
	}
	if cfg.GoogleClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_SECRET environment variable is required")
	}
	if len(cfg.SessionSecret) == 0 {
		return nil, fmt.Errorf("SESSION_SECRET environment variable is required")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare numbers are read as seconds.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
