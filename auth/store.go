package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// TokenStore persists token records keyed by (platform, target, user).
type TokenStore interface {
	// Set writes a full record. ttl is a cache hygiene bound, not the
	// token's real expiry.
	Set(ctx context.Context, userID string, platform Platform, target Target, record *TokenRecord, ttl time.Duration) error

	// Get returns nil, nil when no record is stored; absence is a normal
	// state, not an error.
	Get(ctx context.Context, userID string, platform Platform, target Target) (*TokenRecord, error)

	// Delete removes any stored record. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, userID string, platform Platform, target Target) error
}

var _ TokenStore = (*RedisTokenStore)(nil)

// RedisTokenStore is the redis-backed TokenStore. It is the only place in
// the codebase that formats cache keys, so read and write paths cannot
// drift apart.
type RedisTokenStore struct {
	client redis.Cmdable
}

// NewRedisTokenStore wraps an injected redis client. The client is shared
// and safe for concurrent use; its lifecycle belongs to the caller.
func NewRedisTokenStore(client redis.Cmdable) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func cacheKey(userID string, platform Platform, target Target) string {
	return fmt.Sprintf("auth:%s:%s:%s", platform, target, userID)
}

func (s *RedisTokenStore) Set(ctx context.Context, userID string, platform Platform, target Target, record *TokenRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode token record: %w", err)
	}
	if err := s.client.Set(ctx, cacheKey(userID, platform, target), string(data), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	return nil
}

func (s *RedisTokenStore) Get(ctx context.Context, userID string, platform Platform, target Target) (*TokenRecord, error) {
	data, err := s.client.Get(ctx, cacheKey(userID, platform, target)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	var record TokenRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("decode token record: %w", err)
	}
	return &record, nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, userID string, platform Platform, target Target) error {
	if err := s.client.Del(ctx, cacheKey(userID, platform, target)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	return nil
}
