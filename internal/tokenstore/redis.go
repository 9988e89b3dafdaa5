// Package tokenstore shares the provider access token between gateway
// instances through Redis.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxomega77xx/googlepay/internal/paypal"
)

// RedisStore implements paypal.TokenStore. Entries expire margin before the
// provider-side expiry so a stale token is never read back.
type RedisStore struct {
	client *redis.Client
	key    string
	margin time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, clientID string, margin time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		key:    cacheKey(clientID),
		margin: margin,
		now:    time.Now,
	}
}

func (s *RedisStore) Get(ctx context.Context) (paypal.AccessToken, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return paypal.AccessToken{}, paypal.ErrTokenMiss
	}
	if err != nil {
		return paypal.AccessToken{}, fmt.Errorf("redis get failed: %w", err)
	}

	var tok paypal.AccessToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return paypal.AccessToken{}, fmt.Errorf("unmarshal token failed: %w", err)
	}
	return tok, nil
}

func (s *RedisStore) Set(ctx context.Context, tok paypal.AccessToken) error {
	ttl := tok.ExpiresAt().Add(-s.margin).Sub(s.now())
	if ttl <= 0 {
		// already inside the margin
		return nil
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token failed: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(clientID string) string {
	return fmt.Sprintf("paypal:token:%s", clientID)
}
