package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const denyKeyPrefix = "denied_access_token:"

// TokenDenylist stores denied access tokens in redis with a TTL equal to
// the token's remaining lifetime, so entries vanish on their own once the
// token would have expired anyway.
type TokenDenylist struct {
	client *redis.Client
}

func NewTokenDenylist(client *redis.Client) *TokenDenylist {
	return &TokenDenylist{client: client}
}

func (s *TokenDenylist) DenyToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, denyKeyPrefix+token, "denied", ttl).Err()
}

func (s *TokenDenylist) IsTokenDenied(ctx context.Context, token string) (bool, error) {
	_, err := s.client.Get(ctx, denyKeyPrefix+token).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}
