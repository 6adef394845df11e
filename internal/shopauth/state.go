package shopauth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound is returned when an OAuth state nonce is unknown or already used.
var ErrStateNotFound = errors.New("shopauth: oauth state not found")

// StateStore keeps one-time OAuth state nonces.
type StateStore interface {
	Put(ctx context.Context, state, shop string, ttl time.Duration) error
	// Take returns the shop bound to state and forgets it.
	Take(ctx context.Context, state string) (string, error)
}

// RedisStateStore stores nonces in Redis with an expiry.
type RedisStateStore struct {
	R      *redis.Client
	Prefix string
}

func (s RedisStateStore) key(state string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "oauth:state:"
	}
	return prefix + state
}

// Put implements StateStore.
func (s RedisStateStore) Put(ctx context.Context, state, shop string, ttl time.Duration) error {
	if s.R == nil {
		return errors.New("shopauth: redis client not configured")
	}
	return s.R.Set(ctx, s.key(state), shop, ttl).Err()
}

// Take implements StateStore.
func (s RedisStateStore) Take(ctx context.Context, state string) (string, error) {
	if s.R == nil {
		return "", errors.New("shopauth: redis client not configured")
	}
	shop, err := s.R.GetDel(ctx, s.key(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrStateNotFound
		}
		return "", err
	}
	return shop, nil
}
