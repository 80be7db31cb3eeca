package lock

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:embed release.lua
var releaseScript string

const defaultPollInterval = 50 * time.Millisecond

// Redis is a lease based lock shared by every instance using the same Redis.
// A lease expires after its TTL so a crashed holder cannot block others.
type Redis struct {
	client   redis.Cmdable
	ttl      time.Duration
	poll     time.Duration
	newToken func() string
}

type RedisOption func(*Redis)

func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) { r.poll = d }
}

func WithTokens(fn func() string) RedisOption {
	return func(r *Redis) { r.newToken = fn }
}

func NewRedis(client redis.Cmdable, ttl time.Duration, opts ...RedisOption) *Redis {
	r := &Redis{
		client:   client,
		ttl:      ttl,
		poll:     defaultPollInterval,
		newToken: uuid.NewString,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	key = "lock:" + key
	token := r.newToken()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %q: %w", key, err)
		}

		if ok {
			return func() { r.release(key, token) }, nil
		}

		t := time.NewTimer(r.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("waiting for lock %q: %w", key, ctx.Err())
		case <-t.C:
		}
	}
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	n, err := r.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
	if err != nil {
		slog.Warn("failed to release lock", "key", key, "error", err)
		return
	}

	if n == 0 {
		slog.Warn("lock lease expired before release", "key", key)
	}
}
