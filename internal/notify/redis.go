package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ovpnadmin:notify:"

// RedisSuppressor shares the suppression set between console replicas.
type RedisSuppressor struct {
	rdb *redis.Client
}

// NewRedisSuppressor wraps an existing client.
func NewRedisSuppressor(rdb *redis.Client) *RedisSuppressor {
	return &RedisSuppressor{rdb: rdb}
}

// DialRedis parses a redis:// URL and returns a suppressor on a new client.
func DialRedis(url string) (*RedisSuppressor, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisSuppressor(redis.NewClient(opts)), nil
}

func (r *RedisSuppressor) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, redisKeyPrefix+key, "1", window).Result()
	if err != nil {
		return false, fmt.Errorf("notify setnx: %w", err)
	}
	return ok, nil
}

// Close closes the underlying client.
func (r *RedisSuppressor) Close() error {
	return r.rdb.Close()
}
