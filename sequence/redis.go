package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "seq"

// RedisGenerator keeps one integer key per counter and relies on INCR, which
// creates a missing key at zero before incrementing.
type RedisGenerator struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisGenerator returns a generator storing counters under "<prefix>:<name>".
// An empty prefix defaults to "seq".
func NewRedisGenerator(client redis.UniversalClient, prefix string) *RedisGenerator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisGenerator{redis: client, prefix: prefix}
}

// Next increments the counter and returns the new value.
func (g *RedisGenerator) Next(ctx context.Context, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	if g == nil || g.redis == nil {
		return 0, ErrStoreUnavailable
	}

	value, err := g.redis.Incr(ctx, g.key(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return value, nil
}

// Current reads the counter without modifying it.
func (g *RedisGenerator) Current(ctx context.Context, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	if g == nil || g.redis == nil {
		return 0, ErrStoreUnavailable
	}

	value, err := g.redis.Get(ctx, g.key(name)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return value, nil
}

func (g *RedisGenerator) key(name string) string {
	return g.prefix + ":" + name
}
