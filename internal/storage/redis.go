package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	redisDataField    = "data"
	redisVersionField = "version"
)

// RedisBackend stores each key as a hash holding the value and its version.
type RedisBackend struct {
	rdb *goredis.Client
}

// OpenRedis connects to the Redis server at addr and verifies the connection.
func OpenRedis(ctx context.Context, addr string) (*RedisBackend, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBackend{rdb: rdb}, nil
}

// Close closes the client.
func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}

// Get retrieves the value and version stored under key.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, int64, error) {
	vals, err := b.rdb.HMGet(ctx, key, redisDataField, redisVersionField).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, 0, nil
	}
	version, err := parseVersion(vals[1])
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read version of key %s: %w", key, err)
	}
	return []byte(data), version, nil
}

// Put writes data under key inside a WATCH/MULTI transaction if the stored
// version equals expected.
func (b *RedisBackend) Put(ctx context.Context, key string, data []byte, expected int64) (int64, error) {
	next := expected + 1
	err := b.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, key, redisVersionField).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		current, err := parseVersion(raw)
		if err != nil {
			return err
		}
		if current != expected {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, redisDataField, data, redisVersionField, next)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, ErrVersionConflict), errors.Is(err, goredis.TxFailedErr):
		return 0, ErrVersionConflict
	default:
		return 0, fmt.Errorf("failed to write key %s: %w", key, err)
	}
}

func parseVersion(v any) (int64, error) {
	s, _ := v.(string)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
