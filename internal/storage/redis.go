package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is prepended to every replay key.
const DefaultRedisPrefix = "nonceguard:replay:"

// RedisConfig configures a RedisReplayStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string

	// TLS enables TLS to the server when non-nil.
	TLS *tls.Config
}

// RedisReplayStore implements ReplayStore with SET NX and an expiry, so
// replicas behind a load balancer share one view of consumed nonces.
type RedisReplayStore struct {
	client *redis.Client
	prefix string
}

// NewRedisReplayStore connects to Redis and pings it.
func NewRedisReplayStore(ctx context.Context, cfg RedisConfig) (*RedisReplayStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: cfg.TLS,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}

	return NewRedisReplayStoreFromClient(client, cfg.Prefix), nil
}

// NewRedisReplayStoreFromClient wraps an existing client. An empty prefix
// selects DefaultRedisPrefix.
func NewRedisReplayStoreFromClient(client *redis.Client, prefix string) *RedisReplayStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisReplayStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisReplayStore) key(k string) string {
	return r.prefix + k
}

// MarkUsed issues SET key 1 NX with ttl as expiry.
func (r *RedisReplayStore) MarkUsed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	ok, err := r.client.SetNX(ctx, r.key(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: mark used: %w", err)
	}
	return ok, nil
}

// Ping checks the Redis connection.
func (r *RedisReplayStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisReplayStore) Close() error {
	return r.client.Close()
}
