// Package redisstore provides a Redis-backed cache store for the workflow
// cache primitive. Values are stored as JSON with Redis-side TTL expiry.
//
// Store errors are returned to the cache primitive, which degrades to
// pass-through; a Redis outage never breaks the wrapped call.
package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config configures the Redis connection.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	PoolSize  int
}

// DefaultConfig returns a local-Redis configuration.
func DefaultConfig() Config {
	return Config{
		Addr:      "localhost:6379",
		KeyPrefix: "flowkit:cache:",
		PoolSize:  10,
	}
}

// Store implements the workflow cache Store interface on Redis.
type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// New creates a Store and verifies the connection.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: logger.With(zap.String("component", "redisstore")),
	}, nil
}

// NewWithClient wraps an existing Redis client, e.g. one shared with other
// subsystems or a test server.
func NewWithClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client: client,
		prefix: keyPrefix,
		logger: logger.With(zap.String("component", "redisstore")),
	}
}

// Get returns the live value for key. Expiry is handled by Redis TTL, so a
// present key is always live.
func (s *Store) Get(ctx context.Context, key string) (any, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		// A corrupt entry is treated as a miss; the next Set overwrites it.
		s.logger.Warn("discarding undecodable cache entry",
			zap.String("key", key),
			zap.Error(err))
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value under key with the given TTL.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// HashKey derives a stable cache key by hashing the JSON encoding of the
// given inputs.
func HashKey(inputs ...any) (string, error) {
	raw, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("marshal key inputs: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
