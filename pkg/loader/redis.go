package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisGetter is the subset of *redis.Client used by RedisSource.
type RedisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// RedisSource reads asset blobs stored as Redis string values under
// KeyPrefix + path.
type RedisSource struct {
	client RedisGetter
	prefix string
	logger zerolog.Logger
}

// NewRedisSource connects to Redis and pings it before returning.
func NewRedisSource(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisSource, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")
	return NewRedisSourceWithClient(cfg, rdb, logger), nil
}

// NewRedisSourceWithClient uses an existing client. RedisSource takes
// ownership of it and closes it on Close.
func NewRedisSourceWithClient(cfg *RedisConfig, client RedisGetter, logger zerolog.Logger) *RedisSource {
	return &RedisSource{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: logger.With().Str("component", "RedisSource").Logger(),
	}
}

// Fetch returns the value stored for path. A missing key is ErrNotFound.
func (s *RedisSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	key := s.prefix + path
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		s.logger.Error().Err(err).Str("key", key).Msg("Unexpected Redis error during fetch.")
		return nil, fmt.Errorf("redis get for %s: %w", key, err)
	}
	return data, nil
}

// Close closes the Redis client connection.
func (s *RedisSource) Close() error {
	if s.client != nil {
		s.logger.Info().Msg("Closing Redis client connection...")
		return s.client.Close()
	}
	return nil
}
