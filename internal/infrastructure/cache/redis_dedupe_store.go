package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appcommission "github.com/marketplace/backend/internal/application/commission"
	"github.com/marketplace/backend/internal/infrastructure/config"
)

// defaultDedupeTTL covers a bulk run plus any plausible retry window.
// The audit unique constraint stays authoritative after expiry.
const defaultDedupeTTL = 24 * time.Hour

// RedisResolutionDedupe implements the bulk coordinator's dedupe fast
// path on Redis, suitable for deployments where several instances share
// one audit trail.
type RedisResolutionDedupe struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisResolutionDedupe creates a dedupe store with its own Redis client
func NewRedisResolutionDedupe(cfg config.RedisConfig, ttl time.Duration) (*RedisResolutionDedupe, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisResolutionDedupeWithClient(client, ttl), nil
}

// NewRedisResolutionDedupeWithClient creates a store over an existing
// Redis client, useful for testing or when sharing a client across
// components
func NewRedisResolutionDedupeWithClient(client *redis.Client, ttl time.Duration) *RedisResolutionDedupe {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &RedisResolutionDedupe{
		client:    client,
		keyPrefix: "commission:dedupe:",
		ttl:       ttl,
	}
}

// Seen reports whether the line item's dedupe key was already marked
func (s *RedisResolutionDedupe) Seen(ctx context.Context, lineItemRef, evaluatedAt string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.key(lineItemRef, evaluatedAt)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedupe key: %w", err)
	}
	return exists > 0, nil
}

// Mark records the dedupe key with the configured TTL
func (s *RedisResolutionDedupe) Mark(ctx context.Context, lineItemRef, evaluatedAt string) error {
	if err := s.client.Set(ctx, s.key(lineItemRef, evaluatedAt), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark dedupe key: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisResolutionDedupe) Close() error {
	return s.client.Close()
}

func (s *RedisResolutionDedupe) key(lineItemRef, evaluatedAt string) string {
	return s.keyPrefix + lineItemRef + ":" + evaluatedAt
}

var _ appcommission.ResolutionDedupe = (*RedisResolutionDedupe)(nil)
