// File: internal/auth/blocklist.go
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// TokenBlocklistService records revoked session token IDs until the tokens
// would have expired anyway.
type TokenBlocklistService interface {
	AddToBlocklist(ctx context.Context, jti string, expiresAt time.Time) error
	IsBlocklisted(ctx context.Context, jti string) (bool, error)
}

// InMemoryBlocklistService keeps revocations in a process-local cache.
type InMemoryBlocklistService struct {
	cache *cache.Cache
}

// InMemoryBlocklistConfig holds the configuration for the InMemoryBlocklistService.
type InMemoryBlocklistConfig struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

// NewInMemoryBlocklistService creates a new in-memory blocklist service.
func NewInMemoryBlocklistService(cfg InMemoryBlocklistConfig) *InMemoryBlocklistService {
	return &InMemoryBlocklistService{
		cache: cache.New(cfg.DefaultExpiration, cfg.CleanupInterval),
	}
}

// AddToBlocklist keeps jti until expiresAt. Already expired tokens are ignored.
func (s *InMemoryBlocklistService) AddToBlocklist(ctx context.Context, jti string, expiresAt time.Time) error {
	duration := time.Until(expiresAt)
	if duration <= 0 {
		return nil
	}
	s.cache.Set(jti, true, duration)
	return nil
}

func (s *InMemoryBlocklistService) IsBlocklisted(ctx context.Context, jti string) (bool, error) {
	_, found := s.cache.Get(jti)
	return found, nil
}

// RedisBlocklistService shares revocations between instances.
type RedisBlocklistService struct {
	client *redis.Client
	prefix string
}

func NewRedisBlocklistService(client *redis.Client) *RedisBlocklistService {
	return &RedisBlocklistService{
		client: client,
		prefix: "session_revoked:",
	}
}

func (s *RedisBlocklistService) key(jti string) string {
	return s.prefix + jti
}

func (s *RedisBlocklistService) AddToBlocklist(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(jti), 1, ttl).Err()
}

func (s *RedisBlocklistService) IsBlocklisted(ctx context.Context, jti string) (bool, error) {
	err := s.client.Get(ctx, s.key(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
