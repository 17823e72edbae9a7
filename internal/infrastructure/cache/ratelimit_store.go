package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/wms-sync/internal/domain/sync"
)

const rateLimitKey = "wms:ratelimit:status"

// rateLimitTTL bounds staleness; a record older than a full quota window is
// worthless anyway
const rateLimitTTL = 2 * time.Hour

// RedisRateLimitStore persists the shared WMS rate limit status in Redis so
// multiple instances throttle against the same budget
type RedisRateLimitStore struct {
	client *redis.Client
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store and verifies
// the connection
func NewRedisRateLimitStore(addr, password string, db int) (*RedisRateLimitStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRateLimitStore{client: client}, nil
}

// NewRedisRateLimitStoreWithClient creates a store with an existing client.
// Useful for testing or when sharing a client across components.
func NewRedisRateLimitStoreWithClient(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// Get returns the shared status record, or nil when none is recorded
func (s *RedisRateLimitStore) Get(ctx context.Context) (*sync.RateLimitStatus, error) {
	raw, err := s.client.Get(ctx, rateLimitKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load rate limit status: %w", err)
	}

	var status sync.RateLimitStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode rate limit status: %w", err)
	}
	return &status, nil
}

// Set replaces the shared status record
func (s *RedisRateLimitStore) Set(ctx context.Context, status *sync.RateLimitStatus) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode rate limit status: %w", err)
	}
	if err := s.client.Set(ctx, rateLimitKey, raw, rateLimitTTL).Err(); err != nil {
		return fmt.Errorf("store rate limit status: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client
func (s *RedisRateLimitStore) Close() error {
	return s.client.Close()
}

// InMemoryRateLimitStore keeps the status in process memory. Suitable for
// single-instance deployments and tests.
type InMemoryRateLimitStore struct {
	mu     gosync.RWMutex
	status *sync.RateLimitStatus
}

// NewInMemoryRateLimitStore creates an empty in-memory store
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{}
}

// Get returns a copy of the stored status, or nil when none is recorded
func (s *InMemoryRateLimitStore) Get(_ context.Context) (*sync.RateLimitStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == nil {
		return nil, nil
	}
	cp := *s.status
	return &cp, nil
}

// Set replaces the stored status
func (s *InMemoryRateLimitStore) Set(_ context.Context, status *sync.RateLimitStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *status
	s.status = &cp
	return nil
}

// Ensure interface compliance
var (
	_ sync.RateLimitStore = (*RedisRateLimitStore)(nil)
	_ sync.RateLimitStore = (*InMemoryRateLimitStore)(nil)
)
