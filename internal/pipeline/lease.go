package pipeline

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaseStore grants short-lived per-key exclusion tokens. Acquire must be
// a strongly-consistent write-if-absent so that two racing workers never
// both hold the same lease.
type LeaseStore interface {
	// Acquire takes the lease for key if it is free. Leases expire after
	// ttl to recover from crashed workers.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees the lease early.
	Release(ctx context.Context, key string) error
}

// RedisLeaseStore implements LeaseStore with SET NX + TTL.
type RedisLeaseStore struct {
	client *redis.Client
	prefix string
}

// NewRedisLeaseStore creates a lease store on an existing redis client.
func NewRedisLeaseStore(client *redis.Client, prefix string) *RedisLeaseStore {
	if prefix == "" {
		prefix = "lease:"
	}
	return &RedisLeaseStore{client: client, prefix: prefix}
}

func (s *RedisLeaseStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, "1", ttl).Result()
}

func (s *RedisLeaseStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

var _ LeaseStore = (*RedisLeaseStore)(nil)
