package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"aeroclaim/internal/domain/cache"
	"aeroclaim/pkg/errors"
)

// Compile-time check
var _ cache.Store = (*CacheStore)(nil)

const keyPrefix = "aeroclaim:cache"

// scanBatchSize controls how many keys each SCAN iteration returns when
// clearing a namespace.
const scanBatchSize = 500

// CacheStore implements cache.Store using Redis. Keys are namespaced so a
// whole payload class can be cleared without touching the others.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new cache store
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{
		client: client,
	}
}

// Get retrieves the payload for a key
func (s *CacheStore) Get(ctx context.Context, ns cache.Namespace, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.entryKey(ns, key)).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrCacheMiss, "cache miss: ns=%s key=%s", ns, key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get cache entry: ns=%s key=%s", ns, key)
	}

	return data, nil
}

// Set stores a payload. A zero TTL means the entry never expires.
func (s *CacheStore) Set(ctx context.Context, ns cache.Namespace, key string, payload []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.entryKey(ns, key), payload, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to set cache entry: ns=%s key=%s", ns, key)
	}

	return nil
}

// Delete removes a single key along with its hit counter
func (s *CacheStore) Delete(ctx context.Context, ns cache.Namespace, key string) error {
	if err := s.client.Del(ctx, s.entryKey(ns, key), s.hitsKey(ns, key)).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete cache entry: ns=%s key=%s", ns, key)
	}

	return nil
}

// ClearNamespace removes every key in a namespace via cursor-based SCAN so
// large namespaces do not block redis the way KEYS would.
func (s *CacheStore) ClearNamespace(ctx context.Context, ns cache.Namespace) (int64, error) {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, ns)

	var deleted int64
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return deleted, errors.Wrapf(err, "failed to scan cache namespace %s", ns)
		}

		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, errors.Wrapf(err, "failed to delete keys in namespace %s", ns)
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

// IncrementHits bumps the per-entry hit counter and returns the new count
func (s *CacheStore) IncrementHits(ctx context.Context, ns cache.Namespace, key string) (int64, error) {
	count, err := s.client.Incr(ctx, s.hitsKey(ns, key)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to increment hit counter: ns=%s key=%s", ns, key)
	}

	return count, nil
}

func (s *CacheStore) entryKey(ns cache.Namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, ns, key)
}

func (s *CacheStore) hitsKey(ns cache.Namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s:hits", keyPrefix, ns, key)
}
