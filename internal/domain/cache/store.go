package cache

import (
	"context"
	"time"
)

// Namespace partitions the cache by payload type; each namespace carries its
// own TTL policy.
type Namespace string

const (
	NamespaceFlightStatus  Namespace = "flight-status"
	NamespaceRouteSearch   Namespace = "route-search"
	NamespaceAirportSearch Namespace = "airport-search"
	NamespaceAirportInfo   Namespace = "airport-info"
)

// Store is the raw cache backend. Implementations return
// pkg/errors.ErrCacheMiss for absent or expired keys; any other error means
// the backend itself failed and the policy layer decides what to do about it.
type Store interface {
	// Get retrieves the payload for a key.
	Get(ctx context.Context, ns Namespace, key string) ([]byte, error)

	// Set stores a payload. A zero TTL means no expiry.
	Set(ctx context.Context, ns Namespace, key string, payload []byte, ttl time.Duration) error

	// Delete removes a single key.
	Delete(ctx context.Context, ns Namespace, key string) error

	// ClearNamespace removes every key in a namespace and returns how many
	// entries were deleted.
	ClearNamespace(ctx context.Context, ns Namespace) (int64, error)

	// IncrementHits bumps the per-entry hit counter used for cost-savings
	// reporting and returns the new count.
	IncrementHits(ctx context.Context, ns Namespace, key string) (int64, error)
}
