package flight

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// NotFoundRepository persists the provider-confirmed-missing flight set.
type NotFoundRepository interface {
	// Get returns the record for a flight key, or pkg/errors.ErrNotFound.
	Get(ctx context.Context, provider, flightKey string) (*NotFoundRecord, error)

	// Record upserts the flight key, incrementing its check count.
	Record(ctx context.Context, provider, flightKey string) error
}

// SnapshotRepository persists immutable raw provider responses.
type SnapshotRepository interface {
	Insert(ctx context.Context, claimID uuid.UUID, provider, flightKey string, raw json.RawMessage) error
}
