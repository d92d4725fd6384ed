package usage

import (
	"context"
	"time"
)

// Repository defines persistence for the append-only usage ledger.
type Repository interface {
	// Insert appends a usage record. Records are never updated or deleted.
	Insert(ctx context.Context, record *Record) error

	// DailyStats returns per-day call and credit totals since the given time.
	DailyStats(ctx context.Context, provider string, since time.Time) ([]DayStat, error)

	// TopEndpoints returns the most expensive endpoints by credits since the
	// given time.
	TopEndpoints(ctx context.Context, provider string, since time.Time, limit int) ([]EndpointStat, error)
}
