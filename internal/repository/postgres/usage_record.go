package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"aeroclaim/internal/domain/usage"
	pkgerrors "aeroclaim/pkg/errors"
)

// Compile-time check
var _ usage.Repository = (*UsageRecordRepository)(nil)

// UsageRecordRepository implements usage.Repository using sqlx. The table is
// append-only; there are deliberately no update or delete methods.
type UsageRecordRepository struct {
	db *sqlx.DB
}

// NewUsageRecordRepository creates a new usage record repository
func NewUsageRecordRepository(db *sqlx.DB) *UsageRecordRepository {
	return &UsageRecordRepository{db: db}
}

// Insert appends a usage record
func (r *UsageRecordRepository) Insert(ctx context.Context, record *usage.Record) error {
	query := `
		INSERT INTO usage_records (
			id, provider, endpoint, tier, credits, http_status, latency_ms,
			error_message, user_id, claim_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.Provider, record.Endpoint, record.Tier, record.Credits,
		record.HTTPStatus, record.LatencyMs, record.ErrorMessage,
		record.UserID, record.ClaimID, record.CreatedAt,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to insert usage record")
	}

	return nil
}

// DailyStats returns per-day call and credit totals since the given time
func (r *UsageRecordRepository) DailyStats(ctx context.Context, provider string, since time.Time) ([]usage.DayStat, error) {
	query := `
		SELECT date_trunc('day', created_at) AS day,
		       COUNT(*) AS calls,
		       COALESCE(SUM(credits), 0) AS credits
		FROM usage_records
		WHERE provider = $1 AND created_at >= $2
		GROUP BY day
		ORDER BY day DESC`

	var stats []usage.DayStat
	err := r.db.SelectContext(ctx, &stats, query, provider, since)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get daily usage stats")
	}

	return stats, nil
}

// TopEndpoints returns the most expensive endpoints by credits since the given time
func (r *UsageRecordRepository) TopEndpoints(ctx context.Context, provider string, since time.Time, limit int) ([]usage.EndpointStat, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT endpoint,
		       COUNT(*) AS calls,
		       COALESCE(SUM(credits), 0) AS credits
		FROM usage_records
		WHERE provider = $1 AND created_at >= $2
		GROUP BY endpoint
		ORDER BY credits DESC
		LIMIT $3`

	var stats []usage.EndpointStat
	err := r.db.SelectContext(ctx, &stats, query, provider, since, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get top endpoints")
	}

	return stats, nil
}
