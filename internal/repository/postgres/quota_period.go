package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"aeroclaim/internal/domain/quota"
	pkgerrors "aeroclaim/pkg/errors"
)

// Compile-time check
var _ quota.Repository = (*QuotaPeriodRepository)(nil)

// QuotaPeriodRepository implements quota.Repository using sqlx
type QuotaPeriodRepository struct {
	db *sqlx.DB
}

// NewQuotaPeriodRepository creates a new quota period repository
func NewQuotaPeriodRepository(db *sqlx.DB) *QuotaPeriodRepository {
	return &QuotaPeriodRepository{db: db}
}

// GetLatest retrieves the most recent period for a provider
func (r *QuotaPeriodRepository) GetLatest(ctx context.Context, provider string) (*quota.Period, error) {
	query := `
		SELECT id, provider, period_start, period_end, credits_allowed, credits_used,
		       alert_80_sent_at, alert_90_sent_at, alert_95_sent_at, exceeded,
		       created_at, updated_at
		FROM quota_periods
		WHERE provider = $1
		ORDER BY period_start DESC
		LIMIT 1`

	var period quota.Period
	err := r.db.GetContext(ctx, &period, query, provider)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "no quota period for provider %s", provider)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get latest quota period")
	}

	return &period, nil
}

// Create inserts a new quota period
func (r *QuotaPeriodRepository) Create(ctx context.Context, period *quota.Period) error {
	query := `
		INSERT INTO quota_periods (
			id, provider, period_start, period_end, credits_allowed, credits_used,
			alert_80_sent_at, alert_90_sent_at, alert_95_sent_at, exceeded,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := r.db.ExecContext(ctx, query,
		period.ID, period.Provider, period.PeriodStart, period.PeriodEnd,
		period.CreditsAllowed, period.CreditsUsed,
		period.Alert80SentAt, period.Alert90SentAt, period.Alert95SentAt,
		period.Exceeded, period.CreatedAt, period.UpdatedAt,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create quota period")
	}

	return nil
}

// AddCredits atomically increments credits_used and flips the exceeded flag
// when the new usage reaches the critical threshold. One UPDATE keeps the
// increment serialized inside postgres no matter how many processes race.
func (r *QuotaPeriodRepository) AddCredits(ctx context.Context, periodID uuid.UUID, credits int64) (*quota.Period, error) {
	query := `
		UPDATE quota_periods
		SET credits_used = credits_used + $2,
		    exceeded = exceeded OR
		        (credits_allowed > 0 AND
		         (credits_used + $2) * 100.0 / credits_allowed >= 95),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, provider, period_start, period_end, credits_allowed, credits_used,
		          alert_80_sent_at, alert_90_sent_at, alert_95_sent_at, exceeded,
		          created_at, updated_at`

	var period quota.Period
	err := r.db.GetContext(ctx, &period, query, periodID, credits)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "quota period %s not found", periodID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to add credits to quota period")
	}

	return &period, nil
}

// Update persists alert flags and the exceeded marker
func (r *QuotaPeriodRepository) Update(ctx context.Context, period *quota.Period) error {
	query := `
		UPDATE quota_periods
		SET alert_80_sent_at = $2,
		    alert_90_sent_at = $3,
		    alert_95_sent_at = $4,
		    exceeded = $5,
		    updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query,
		period.ID, period.Alert80SentAt, period.Alert90SentAt, period.Alert95SentAt,
		period.Exceeded,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to update quota period")
	}

	return nil
}
