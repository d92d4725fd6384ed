package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"aeroclaim/internal/domain/flight"
	pkgerrors "aeroclaim/pkg/errors"
)

// Compile-time check
var _ flight.NotFoundRepository = (*NotFoundRepository)(nil)

// NotFoundRepository tracks flights the provider has confirmed do not exist
type NotFoundRepository struct {
	db *sqlx.DB
}

// NewNotFoundRepository creates a new not-found repository
func NewNotFoundRepository(db *sqlx.DB) *NotFoundRepository {
	return &NotFoundRepository{db: db}
}

// Get returns the record for a flight key
func (r *NotFoundRepository) Get(ctx context.Context, provider, flightKey string) (*flight.NotFoundRecord, error) {
	query := `
		SELECT provider, flight_key, check_count, last_checked_at
		FROM flight_not_found
		WHERE provider = $1 AND flight_key = $2`

	var record flight.NotFoundRecord
	err := r.db.GetContext(ctx, &record, query, provider, flightKey)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "flight %s not in not-found set", flightKey)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get not-found record")
	}

	return &record, nil
}

// Record upserts the flight key, incrementing its check count
func (r *NotFoundRepository) Record(ctx context.Context, provider, flightKey string) error {
	query := `
		INSERT INTO flight_not_found (provider, flight_key, check_count, last_checked_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (provider, flight_key)
		DO UPDATE SET check_count = flight_not_found.check_count + 1,
		              last_checked_at = NOW()`

	_, err := r.db.ExecContext(ctx, query, provider, flightKey)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to record not-found flight")
	}

	return nil
}
