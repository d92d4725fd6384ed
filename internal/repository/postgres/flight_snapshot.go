package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"aeroclaim/internal/domain/flight"
	pkgerrors "aeroclaim/pkg/errors"
)

// Compile-time check
var _ flight.SnapshotRepository = (*FlightSnapshotRepository)(nil)

// FlightSnapshotRepository stores immutable raw provider responses per claim
type FlightSnapshotRepository struct {
	db *sqlx.DB
}

// NewFlightSnapshotRepository creates a new flight snapshot repository
func NewFlightSnapshotRepository(db *sqlx.DB) *FlightSnapshotRepository {
	return &FlightSnapshotRepository{db: db}
}

// Insert stores a raw provider response against a claim
func (r *FlightSnapshotRepository) Insert(ctx context.Context, claimID uuid.UUID, provider, flightKey string, raw json.RawMessage) error {
	query := `
		INSERT INTO flight_snapshots (id, claim_id, provider, flight_key, raw_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New(), claimID, provider, flightKey, []byte(raw), time.Now().UTC(),
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to insert flight snapshot")
	}

	return nil
}
