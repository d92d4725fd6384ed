package quota

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for quota periods.
type Repository interface {
	// GetLatest returns the most recent period for a provider, expired or
	// not, or pkg/errors.ErrNotFound when none exists yet.
	GetLatest(ctx context.Context, provider string) (*Period, error)

	// Create inserts a new period.
	Create(ctx context.Context, period *Period) error

	// AddCredits atomically increments credits_used and returns the updated
	// period. The exceeded flag is set in the same statement when the new
	// usage reaches the critical threshold.
	AddCredits(ctx context.Context, periodID uuid.UUID, credits int64) (*Period, error)

	// Update persists alert flags and the exceeded marker.
	Update(ctx context.Context, period *Period) error
}
