package usage

import (
	"time"

	"github.com/google/uuid"
)

// Record is one immutable entry per provider call attempt. Credits is 0 when
// the call failed before the provider billed it.
type Record struct {
	ID           uuid.UUID  `db:"id"`
	Provider     string     `db:"provider"`
	Endpoint     string     `db:"endpoint"`
	Tier         int        `db:"tier"`
	Credits      int64      `db:"credits"`
	HTTPStatus   *int       `db:"http_status"`
	LatencyMs    int64      `db:"latency_ms"`
	ErrorMessage *string    `db:"error_message"`
	UserID       *uuid.UUID `db:"user_id"`
	ClaimID      *uuid.UUID `db:"claim_id"`
	CreatedAt    time.Time  `db:"created_at"`
}

// DayStat aggregates calls and credits for one day.
type DayStat struct {
	Day     time.Time `db:"day"`
	Calls   int64     `db:"calls"`
	Credits int64     `db:"credits"`
}

// EndpointStat aggregates cost per endpoint.
type EndpointStat struct {
	Endpoint string `db:"endpoint"`
	Calls    int64  `db:"calls"`
	Credits  int64  `db:"credits"`
}
