package flight

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IncidentType is the disruption category a claim is filed for.
type IncidentType string

const (
	IncidentDelay            IncidentType = "delay"
	IncidentCancellation     IncidentType = "cancellation"
	IncidentDeniedBoarding   IncidentType = "denied_boarding"
	IncidentMissedConnection IncidentType = "missed_connection"
)

// Identity is the minimal handle the claim workflow extracts for a flight.
type Identity struct {
	FlightNumber  string
	FlightDate    time.Time
	DepartureIATA string
	ArrivalIATA   string
	Incident      IncidentType
}

// Validate checks the fields the provider lookup cannot proceed without.
func (id Identity) Validate() error {
	if strings.TrimSpace(id.FlightNumber) == "" {
		return fmt.Errorf("flight number is required")
	}
	if id.FlightDate.IsZero() {
		return fmt.Errorf("flight date is required")
	}
	return nil
}

// Key returns the canonical flight key used for caching and not-found
// bookkeeping: {number}:{date}.
func (id Identity) Key() string {
	return fmt.Sprintf("%s:%s",
		strings.ToUpper(strings.ReplaceAll(id.FlightNumber, " ", "")),
		id.FlightDate.UTC().Format("2006-01-02"))
}

// NotFoundRecord tracks flight identities the provider has confirmed do not
// exist, so repeated lookups for them skip the network entirely. Disposable
// state: wiping the table only costs credits, never correctness.
type NotFoundRecord struct {
	Provider      string    `db:"provider"`
	FlightKey     string    `db:"flight_key"`
	CheckCount    int       `db:"check_count"`
	LastCheckedAt time.Time `db:"last_checked_at"`
}

// Snapshot is an immutable copy of the raw provider response stored against
// the originating claim for later dispute resolution.
type Snapshot struct {
	ID         uuid.UUID       `db:"id"`
	ClaimID    uuid.UUID       `db:"claim_id"`
	Provider   string          `db:"provider"`
	FlightKey  string          `db:"flight_key"`
	RawPayload json.RawMessage `db:"raw_payload"`
	CreatedAt  time.Time       `db:"created_at"`
}
