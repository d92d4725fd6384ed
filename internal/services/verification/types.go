package verification

import (
	"time"

	"aeroclaim/internal/adapters/providers"
	"aeroclaim/internal/domain/compensation"
)

// Source tells the caller where the verification answer came from. The
// workflow degrades to manual review instead of failing, so the source is the
// primary signal claim handlers act on.
type Source string

const (
	SourceCached        Source = "cached"
	SourceProvider      Source = "provider"
	SourceNotFound      Source = "not_found"
	SourceQuotaExceeded Source = "quota_exceeded"
	SourceManual        Source = "manual"
)

// VerifyResult is the outcome of a flight verification.
type VerifyResult struct {
	Source       Source                  `json:"source"`
	Flight       *providers.FlightStatus `json:"flight,omitempty"`
	DistanceKm   float64                 `json:"distance_km"`
	DelayMinutes int                     `json:"delay_minutes"`
	Compensation compensation.Result     `json:"compensation"`
	CreditsUsed  int64                   `json:"credits_used"`
}

// Verified reports whether flight facts were actually obtained.
func (r *VerifyResult) Verified() bool {
	return r.Source == SourceCached || r.Source == SourceProvider
}

// RouteFlight is one search result annotated with its estimated compensation.
type RouteFlight struct {
	providers.FlightStatus

	DelayMinutes int                 `json:"delay_minutes"`
	Estimate     compensation.Result `json:"estimate"`
}

// SearchResult is the outcome of a route search.
type SearchResult struct {
	Source      Source        `json:"source"`
	Flights     []RouteFlight `json:"flights"`
	CreditsUsed int64         `json:"credits_used"`
}

// AirportSearchResult is the outcome of a free-text airport search.
type AirportSearchResult struct {
	Source      Source              `json:"source"`
	Airports    []providers.Airport `json:"airports"`
	CreditsUsed int64               `json:"credits_used"`
}

// Time-of-day filter names accepted by SearchRoute alongside explicit HH:MM
// values.
const (
	FilterMorning   = "morning"   // 06:00 - 12:00
	FilterAfternoon = "afternoon" // 12:00 - 18:00
	FilterEvening   = "evening"   // 18:00 - 24:00
)

// explicitFilterWindow is the half-width of the window around an explicit
// HH:MM time filter.
const explicitFilterWindow = 3 * time.Hour
