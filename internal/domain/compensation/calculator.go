package compensation

import (
	"time"

	"github.com/shopspring/decimal"

	"aeroclaim/internal/domain/flight"
)

// Result is the eligibility/amount/tier triple a calculator produces.
type Result struct {
	Eligible bool            `json:"eligible"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	// Tier is the distance band the amount was derived from (1..3).
	Tier int `json:"tier"`
}

// Calculator decides compensation from verified flight facts. The default
// implementation applies the EU261 rule table; claim-specific overrides can
// swap in another implementation without touching the orchestrator.
type Calculator interface {
	Calculate(distanceKm float64, delay time.Duration, incident flight.IncidentType) Result
}
