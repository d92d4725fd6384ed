package compensation

import (
	"time"

	"github.com/shopspring/decimal"

	"aeroclaim/internal/domain/compensation"
	"aeroclaim/internal/domain/flight"
)

// EU261 distance bands in kilometers
const (
	shortHaulMaxKm  = 1500.0
	mediumHaulMaxKm = 3500.0
)

// Eligibility and reduction thresholds
const (
	minEligibleDelay  = 3 * time.Hour
	longHaulReduction = 4 * time.Hour
)

var (
	amountShortHaul  = decimal.NewFromInt(250)
	amountMediumHaul = decimal.NewFromInt(400)
	amountLongHaul   = decimal.NewFromInt(600)

	reductionFactor = decimal.NewFromFloat(0.5)
)

// Compile-time check
var _ compensation.Calculator = (*EU261Calculator)(nil)

// EU261Calculator applies the regulation 261/2004 rule table. It is the
// default Calculator; claim handlers can override the result manually
// downstream.
type EU261Calculator struct{}

// NewEU261Calculator creates the standard rule-table calculator
func NewEU261Calculator() *EU261Calculator {
	return &EU261Calculator{}
}

// Calculate derives eligibility and amount from distance, delay and incident.
// Cancellations and denied boarding qualify regardless of delay; delays
// qualify from three hours. Long-haul delays under four hours are halved.
func (c *EU261Calculator) Calculate(distanceKm float64, delay time.Duration, incident flight.IncidentType) compensation.Result {
	result := compensation.Result{
		Currency: "EUR",
		Tier:     distanceTier(distanceKm),
	}

	eligible := false
	switch incident {
	case flight.IncidentCancellation, flight.IncidentDeniedBoarding:
		eligible = true
	case flight.IncidentDelay, flight.IncidentMissedConnection:
		eligible = delay >= minEligibleDelay
	}

	if !eligible {
		result.Amount = decimal.Zero
		return result
	}

	result.Eligible = true
	result.Amount = baseAmount(result.Tier)

	// Article 7(2)(c): long-haul delays under four hours pay half
	if result.Tier == 3 && incident == flight.IncidentDelay && delay < longHaulReduction {
		result.Amount = result.Amount.Mul(reductionFactor)
	}

	return result
}

func distanceTier(distanceKm float64) int {
	switch {
	case distanceKm <= shortHaulMaxKm:
		return 1
	case distanceKm <= mediumHaulMaxKm:
		return 2
	default:
		return 3
	}
}

func baseAmount(tier int) decimal.Decimal {
	switch tier {
	case 1:
		return amountShortHaul
	case 2:
		return amountMediumHaul
	default:
		return amountLongHaul
	}
}
