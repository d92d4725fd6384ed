package providers

import (
	"context"
	"time"
)

// FlightProvider is the unified contract every flight data vendor adapter
// must satisfy. Implementations normalize vendor JSON into the shapes in
// types.go and return classified errors from errors.go.
type FlightProvider interface {
	Name() string

	// FlightStatus looks up a single flight by number and departure date (tier 2).
	FlightStatus(ctx context.Context, flightNumber string, date time.Time) (*FlightStatus, error)

	// SearchRoute lists all flights between two airports on a date (tier 2).
	SearchRoute(ctx context.Context, depIATA, arrIATA string, date time.Time) ([]FlightStatus, error)

	// AirportByIATA fetches airport metadata (tier 1).
	AirportByIATA(ctx context.Context, code string) (*Airport, error)

	// SearchAirports finds airports matching a free-text term (tier 1).
	SearchAirports(ctx context.Context, term string) ([]Airport, error)
}
