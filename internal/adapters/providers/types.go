package providers

import (
	"encoding/json"
	"time"
)

// Operation identifies a billable provider endpoint.
type Operation string

const (
	OpFlightStatus  Operation = "flight_status"
	OpRouteSearch   Operation = "route_search"
	OpAirportInfo   Operation = "airport_info"
	OpAirportSearch Operation = "airport_search"
)

// Tier returns the provider cost class of the operation.
func (op Operation) Tier() int {
	if op == OpAirportInfo || op == OpAirportSearch {
		return 1
	}
	return 2
}

// Credits returns how many billing credits one call to the operation consumes.
// Tier 1 costs 1 credit, tier 2 costs 2 credits.
func (op Operation) Credits() int64 {
	return int64(op.Tier())
}

// FlightState is the normalized provider flight status.
type FlightState string

const (
	StateScheduled FlightState = "scheduled"
	StateActive    FlightState = "active"
	StateLanded    FlightState = "landed"
	StateCancelled FlightState = "cancelled"
	StateDiverted  FlightState = "diverted"
	StateUnknown   FlightState = "unknown"
)

// Movement describes either side (departure or arrival) of a flight.
// ScheduledLocal carries the airport's wall-clock time with its UTC offset
// when the vendor supplied one.
type Movement struct {
	AirportIATA    string     `json:"airport_iata"`
	AirportName    string     `json:"airport_name"`
	ScheduledUTC   time.Time  `json:"scheduled_utc"`
	ScheduledLocal time.Time  `json:"scheduled_local,omitempty"`
	ActualUTC      *time.Time `json:"actual_utc,omitempty"`
	Terminal       string     `json:"terminal,omitempty"`
}

// ScheduledWallClock returns the scheduled time as the airport's wall clock
// when known, falling back to UTC. Time-of-day decisions belong on this value.
func (m *Movement) ScheduledWallClock() time.Time {
	if !m.ScheduledLocal.IsZero() {
		return m.ScheduledLocal
	}
	return m.ScheduledUTC
}

// FlightStatus is the vendor-independent flight result shape. Raw keeps the
// untouched provider JSON for audit snapshots.
type FlightStatus struct {
	FlightNumber string          `json:"flight_number"`
	Airline      string          `json:"airline"`
	State        FlightState     `json:"state"`
	Departure    Movement        `json:"departure"`
	Arrival      Movement        `json:"arrival"`
	DistanceKm   float64         `json:"distance_km,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// ArrivalDelay returns how late the flight arrived. Zero when the actual
// arrival is unknown or the flight was early.
func (f *FlightStatus) ArrivalDelay() time.Duration {
	if f.Arrival.ActualUTC == nil || f.Arrival.ScheduledUTC.IsZero() {
		return 0
	}
	d := f.Arrival.ActualUTC.Sub(f.Arrival.ScheduledUTC)
	if d < 0 {
		return 0
	}
	return d
}

// Cancelled reports whether the provider marked the flight as cancelled.
func (f *FlightStatus) Cancelled() bool {
	return f.State == StateCancelled
}

// Airport is normalized airport metadata.
type Airport struct {
	IATA        string  `json:"iata"`
	ICAO        string  `json:"icao,omitempty"`
	Name        string  `json:"name"`
	City        string  `json:"city,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	TimeZone    string  `json:"time_zone,omitempty"`
}
