package search

import (
	"context"
	"time"
)

// Event is one analytics record per route search, written best-effort: a
// failed insert never fails the search that produced it.
type Event struct {
	Timestamp     time.Time `ch:"timestamp"`
	EventID       string    `ch:"event_id"`
	DepartureIATA string    `ch:"departure_iata"`
	ArrivalIATA   string    `ch:"arrival_iata"`
	FlightDate    time.Time `ch:"flight_date"`
	TimeFilter    string    `ch:"time_filter"`
	ResultCount   uint32    `ch:"result_count"`
	CacheHit      bool      `ch:"cache_hit"`
	UserID        string    `ch:"user_id"`
	CreatedAt     time.Time `ch:"created_at"`
}

// Recorder defines the analytics sink for search events.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}
