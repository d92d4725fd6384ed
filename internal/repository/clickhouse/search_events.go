package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"aeroclaim/internal/domain/search"
	"aeroclaim/pkg/clickhouse"
	"aeroclaim/pkg/errors"
	"aeroclaim/pkg/logger"
)

// Compile-time check
var _ search.Recorder = (*SearchEventRepository)(nil)

// SearchEventRepository implements search.Recorder for ClickHouse.
// Events are buffered and written in batches; single row inserts are
// inefficient in ClickHouse.
type SearchEventRepository struct {
	conn        driver.Conn
	batchWriter *clickhouse.BatchWriter
}

// NewSearchEventRepository creates a new search event repository with batch writer
func NewSearchEventRepository(conn driver.Conn) *SearchEventRepository {
	repo := &SearchEventRepository{
		conn: conn,
	}

	repo.batchWriter = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig{
		FlushFunc:    repo.flushBatch,
		TableName:    "search_events",
		MaxBatchSize: 200,
		MaxAge:       5 * time.Second,
	})

	return repo
}

// Start begins the background flush loop
func (r *SearchEventRepository) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop gracefully shuts down the batch writer
func (r *SearchEventRepository) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Record buffers a search event for batch insertion
func (r *SearchEventRepository) Record(ctx context.Context, event *search.Event) error {
	return r.batchWriter.Add(ctx, event)
}

// flushBatch performs the actual batch insert: PrepareBatch, Append all rows
// in memory, then one Send for the whole batch.
func (r *SearchEventRepository) flushBatch(ctx context.Context, batch []interface{}) error {
	if len(batch) == 0 {
		return nil
	}

	log := logger.Get().With("component", "search_events_batch")

	query := `
		INSERT INTO search_events (
			timestamp, event_id, departure_iata, arrival_iata,
			flight_date, time_filter, result_count, cache_hit,
			user_id, created_at
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?
		)
	`

	start := time.Now()

	stmt, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer stmt.Abort()

	validItems := 0
	for _, item := range batch {
		event, ok := item.(*search.Event)
		if !ok {
			log.Warnf("Skipping invalid item type: %T", item)
			continue
		}

		err := stmt.Append(
			event.Timestamp, event.EventID, event.DepartureIATA, event.ArrivalIATA,
			event.FlightDate, event.TimeFilter, event.ResultCount, event.CacheHit,
			event.UserID, event.CreatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append to batch")
		}
		validItems++
	}

	if err := stmt.Send(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	log.Infof("Batch inserted %d search events in %v", validItems, time.Since(start))

	return nil
}

// TopRoutes returns the most searched routes in a time range
func (r *SearchEventRepository) TopRoutes(ctx context.Context, from, to time.Time, limit int) (map[string]uint64, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT concat(departure_iata, '-', arrival_iata) AS route, count() AS searches
		FROM search_events
		WHERE timestamp BETWEEN ? AND ?
		GROUP BY route
		ORDER BY searches DESC
		LIMIT ?
	`

	rows, err := r.conn.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query top routes")
	}
	defer rows.Close()

	routes := make(map[string]uint64)
	for rows.Next() {
		var route string
		var searches uint64
		if err := rows.Scan(&route, &searches); err != nil {
			return nil, errors.Wrap(err, "failed to scan route stat")
		}
		routes[route] = searches
	}

	return routes, nil
}

// CacheHitRate returns the share of searches answered from cache in a time range
func (r *SearchEventRepository) CacheHitRate(ctx context.Context, from, to time.Time) (float64, error) {
	query := `
		SELECT if(count() = 0, 0, countIf(cache_hit) / count()) AS hit_rate
		FROM search_events
		WHERE timestamp BETWEEN ? AND ?
	`

	var rate float64
	err := r.conn.QueryRow(ctx, query, from, to).Scan(&rate)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get cache hit rate")
	}

	return rate, nil
}
