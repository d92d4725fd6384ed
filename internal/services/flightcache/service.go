package flightcache

import (
	"context"
	"encoding/json"
	"time"

	"aeroclaim/internal/adapters/providers"
	"aeroclaim/internal/domain/cache"
	"aeroclaim/internal/metrics"
	pkgerrors "aeroclaim/pkg/errors"
	"aeroclaim/pkg/logger"
)

// TTLConfig holds the per-namespace freshness windows. Airport reference data
// never expires; everything else decays.
type TTLConfig struct {
	FlightStatus  time.Duration
	RouteSearch   time.Duration
	AirportSearch time.Duration
}

// DefaultTTLConfig returns the standard freshness windows
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		FlightStatus:  24 * time.Hour,
		RouteSearch:   6 * time.Hour,
		AirportSearch: 7 * 24 * time.Hour,
	}
}

// Service applies TTL policy and fail-open semantics on top of the raw cache
// store. A broken cache backend degrades to misses; it never fails a lookup.
type Service struct {
	store cache.Store
	ttl   TTLConfig
	log   *logger.Logger
}

// NewService creates a new cache policy service
func NewService(store cache.Store, ttl TTLConfig, log *logger.Logger) *Service {
	return &Service{
		store: store,
		ttl:   ttl,
		log:   log.With("service", "flightcache"),
	}
}

// GetFlightStatus returns a cached flight status, or false on miss
func (s *Service) GetFlightStatus(ctx context.Context, key string) (*providers.FlightStatus, bool) {
	var status providers.FlightStatus
	if !s.get(ctx, cache.NamespaceFlightStatus, key, &status) {
		return nil, false
	}
	return &status, true
}

// PutFlightStatus caches a flight status under the standard TTL
func (s *Service) PutFlightStatus(ctx context.Context, key string, status *providers.FlightStatus) {
	s.put(ctx, cache.NamespaceFlightStatus, key, status, s.ttl.FlightStatus)
}

// GetRouteSearch returns cached route search results, or false on miss
func (s *Service) GetRouteSearch(ctx context.Context, key string) ([]providers.FlightStatus, bool) {
	var flights []providers.FlightStatus
	if !s.get(ctx, cache.NamespaceRouteSearch, key, &flights) {
		return nil, false
	}
	return flights, true
}

// PutRouteSearch caches route search results under the standard TTL
func (s *Service) PutRouteSearch(ctx context.Context, key string, flights []providers.FlightStatus) {
	s.put(ctx, cache.NamespaceRouteSearch, key, flights, s.ttl.RouteSearch)
}

// GetAirportSearch returns cached airport search results, or false on miss
func (s *Service) GetAirportSearch(ctx context.Context, term string) ([]providers.Airport, bool) {
	var airports []providers.Airport
	if !s.get(ctx, cache.NamespaceAirportSearch, term, &airports) {
		return nil, false
	}
	return airports, true
}

// PutAirportSearch caches airport search results under the standard TTL
func (s *Service) PutAirportSearch(ctx context.Context, term string, airports []providers.Airport) {
	s.put(ctx, cache.NamespaceAirportSearch, term, airports, s.ttl.AirportSearch)
}

// GetAirport returns cached airport reference data, or false on miss
func (s *Service) GetAirport(ctx context.Context, iata string) (*providers.Airport, bool) {
	var airport providers.Airport
	if !s.get(ctx, cache.NamespaceAirportInfo, iata, &airport) {
		return nil, false
	}
	return &airport, true
}

// PutAirport caches airport reference data permanently. Coordinates and names
// change on a timescale of years, not hours.
func (s *Service) PutAirport(ctx context.Context, iata string, airport *providers.Airport) {
	s.put(ctx, cache.NamespaceAirportInfo, iata, airport, 0)
}

// ClearFlightStatus drops every cached flight status, forcing fresh provider
// lookups. Used after a provider data incident.
func (s *Service) ClearFlightStatus(ctx context.Context) (int64, error) {
	count, err := s.store.ClearNamespace(ctx, cache.NamespaceFlightStatus)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to clear flight status cache")
	}

	s.log.Infof("Cleared %d flight status cache entries", count)
	return count, nil
}

// get is the fail-open read path: backend errors are logged and reported as
// misses so a cache outage costs credits, not availability.
func (s *Service) get(ctx context.Context, ns cache.Namespace, key string, out interface{}) bool {
	data, err := s.store.Get(ctx, ns, key)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrCacheMiss) {
			metrics.RecordCacheLookup(string(ns), "miss")
		} else {
			metrics.RecordCacheLookup(string(ns), "error")
			s.log.Warnf("Cache read failed, treating as miss: ns=%s key=%s: %v", ns, key, err)
		}
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		// Corrupt entry: drop it and fall through to the provider
		s.log.Warnf("Corrupt cache entry dropped: ns=%s key=%s: %v", ns, key, err)
		_ = s.store.Delete(ctx, ns, key)
		metrics.RecordCacheLookup(string(ns), "error")
		return false
	}

	metrics.RecordCacheLookup(string(ns), "hit")
	metrics.CacheCreditsSaved.WithLabelValues(string(ns)).Add(float64(creditsFor(ns)))

	if _, err := s.store.IncrementHits(ctx, ns, key); err != nil {
		s.log.Debugf("Hit counter increment failed: ns=%s key=%s: %v", ns, key, err)
	}

	return true
}

// creditsFor maps a namespace to the provider credits a hit avoids spending
func creditsFor(ns cache.Namespace) int64 {
	switch ns {
	case cache.NamespaceFlightStatus:
		return providers.OpFlightStatus.Credits()
	case cache.NamespaceRouteSearch:
		return providers.OpRouteSearch.Credits()
	case cache.NamespaceAirportSearch:
		return providers.OpAirportSearch.Credits()
	case cache.NamespaceAirportInfo:
		return providers.OpAirportInfo.Credits()
	}
	return 0
}

// put is best-effort: a failed write is logged and forgotten
func (s *Service) put(ctx context.Context, ns cache.Namespace, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Errorf("Failed to marshal cache payload: ns=%s key=%s: %v", ns, key, err)
		return
	}

	if err := s.store.Set(ctx, ns, key, data, ttl); err != nil {
		s.log.Warnf("Cache write failed: ns=%s key=%s: %v", ns, key, err)
	}
}
