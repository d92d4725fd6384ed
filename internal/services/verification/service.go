package verification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"aeroclaim/internal/adapters/providers"
	"aeroclaim/internal/domain/compensation"
	"aeroclaim/internal/domain/flight"
	"aeroclaim/internal/domain/search"
	"aeroclaim/internal/domain/usage"
	"aeroclaim/internal/metrics"
	"aeroclaim/internal/services/flightcache"
	quotasvc "aeroclaim/internal/services/quota"
	pkgerrors "aeroclaim/pkg/errors"
	"aeroclaim/pkg/geo"
	"aeroclaim/pkg/logger"
)

// Service orchestrates the verify-and-enrich and route-search workflows. It
// is the only component that talks to the provider, and it converts every
// provider-side failure into a degraded result instead of an error: callers
// get a Source to act on, not a stack trace.
type Service struct {
	provider     providers.FlightProvider
	quota        *quotasvc.Service
	cache        *flightcache.Service
	calculator   compensation.Calculator
	notFoundRepo flight.NotFoundRepository
	snapshotRepo flight.SnapshotRepository
	recorder     search.Recorder
	log          *logger.Logger

	enabled bool
}

// NewService creates a new verification orchestrator. snapshotRepo and
// recorder may be nil; auditing and analytics are then skipped.
func NewService(
	provider providers.FlightProvider,
	quota *quotasvc.Service,
	cache *flightcache.Service,
	calculator compensation.Calculator,
	notFoundRepo flight.NotFoundRepository,
	snapshotRepo flight.SnapshotRepository,
	recorder search.Recorder,
	enabled bool,
	log *logger.Logger,
) *Service {
	return &Service{
		provider:     provider,
		quota:        quota,
		cache:        cache,
		calculator:   calculator,
		notFoundRepo: notFoundRepo,
		snapshotRepo: snapshotRepo,
		recorder:     recorder,
		enabled:      enabled,
		log:          log.With("service", "verification"),
	}
}

// VerifyFlight runs the full verification workflow for a claim. The only
// errors it returns are caller mistakes (invalid identity); every downstream
// failure degrades into a result whose Source says what happened. refresh
// skips the cache read so a fresh provider answer replaces the cached one.
func (s *Service) VerifyFlight(ctx context.Context, id flight.Identity, claimID *uuid.UUID, refresh bool) (*VerifyResult, error) {
	if err := id.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidInput, err.Error())
	}

	if !s.enabled {
		return s.finishVerify(&VerifyResult{Source: SourceManual}), nil
	}

	key := id.Key()

	if !refresh {
		if status, ok := s.cache.GetFlightStatus(ctx, key); ok {
			result := &VerifyResult{Source: SourceCached, Flight: status}
			result.CreditsUsed += s.enrich(ctx, result, id)
			return s.finishVerify(result), nil
		}
	}

	if s.knownNotFound(ctx, key) {
		return s.finishVerify(&VerifyResult{Source: SourceNotFound}), nil
	}

	op := providers.OpFlightStatus
	if err := s.quota.CheckAdmission(ctx, s.provider.Name(), op.Credits()); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrQuotaExceeded) {
			return s.finishVerify(&VerifyResult{Source: SourceQuotaExceeded}), nil
		}
		// Infrastructure failure on the quota path: verification cannot be
		// billed, so fall back to manual review
		s.log.Errorf("Quota admission check failed: %v", err)
		return s.finishVerify(&VerifyResult{Source: SourceManual}), nil
	}

	start := time.Now()
	status, err := s.provider.FlightStatus(ctx, id.FlightNumber, id.FlightDate)
	latency := time.Since(start)

	if err != nil {
		credits := s.recordFailure(ctx, op, latency, err, claimID)

		if providers.IsNotFound(err) {
			s.rememberNotFound(ctx, key)
			return s.finishVerify(&VerifyResult{Source: SourceNotFound, CreditsUsed: credits}), nil
		}

		s.log.Warnf("Provider lookup failed for %s: %v", key, err)
		return s.finishVerify(&VerifyResult{Source: SourceManual, CreditsUsed: credits}), nil
	}

	credits := s.recordSuccess(ctx, op, latency, claimID)
	metrics.RecordProviderCall(s.provider.Name(), string(op), "success", latency)

	s.cache.PutFlightStatus(ctx, key, status)

	if claimID != nil && s.snapshotRepo != nil && len(status.Raw) > 0 {
		if err := s.snapshotRepo.Insert(ctx, *claimID, s.provider.Name(), key, status.Raw); err != nil {
			s.log.Warnf("Audit snapshot failed for %s: %v", key, err)
		}
	}

	result := &VerifyResult{Source: SourceProvider, Flight: status, CreditsUsed: credits}
	result.CreditsUsed += s.enrich(ctx, result, id)
	return s.finishVerify(result), nil
}

// SearchRoute lists flights between two airports, filtered by time of day and
// annotated with compensation estimates. The time filter is applied client
// side so every filter variant shares one cached provider response. refresh
// forces a provider call and overwrites the cached list.
func (s *Service) SearchRoute(ctx context.Context, depIATA, arrIATA string, date time.Time, timeFilter string, userID *uuid.UUID, refresh bool) (*SearchResult, error) {
	depIATA = strings.ToUpper(strings.TrimSpace(depIATA))
	arrIATA = strings.ToUpper(strings.TrimSpace(arrIATA))
	if len(depIATA) != 3 || len(arrIATA) != 3 {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidInput, "departure and arrival must be 3-letter IATA codes")
	}
	if date.IsZero() {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidInput, "flight date is required")
	}

	if !s.enabled {
		return &SearchResult{Source: SourceManual}, nil
	}

	// Time of day deliberately excluded so morning and evening searches for
	// the same route share one provider call
	key := fmt.Sprintf("%s:%s:%s", depIATA, arrIATA, date.UTC().Format("2006-01-02"))

	var flights []providers.FlightStatus
	var source Source
	var credits int64

	if cached, ok := s.cachedRouteSearch(ctx, key, refresh); ok {
		flights = cached
		source = SourceCached
	} else {
		op := providers.OpRouteSearch
		if err := s.quota.CheckAdmission(ctx, s.provider.Name(), op.Credits()); err != nil {
			if pkgerrors.Is(err, pkgerrors.ErrQuotaExceeded) {
				s.recordSearchEvent(ctx, depIATA, arrIATA, date, timeFilter, 0, false, userID)
				metrics.RouteSearches.WithLabelValues(string(SourceQuotaExceeded)).Inc()
				return &SearchResult{Source: SourceQuotaExceeded}, nil
			}
			s.log.Errorf("Quota admission check failed: %v", err)
			return &SearchResult{Source: SourceManual}, nil
		}

		start := time.Now()
		found, err := s.provider.SearchRoute(ctx, depIATA, arrIATA, date)
		latency := time.Since(start)

		if err != nil {
			credits = s.recordFailure(ctx, op, latency, err, nil)
			if providers.IsNotFound(err) {
				// No flights on this route that day is a valid empty answer
				source = SourceProvider
				flights = nil
			} else {
				s.log.Warnf("Route search failed for %s-%s: %v", depIATA, arrIATA, err)
				metrics.RouteSearches.WithLabelValues(string(SourceManual)).Inc()
				return &SearchResult{Source: SourceManual, CreditsUsed: credits}, nil
			}
		} else {
			credits = s.recordSuccess(ctx, op, latency, nil)
			metrics.RecordProviderCall(s.provider.Name(), string(op), "success", latency)
			flights = found
			source = SourceProvider
		}

		s.cache.PutRouteSearch(ctx, key, flights)
	}

	filtered := filterByTime(flights, timeFilter)
	results := s.annotate(filtered)
	sortResults(results)

	s.recordSearchEvent(ctx, depIATA, arrIATA, date, timeFilter, len(results), source == SourceCached, userID)
	metrics.RouteSearches.WithLabelValues(string(source)).Inc()

	return &SearchResult{
		Source:      source,
		Flights:     results,
		CreditsUsed: credits,
	}, nil
}

// SearchAirports finds airports matching a free-text term. Results live in
// the week-long airport-search cache; reference data changes rarely enough
// that one credit per term per week is the steady-state cost. refresh skips
// the cache read and replaces the stored result.
func (s *Service) SearchAirports(ctx context.Context, term string, refresh bool) (*AirportSearchResult, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if len(term) < 2 {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidInput, "search term must be at least 2 characters")
	}

	if !s.enabled {
		return &AirportSearchResult{Source: SourceManual}, nil
	}

	if !refresh {
		if cached, ok := s.cache.GetAirportSearch(ctx, term); ok {
			return &AirportSearchResult{Source: SourceCached, Airports: cached}, nil
		}
	}

	op := providers.OpAirportSearch
	if err := s.quota.CheckAdmission(ctx, s.provider.Name(), op.Credits()); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrQuotaExceeded) {
			return &AirportSearchResult{Source: SourceQuotaExceeded}, nil
		}
		s.log.Errorf("Quota admission check failed: %v", err)
		return &AirportSearchResult{Source: SourceManual}, nil
	}

	start := time.Now()
	airports, err := s.provider.SearchAirports(ctx, term)
	latency := time.Since(start)

	if err != nil {
		credits := s.recordFailure(ctx, op, latency, err, nil)
		if providers.IsNotFound(err) {
			// No matches is a valid answer worth caching
			s.cache.PutAirportSearch(ctx, term, nil)
			return &AirportSearchResult{Source: SourceProvider, CreditsUsed: credits}, nil
		}
		s.log.Warnf("Airport search failed for %q: %v", term, err)
		return &AirportSearchResult{Source: SourceManual, CreditsUsed: credits}, nil
	}

	credits := s.recordSuccess(ctx, op, latency, nil)
	metrics.RecordProviderCall(s.provider.Name(), string(op), "success", latency)
	s.cache.PutAirportSearch(ctx, term, airports)

	return &AirportSearchResult{Source: SourceProvider, Airports: airports, CreditsUsed: credits}, nil
}

// cachedRouteSearch is the route cache read, bypassed entirely on refresh
func (s *Service) cachedRouteSearch(ctx context.Context, key string, refresh bool) ([]providers.FlightStatus, bool) {
	if refresh {
		return nil, false
	}
	return s.cache.GetRouteSearch(ctx, key)
}

// knownNotFound reports whether the flight key is in the not-found set,
// bumping its check count when it is. Lookup failures are treated as unknown.
func (s *Service) knownNotFound(ctx context.Context, key string) bool {
	if s.notFoundRepo == nil {
		return false
	}

	_, err := s.notFoundRepo.Get(ctx, s.provider.Name(), key)
	if err != nil {
		if !pkgerrors.Is(err, pkgerrors.ErrNotFound) {
			s.log.Warnf("Not-found lookup failed for %s: %v", key, err)
		}
		return false
	}

	if err := s.notFoundRepo.Record(ctx, s.provider.Name(), key); err != nil {
		s.log.Warnf("Not-found count bump failed for %s: %v", key, err)
	}
	return true
}

func (s *Service) rememberNotFound(ctx context.Context, key string) {
	if s.notFoundRepo == nil {
		return
	}
	if err := s.notFoundRepo.Record(ctx, s.provider.Name(), key); err != nil {
		s.log.Warnf("Failed to record not-found flight %s: %v", key, err)
	}
}

// recordSuccess charges the operation's tier cost to the ledger
func (s *Service) recordSuccess(ctx context.Context, op providers.Operation, latency time.Duration, claimID *uuid.UUID) int64 {
	status := 200
	record := &usage.Record{
		Provider:   s.provider.Name(),
		Endpoint:   string(op),
		Tier:       op.Tier(),
		Credits:    op.Credits(),
		HTTPStatus: &status,
		LatencyMs:  latency.Milliseconds(),
		ClaimID:    claimID,
	}
	if _, err := s.quota.RecordUsage(ctx, record); err != nil {
		s.log.Errorf("Usage recording failed for %s: %v", op, err)
	}
	return record.Credits
}

// recordFailure writes a ledger entry for a failed call. A definitive 404 is
// still billed by the vendor, so it carries the tier cost; transport failures
// never reached billing and are recorded with zero credits.
func (s *Service) recordFailure(ctx context.Context, op providers.Operation, latency time.Duration, callErr error, claimID *uuid.UUID) int64 {
	record := &usage.Record{
		Provider:  s.provider.Name(),
		Endpoint:  string(op),
		Tier:      op.Tier(),
		LatencyMs: latency.Milliseconds(),
		ClaimID:   claimID,
	}

	msg := callErr.Error()
	record.ErrorMessage = &msg

	outcome := "error"
	if pe, ok := providers.AsError(callErr); ok {
		if pe.Status != 0 {
			st := pe.Status
			record.HTTPStatus = &st
		}
		switch pe.Kind {
		case providers.KindNotFound:
			record.Credits = op.Credits()
			outcome = "not_found"
		case providers.KindRateLimit:
			outcome = "rate_limited"
		}
	}

	metrics.RecordProviderCall(s.provider.Name(), string(op), outcome, latency)

	if _, err := s.quota.RecordUsage(ctx, record); err != nil {
		s.log.Errorf("Usage recording failed for %s: %v", op, err)
	}
	return record.Credits
}

// enrich resolves great-circle distance, delay and compensation for a
// verified flight. Returns additional credits spent on airport lookups.
// Distance failures leave the result partially enriched; they never undo the
// verification itself.
func (s *Service) enrich(ctx context.Context, result *VerifyResult, id flight.Identity) int64 {
	if result.Flight == nil {
		return 0
	}

	status := result.Flight
	result.DelayMinutes = int(status.ArrivalDelay().Minutes())

	var extraCredits int64
	if status.DistanceKm > 0 {
		result.DistanceKm = status.DistanceKm
	} else {
		depIATA := firstNonEmpty(status.Departure.AirportIATA, id.DepartureIATA)
		arrIATA := firstNonEmpty(status.Arrival.AirportIATA, id.ArrivalIATA)

		distance, credits := s.resolveDistance(ctx, depIATA, arrIATA)
		result.DistanceKm = distance
		extraCredits = credits
	}

	incident := id.Incident
	if incident == "" {
		incident = flight.IncidentDelay
	}
	if status.Cancelled() {
		incident = flight.IncidentCancellation
	}

	result.Compensation = s.calculator.Calculate(result.DistanceKm, status.ArrivalDelay(), incident)
	return extraCredits
}

// resolveDistance computes the haversine distance between two airports,
// fetching their coordinates through the permanent airport cache.
func (s *Service) resolveDistance(ctx context.Context, depIATA, arrIATA string) (float64, int64) {
	if depIATA == "" || arrIATA == "" {
		return 0, 0
	}

	var credits int64
	dep, c1 := s.airport(ctx, depIATA)
	credits += c1
	arr, c2 := s.airport(ctx, arrIATA)
	credits += c2

	if dep == nil || arr == nil {
		return 0, credits
	}

	return geo.Haversine(dep.Latitude, dep.Longitude, arr.Latitude, arr.Longitude), credits
}

// airport returns airport metadata, consulting the permanent cache before
// spending a tier 1 credit on the provider.
func (s *Service) airport(ctx context.Context, iata string) (*providers.Airport, int64) {
	if cached, ok := s.cache.GetAirport(ctx, iata); ok {
		return cached, 0
	}

	op := providers.OpAirportInfo
	if err := s.quota.CheckAdmission(ctx, s.provider.Name(), op.Credits()); err != nil {
		return nil, 0
	}

	start := time.Now()
	airport, err := s.provider.AirportByIATA(ctx, iata)
	latency := time.Since(start)

	if err != nil {
		credits := s.recordFailure(ctx, op, latency, err, nil)
		s.log.Warnf("Airport lookup failed for %s: %v", iata, err)
		return nil, credits
	}

	credits := s.recordSuccess(ctx, op, latency, nil)
	metrics.RecordProviderCall(s.provider.Name(), string(op), "success", latency)
	s.cache.PutAirport(ctx, iata, airport)
	return airport, credits
}

// annotate attaches delay and estimated compensation to search results
func (s *Service) annotate(flights []providers.FlightStatus) []RouteFlight {
	results := make([]RouteFlight, 0, len(flights))
	for _, f := range flights {
		delay := f.ArrivalDelay()
		incident := flight.IncidentDelay
		if f.Cancelled() {
			incident = flight.IncidentCancellation
		}

		results = append(results, RouteFlight{
			FlightStatus: f,
			DelayMinutes: int(delay.Minutes()),
			Estimate:     s.calculator.Calculate(f.DistanceKm, delay, incident),
		})
	}
	return results
}

func (s *Service) recordSearchEvent(ctx context.Context, depIATA, arrIATA string, date time.Time, timeFilter string, resultCount int, cacheHit bool, userID *uuid.UUID) {
	if s.recorder == nil {
		return
	}

	event := &search.Event{
		Timestamp:     time.Now().UTC(),
		EventID:       uuid.NewString(),
		DepartureIATA: depIATA,
		ArrivalIATA:   arrIATA,
		FlightDate:    date.UTC(),
		TimeFilter:    timeFilter,
		ResultCount:   uint32(resultCount),
		CacheHit:      cacheHit,
		CreatedAt:     time.Now().UTC(),
	}
	if userID != nil {
		event.UserID = userID.String()
	}

	if err := s.recorder.Record(ctx, event); err != nil {
		s.log.Debugf("Search analytics record failed: %v", err)
	}
}

func (s *Service) finishVerify(result *VerifyResult) *VerifyResult {
	metrics.VerificationRequests.WithLabelValues(string(result.Source)).Inc()
	return result
}

// filterByTime keeps flights whose scheduled departure falls inside the
// requested window, evaluated on the departure airport's wall clock. Named
// windows are morning/afternoon/evening; an explicit HH:MM keeps departures
// within three hours either side. An empty or unknown filter keeps everything.
func filterByTime(flights []providers.FlightStatus, timeFilter string) []providers.FlightStatus {
	if timeFilter == "" {
		return flights
	}

	var matches func(t time.Time) bool
	switch timeFilter {
	case FilterMorning:
		matches = hourWindow(6, 12)
	case FilterAfternoon:
		matches = hourWindow(12, 18)
	case FilterEvening:
		matches = hourWindow(18, 24)
	default:
		target, err := time.Parse("15:04", timeFilter)
		if err != nil {
			return flights
		}
		matches = func(t time.Time) bool {
			minutes := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
			targetMinutes := time.Duration(target.Hour())*time.Hour + time.Duration(target.Minute())*time.Minute
			diff := minutes - targetMinutes
			if diff < 0 {
				diff = -diff
			}
			return diff <= explicitFilterWindow
		}
	}

	filtered := make([]providers.FlightStatus, 0, len(flights))
	for _, f := range flights {
		dep := f.Departure.ScheduledWallClock()
		if dep.IsZero() || matches(dep) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

func hourWindow(from, to int) func(t time.Time) bool {
	return func(t time.Time) bool {
		h := t.Hour()
		return h >= from && h < to
	}
}

// sortResults orders likely-eligible flights (3h+ delay or cancellation)
// before the rest, each group by scheduled departure.
func sortResults(results []RouteFlight) {
	sort.SliceStable(results, func(i, j int) bool {
		ei := results[i].DelayMinutes >= 180 || results[i].Cancelled()
		ej := results[j].DelayMinutes >= 180 || results[j].Cancelled()
		if ei != ej {
			return ei
		}
		return results[i].Departure.ScheduledUTC.Before(results[j].Departure.ScheduledUTC)
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
