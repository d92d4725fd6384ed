package verification

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeroclaim/internal/adapters/providers"
	"aeroclaim/internal/domain/cache"
	"aeroclaim/internal/domain/flight"
	"aeroclaim/internal/domain/quota"
	"aeroclaim/internal/domain/search"
	"aeroclaim/internal/domain/usage"
	"aeroclaim/internal/services/compensation"
	"aeroclaim/internal/services/flightcache"
	quotasvc "aeroclaim/internal/services/quota"
	pkgerrors "aeroclaim/pkg/errors"
	"aeroclaim/pkg/logger"
)

// ---- fakes ----

type fakeProvider struct {
	mu sync.Mutex

	status               *providers.FlightStatus
	statusErr            error
	flights              []providers.FlightStatus
	searchErr            error
	airports             map[string]*providers.Airport
	airportSearchResults []providers.Airport
	airportSearchErr     error

	statusCalls        int
	searchCalls        int
	airportCalls       int
	airportSearchCalls int
}

func (p *fakeProvider) Name() string { return "aerodatabox" }

func (p *fakeProvider) FlightStatus(ctx context.Context, flightNumber string, date time.Time) (*providers.FlightStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusCalls++
	if p.statusErr != nil {
		return nil, p.statusErr
	}
	return p.status, nil
}

func (p *fakeProvider) SearchRoute(ctx context.Context, depIATA, arrIATA string, date time.Time) ([]providers.FlightStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searchCalls++
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return p.flights, nil
}

func (p *fakeProvider) SearchAirports(ctx context.Context, term string) ([]providers.Airport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.airportSearchCalls++
	if p.airportSearchErr != nil {
		return nil, p.airportSearchErr
	}
	return p.airportSearchResults, nil
}

func (p *fakeProvider) AirportByIATA(ctx context.Context, code string) (*providers.Airport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.airportCalls++
	airport, ok := p.airports[code]
	if !ok {
		return nil, providers.NewError(providers.KindNotFound, providers.OpAirportInfo, 404, code, nil)
	}
	return airport, nil
}

type memPeriodRepo struct {
	mu     sync.Mutex
	period *quota.Period
}

func (r *memPeriodRepo) GetLatest(ctx context.Context, provider string) (*quota.Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.period == nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrNotFound, "no period")
	}
	copy := *r.period
	return &copy, nil
}

func (r *memPeriodRepo) Create(ctx context.Context, period *quota.Period) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *period
	r.period = &copy
	return nil
}

func (r *memPeriodRepo) AddCredits(ctx context.Context, periodID uuid.UUID, credits int64) (*quota.Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.period.CreditsUsed += credits
	if r.period.UsagePercent() >= quota.ThresholdCritical {
		r.period.Exceeded = true
	}
	copy := *r.period
	return &copy, nil
}

func (r *memPeriodRepo) Update(ctx context.Context, period *quota.Period) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *period
	r.period = &copy
	return nil
}

type memUsageRepo struct {
	mu      sync.Mutex
	records []*usage.Record
}

func (r *memUsageRepo) Insert(ctx context.Context, record *usage.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *record
	r.records = append(r.records, &copy)
	return nil
}

func (r *memUsageRepo) DailyStats(ctx context.Context, provider string, since time.Time) ([]usage.DayStat, error) {
	return nil, nil
}

func (r *memUsageRepo) TopEndpoints(ctx context.Context, provider string, since time.Time, limit int) ([]usage.EndpointStat, error) {
	return nil, nil
}

type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]byte)}
}

func (s *memStore) Get(ctx context.Context, ns cache.Namespace, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.entries[string(ns)+":"+key]
	if !ok {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCacheMiss, "miss")
	}
	return data, nil
}

func (s *memStore) Set(ctx context.Context, ns cache.Namespace, key string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[string(ns)+":"+key] = payload
	return nil
}

func (s *memStore) Delete(ctx context.Context, ns cache.Namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, string(ns)+":"+key)
	return nil
}

func (s *memStore) ClearNamespace(ctx context.Context, ns cache.Namespace) (int64, error) {
	return 0, nil
}

func (s *memStore) IncrementHits(ctx context.Context, ns cache.Namespace, key string) (int64, error) {
	return 1, nil
}

type memNotFoundRepo struct {
	mu      sync.Mutex
	records map[string]*flight.NotFoundRecord
}

func newMemNotFoundRepo() *memNotFoundRepo {
	return &memNotFoundRepo{records: make(map[string]*flight.NotFoundRecord)}
}

func (r *memNotFoundRepo) Get(ctx context.Context, provider, flightKey string) (*flight.NotFoundRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[provider+":"+flightKey]
	if !ok {
		return nil, pkgerrors.Wrap(pkgerrors.ErrNotFound, "unknown")
	}
	copy := *rec
	return &copy, nil
}

func (r *memNotFoundRepo) Record(ctx context.Context, provider, flightKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := provider + ":" + flightKey
	if rec, ok := r.records[key]; ok {
		rec.CheckCount++
		rec.LastCheckedAt = time.Now()
		return nil
	}
	r.records[key] = &flight.NotFoundRecord{
		Provider:      provider,
		FlightKey:     flightKey,
		CheckCount:    1,
		LastCheckedAt: time.Now(),
	}
	return nil
}

type memSnapshotRepo struct {
	mu        sync.Mutex
	snapshots []json.RawMessage
}

func (r *memSnapshotRepo) Insert(ctx context.Context, claimID uuid.UUID, provider, flightKey string, raw json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, raw)
	return nil
}

type memRecorder struct {
	mu     sync.Mutex
	events []*search.Event
}

func (r *memRecorder) Record(ctx context.Context, event *search.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// ---- harness ----

type harness struct {
	svc        *Service
	provider   *fakeProvider
	cache      *flightcache.Service
	periodRepo *memPeriodRepo
	usageRepo  *memUsageRepo
	notFound   *memNotFoundRepo
	snapshots  *memSnapshotRepo
	recorder   *memRecorder
}

func newHarness(t *testing.T, monthlyCredits int64) *harness {
	t.Helper()

	provider := &fakeProvider{airports: make(map[string]*providers.Airport)}
	periodRepo := &memPeriodRepo{}
	usageRepo := &memUsageRepo{}
	notFound := newMemNotFoundRepo()
	snapshots := &memSnapshotRepo{}
	recorder := &memRecorder{}

	log := logger.Get()
	quotaService := quotasvc.NewService(periodRepo, usageRepo, nil, monthlyCredits, log)
	cacheService := flightcache.NewService(newMemStore(), flightcache.DefaultTTLConfig(), log)

	svc := NewService(
		provider,
		quotaService,
		cacheService,
		compensation.NewEU261Calculator(),
		notFound,
		snapshots,
		recorder,
		true,
		log,
	)

	return &harness{
		svc:        svc,
		provider:   provider,
		cache:      cacheService,
		periodRepo: periodRepo,
		usageRepo:  usageRepo,
		notFound:   notFound,
		snapshots:  snapshots,
		recorder:   recorder,
	}
}

func lh123Identity() flight.Identity {
	return flight.Identity{
		FlightNumber: "LH123",
		FlightDate:   time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Incident:     flight.IncidentDelay,
	}
}

func delayedFlight(delay time.Duration, distanceKm float64) *providers.FlightStatus {
	scheduled := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	actual := scheduled.Add(delay)
	return &providers.FlightStatus{
		FlightNumber: "LH123",
		Airline:      "Lufthansa",
		State:        providers.StateLanded,
		Departure: providers.Movement{
			AirportIATA:  "FRA",
			ScheduledUTC: time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC),
		},
		Arrival: providers.Movement{
			AirportIATA:  "MAD",
			ScheduledUTC: scheduled,
			ActualUTC:    &actual,
		},
		DistanceKm: distanceKm,
		Raw:        json.RawMessage(`{"vendor":"payload"}`),
	}
}

// ---- VerifyFlight ----

func TestVerifyFlightProviderSuccess(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.status = delayedFlight(3*time.Hour+25*time.Minute, 1800)

	claimID := uuid.New()
	result, err := h.svc.VerifyFlight(context.Background(), lh123Identity(), &claimID, false)
	require.NoError(t, err)

	assert.Equal(t, SourceProvider, result.Source)
	assert.True(t, result.Verified())
	assert.Equal(t, 205, result.DelayMinutes)
	assert.Equal(t, 1800.0, result.DistanceKm)
	assert.True(t, result.Compensation.Eligible)
	assert.Equal(t, 2, result.Compensation.Tier)
	assert.Equal(t, int64(2), result.CreditsUsed)
	assert.Len(t, h.snapshots.snapshots, 1)
}

func TestVerifyFlightCachedRepeatCostsNothing(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.status = delayedFlight(4*time.Hour, 1800)
	ctx := context.Background()

	first, err := h.svc.VerifyFlight(ctx, lh123Identity(), nil, false)
	require.NoError(t, err)
	require.Equal(t, SourceProvider, first.Source)

	second, err := h.svc.VerifyFlight(ctx, lh123Identity(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, SourceCached, second.Source)
	assert.Equal(t, int64(0), second.CreditsUsed)
	assert.Equal(t, 1, h.provider.statusCalls, "cache hit must not reach the provider")

	// Enrichment still present on the cached path
	assert.True(t, second.Compensation.Eligible)
	assert.Equal(t, first.DelayMinutes, second.DelayMinutes)
}

func TestVerifyFlightForceRefreshBypassesCache(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.status = delayedFlight(4*time.Hour, 1800)
	ctx := context.Background()

	first, err := h.svc.VerifyFlight(ctx, lh123Identity(), nil, false)
	require.NoError(t, err)
	require.Equal(t, SourceProvider, first.Source)

	// Provider now reports a bigger delay; a plain repeat would serve the
	// stale cached answer
	h.provider.status = delayedFlight(6*time.Hour, 1800)

	refreshed, err := h.svc.VerifyFlight(ctx, lh123Identity(), nil, true)
	require.NoError(t, err)

	assert.Equal(t, SourceProvider, refreshed.Source)
	assert.Equal(t, 360, refreshed.DelayMinutes)
	assert.Equal(t, int64(2), refreshed.CreditsUsed)
	assert.Equal(t, 2, h.provider.statusCalls)

	// The refresh overwrote the cache entry
	cached, err := h.svc.VerifyFlight(ctx, lh123Identity(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, SourceCached, cached.Source)
	assert.Equal(t, 360, cached.DelayMinutes)
	assert.Equal(t, 2, h.provider.statusCalls)
}

func TestVerifyFlightCachedEnrichmentBillsAirportLookups(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.airports["FRA"] = &providers.Airport{IATA: "FRA", Latitude: 50.0379, Longitude: 8.5622}
	h.provider.airports["MAD"] = &providers.Airport{IATA: "MAD", Latitude: 40.4983, Longitude: -3.5676}
	ctx := context.Background()

	// Warm flight cache, cold airport cache: the cached payload has no
	// distance so enrichment must spend tier 1 credits
	h.cache.PutFlightStatus(ctx, lh123Identity().Key(), delayedFlight(4*time.Hour, 0))

	result, err := h.svc.VerifyFlight(ctx, lh123Identity(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, SourceCached, result.Source)
	assert.Equal(t, 0, h.provider.statusCalls)
	assert.Equal(t, 2, h.provider.airportCalls)
	assert.InDelta(t, 1420, result.DistanceKm, 50)
	assert.Equal(t, int64(2), result.CreditsUsed, "airport lookups on the cached path still cost credits")
}

func TestVerifyFlightQuotaExceededSkipsNetwork(t *testing.T) {
	h := newHarness(t, 100)
	h.provider.status = delayedFlight(4*time.Hour, 1800)
	ctx := context.Background()

	// Drive usage to 96%
	period, err := h.svc.quota.CurrentPeriod(ctx, "aerodatabox")
	require.NoError(t, err)
	_, err = h.periodRepo.AddCredits(ctx, period.ID, 96)
	require.NoError(t, err)

	result, err := h.svc.VerifyFlight(ctx, lh123Identity(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, SourceQuotaExceeded, result.Source)
	assert.False(t, result.Verified())
	assert.Equal(t, int64(0), result.CreditsUsed)
	assert.Equal(t, 0, h.provider.statusCalls)
}

func TestVerifyFlightNotFoundBilledAndShortCircuited(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.statusErr = providers.NewError(providers.KindNotFound, providers.OpFlightStatus, 404, "no flight", nil)
	ctx := context.Background()

	first, err := h.svc.VerifyFlight(ctx, lh123Identity(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, SourceNotFound, first.Source)
	assert.Equal(t, int64(2), first.CreditsUsed, "confirmed 404 is billed by the vendor")

	// Second request skips the provider entirely
	second, err := h.svc.VerifyFlight(ctx, lh123Identity(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, SourceNotFound, second.Source)
	assert.Equal(t, int64(0), second.CreditsUsed)
	assert.Equal(t, 1, h.provider.statusCalls)

	rec, err := h.notFound.Get(ctx, "aerodatabox", lh123Identity().Key())
	require.NoError(t, err)
	assert.Equal(t, 2, rec.CheckCount)
}

func TestVerifyFlightTransportFailureDegradesToManual(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.statusErr = providers.NewError(providers.KindNetwork, providers.OpFlightStatus, 0, "connection reset", nil)

	result, err := h.svc.VerifyFlight(context.Background(), lh123Identity(), nil, false)
	require.NoError(t, err, "provider failures must not surface as errors")

	assert.Equal(t, SourceManual, result.Source)
	assert.Equal(t, int64(0), result.CreditsUsed, "unbilled transport failure")

	// Ledger still has the failed attempt
	require.Len(t, h.usageRepo.records, 1)
	assert.Equal(t, int64(0), h.usageRepo.records[0].Credits)
	assert.NotNil(t, h.usageRepo.records[0].ErrorMessage)
}

func TestVerifyFlightResolvesDistanceViaAirports(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.status = delayedFlight(4*time.Hour, 0) // provider omits distance
	h.provider.airports["FRA"] = &providers.Airport{IATA: "FRA", Latitude: 50.0379, Longitude: 8.5622}
	h.provider.airports["MAD"] = &providers.Airport{IATA: "MAD", Latitude: 40.4983, Longitude: -3.5676}

	result, err := h.svc.VerifyFlight(context.Background(), lh123Identity(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, SourceProvider, result.Source)
	assert.InDelta(t, 1420, result.DistanceKm, 50, "FRA-MAD great circle distance")
	assert.Equal(t, 1, result.Compensation.Tier)
	// 2 for the flight plus 1 per airport lookup
	assert.Equal(t, int64(4), result.CreditsUsed)
	assert.Equal(t, 2, h.provider.airportCalls)

	// Second verification reuses the permanent airport cache
	h.provider.status = delayedFlight(4*time.Hour, 0)
	_, _ = h.svc.VerifyFlight(context.Background(), flight.Identity{
		FlightNumber:  "LH456",
		FlightDate:    time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC),
		DepartureIATA: "FRA",
		ArrivalIATA:   "MAD",
	}, nil, false)
	assert.Equal(t, 2, h.provider.airportCalls, "airport metadata cached permanently")
}

func TestVerifyFlightCancelledOverridesIncident(t *testing.T) {
	h := newHarness(t, 10000)
	status := delayedFlight(0, 2000)
	status.State = providers.StateCancelled
	status.Arrival.ActualUTC = nil
	h.provider.status = status

	result, err := h.svc.VerifyFlight(context.Background(), lh123Identity(), nil, false)
	require.NoError(t, err)

	assert.True(t, result.Compensation.Eligible, "cancellation qualifies regardless of delay")
}

func TestVerifyFlightDisabledProvider(t *testing.T) {
	h := newHarness(t, 10000)
	h.svc.enabled = false

	result, err := h.svc.VerifyFlight(context.Background(), lh123Identity(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, SourceManual, result.Source)
	assert.Equal(t, 0, h.provider.statusCalls)
}

func TestVerifyFlightInvalidIdentity(t *testing.T) {
	h := newHarness(t, 10000)

	_, err := h.svc.VerifyFlight(context.Background(), flight.Identity{}, nil, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidInput))
}

// ---- SearchRoute ----

func routeFlights() []providers.FlightStatus {
	mk := func(num string, hour int, delay time.Duration) providers.FlightStatus {
		scheduled := time.Date(2026, 8, 15, hour, 0, 0, 0, time.UTC)
		arrSched := scheduled.Add(2 * time.Hour)
		arrActual := arrSched.Add(delay)
		return providers.FlightStatus{
			FlightNumber: num,
			State:        providers.StateLanded,
			Departure:    providers.Movement{AirportIATA: "FRA", ScheduledUTC: scheduled},
			Arrival:      providers.Movement{AirportIATA: "MAD", ScheduledUTC: arrSched, ActualUTC: &arrActual},
			DistanceKm:   1420,
		}
	}

	return []providers.FlightStatus{
		mk("LH100", 7, 30*time.Minute),
		mk("LH200", 10, 4*time.Hour),
		mk("LH300", 14, 0),
		mk("LH400", 20, 3*time.Hour),
	}
}

func TestSearchRouteFiltersAndSorts(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.flights = routeFlights()
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	result, err := h.svc.SearchRoute(context.Background(), "FRA", "MAD", date, FilterMorning, nil, false)
	require.NoError(t, err)

	assert.Equal(t, SourceProvider, result.Source)
	require.Len(t, result.Flights, 2)
	// Eligible (4h delay) sorts before the on-time morning flight
	assert.Equal(t, "LH200", result.Flights[0].FlightNumber)
	assert.True(t, result.Flights[0].Estimate.Eligible)
	assert.Equal(t, "LH100", result.Flights[1].FlightNumber)
	assert.False(t, result.Flights[1].Estimate.Eligible)
	assert.Equal(t, int64(2), result.CreditsUsed)
}

func TestSearchRouteCacheSharedAcrossFilters(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.flights = routeFlights()
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := h.svc.SearchRoute(ctx, "FRA", "MAD", date, FilterMorning, nil, false)
	require.NoError(t, err)

	evening, err := h.svc.SearchRoute(ctx, "FRA", "MAD", date, FilterEvening, nil, false)
	require.NoError(t, err)

	assert.Equal(t, SourceCached, evening.Source)
	assert.Equal(t, int64(0), evening.CreditsUsed)
	assert.Equal(t, 1, h.provider.searchCalls, "filters share one cached response")
	require.Len(t, evening.Flights, 1)
	assert.Equal(t, "LH400", evening.Flights[0].FlightNumber)
}

func TestSearchRouteForceRefreshReplacesCache(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.flights = routeFlights()
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := h.svc.SearchRoute(ctx, "FRA", "MAD", date, "", nil, false)
	require.NoError(t, err)

	// Schedule changed upstream
	h.provider.flights = routeFlights()[:2]

	refreshed, err := h.svc.SearchRoute(ctx, "FRA", "MAD", date, "", nil, true)
	require.NoError(t, err)

	assert.Equal(t, SourceProvider, refreshed.Source)
	assert.Len(t, refreshed.Flights, 2)
	assert.Equal(t, int64(2), refreshed.CreditsUsed)
	assert.Equal(t, 2, h.provider.searchCalls)

	cached, err := h.svc.SearchRoute(ctx, "FRA", "MAD", date, "", nil, false)
	require.NoError(t, err)
	assert.Equal(t, SourceCached, cached.Source)
	assert.Len(t, cached.Flights, 2, "refresh replaced the cached list")
}

func TestSearchRouteMorningFilterUsesLocalTime(t *testing.T) {
	h := newHarness(t, 10000)

	// 08:00 on the US west coast is 15:00 UTC; the wall clock decides
	morningLocal := providers.FlightStatus{
		FlightNumber: "UA100",
		State:        providers.StateLanded,
		Departure: providers.Movement{
			AirportIATA:    "LAX",
			ScheduledUTC:   time.Date(2026, 8, 15, 15, 0, 0, 0, time.UTC),
			ScheduledLocal: time.Date(2026, 8, 15, 8, 0, 0, 0, time.FixedZone("", -7*3600)),
		},
		Arrival:    providers.Movement{AirportIATA: "JFK"},
		DistanceKm: 3980,
	}
	overnightLocal := providers.FlightStatus{
		FlightNumber: "UA200",
		State:        providers.StateLanded,
		Departure: providers.Movement{
			AirportIATA:    "LAX",
			ScheduledUTC:   time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC),
			ScheduledLocal: time.Date(2026, 8, 15, 2, 0, 0, 0, time.FixedZone("", -7*3600)),
		},
		Arrival:    providers.Movement{AirportIATA: "JFK"},
		DistanceKm: 3980,
	}
	h.provider.flights = []providers.FlightStatus{morningLocal, overnightLocal}

	result, err := h.svc.SearchRoute(context.Background(), "LAX", "JFK",
		time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), FilterMorning, nil, false)
	require.NoError(t, err)

	require.Len(t, result.Flights, 1)
	assert.Equal(t, "UA100", result.Flights[0].FlightNumber)
}

func TestSearchRouteExplicitTimeWindow(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.flights = routeFlights()
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	result, err := h.svc.SearchRoute(context.Background(), "FRA", "MAD", date, "13:30", nil, false)
	require.NoError(t, err)

	// 13:30 +/- 3h keeps the 14:00 flight only (10:00 is 3.5h away)
	require.Len(t, result.Flights, 1)
	assert.Equal(t, "LH300", result.Flights[0].FlightNumber)
}

func TestSearchRouteRecordsAnalytics(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.flights = routeFlights()
	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()

	_, err := h.svc.SearchRoute(context.Background(), "FRA", "MAD", date, "", &userID, false)
	require.NoError(t, err)

	require.Len(t, h.recorder.events, 1)
	event := h.recorder.events[0]
	assert.Equal(t, "FRA", event.DepartureIATA)
	assert.Equal(t, "MAD", event.ArrivalIATA)
	assert.Equal(t, uint32(4), event.ResultCount)
	assert.False(t, event.CacheHit)
	assert.Equal(t, userID.String(), event.UserID)
}

func TestSearchRouteQuotaExceeded(t *testing.T) {
	h := newHarness(t, 100)
	ctx := context.Background()

	period, err := h.svc.quota.CurrentPeriod(ctx, "aerodatabox")
	require.NoError(t, err)
	_, err = h.periodRepo.AddCredits(ctx, period.ID, 97)
	require.NoError(t, err)

	result, err := h.svc.SearchRoute(ctx, "FRA", "MAD", time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), "", nil, false)
	require.NoError(t, err)

	assert.Equal(t, SourceQuotaExceeded, result.Source)
	assert.Empty(t, result.Flights)
	assert.Equal(t, 0, h.provider.searchCalls)
}

// ---- SearchAirports ----

func TestSearchAirportsCachedRepeat(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.airportSearchResults = []providers.Airport{
		{IATA: "FRA", Name: "Frankfurt am Main"},
		{IATA: "HHN", Name: "Frankfurt Hahn"},
	}
	ctx := context.Background()

	first, err := h.svc.SearchAirports(ctx, "Frankfurt", false)
	require.NoError(t, err)
	assert.Equal(t, SourceProvider, first.Source)
	require.Len(t, first.Airports, 2)
	assert.Equal(t, int64(1), first.CreditsUsed, "airport search is a tier 1 call")

	// Term matching is case insensitive via normalization
	second, err := h.svc.SearchAirports(ctx, "  FRANKFURT ", false)
	require.NoError(t, err)
	assert.Equal(t, SourceCached, second.Source)
	assert.Equal(t, int64(0), second.CreditsUsed)
	assert.Equal(t, 1, h.provider.airportSearchCalls)
}

func TestSearchAirportsForceRefresh(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.airportSearchResults = []providers.Airport{{IATA: "FRA", Name: "Frankfurt am Main"}}
	ctx := context.Background()

	_, err := h.svc.SearchAirports(ctx, "frankfurt", false)
	require.NoError(t, err)

	h.provider.airportSearchResults = []providers.Airport{
		{IATA: "FRA", Name: "Frankfurt am Main"},
		{IATA: "HHN", Name: "Frankfurt Hahn"},
	}

	refreshed, err := h.svc.SearchAirports(ctx, "frankfurt", true)
	require.NoError(t, err)

	assert.Equal(t, SourceProvider, refreshed.Source)
	assert.Len(t, refreshed.Airports, 2)
	assert.Equal(t, int64(1), refreshed.CreditsUsed)
	assert.Equal(t, 2, h.provider.airportSearchCalls)

	cached, err := h.svc.SearchAirports(ctx, "frankfurt", false)
	require.NoError(t, err)
	assert.Equal(t, SourceCached, cached.Source)
	assert.Len(t, cached.Airports, 2)
}

func TestSearchAirportsNoMatchesCached(t *testing.T) {
	h := newHarness(t, 10000)
	h.provider.airportSearchErr = providers.NewError(providers.KindNotFound, providers.OpAirportSearch, 404, "no matches", nil)
	ctx := context.Background()

	first, err := h.svc.SearchAirports(ctx, "xyzzy", false)
	require.NoError(t, err)
	assert.Equal(t, SourceProvider, first.Source)
	assert.Empty(t, first.Airports)
	assert.Equal(t, int64(1), first.CreditsUsed)

	second, err := h.svc.SearchAirports(ctx, "xyzzy", false)
	require.NoError(t, err)
	assert.Equal(t, SourceCached, second.Source)
	assert.Equal(t, 1, h.provider.airportSearchCalls)
}

func TestSearchAirportsTermTooShort(t *testing.T) {
	h := newHarness(t, 10000)

	_, err := h.svc.SearchAirports(context.Background(), "f", false)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidInput))
}

func TestSearchRouteInvalidIATA(t *testing.T) {
	h := newHarness(t, 10000)

	_, err := h.svc.SearchRoute(context.Background(), "FRANKFURT", "MAD", time.Now(), "", nil, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidInput))
}
