package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"aeroclaim/internal/domain/quota"
	"aeroclaim/internal/domain/usage"
	"aeroclaim/internal/metrics"
	pkgerrors "aeroclaim/pkg/errors"
	"aeroclaim/pkg/logger"
)

// Notifier delivers quota alerts to the operations channel. Implementations
// must be safe for concurrent use.
type Notifier interface {
	// NotifyThreshold announces a threshold crossing (80/90/95 percent).
	NotifyThreshold(ctx context.Context, provider string, threshold float64, used, allowed int64) error
}

// Service is the quota governor: it owns period lifecycle, the usage ledger,
// admission decisions and threshold alerting for every provider.
type Service struct {
	periodRepo quota.Repository
	usageRepo  usage.Repository
	notifier   Notifier
	log        *logger.Logger

	monthlyCredits int64

	// now is swappable in tests
	now func() time.Time

	// mu guards locks; each provider gets its own mutex so usage recording
	// for one provider never blocks another
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new quota governor. notifier may be nil; alerts are
// then logged only.
func NewService(
	periodRepo quota.Repository,
	usageRepo usage.Repository,
	notifier Notifier,
	monthlyCredits int64,
	log *logger.Logger,
) *Service {
	return &Service{
		periodRepo:     periodRepo,
		usageRepo:      usageRepo,
		notifier:       notifier,
		monthlyCredits: monthlyCredits,
		now:            time.Now,
		log:            log.With("service", "quota"),
		locks:          make(map[string]*sync.Mutex),
	}
}

// CurrentPeriod returns the period covering the current UTC month for a
// provider, creating it when none exists or the latest one has expired.
func (s *Service) CurrentPeriod(ctx context.Context, provider string) (*quota.Period, error) {
	period, err := s.periodRepo.GetLatest(ctx, provider)
	if err != nil && !pkgerrors.Is(err, pkgerrors.ErrNotFound) {
		return nil, pkgerrors.Wrap(err, "failed to load quota period")
	}

	now := s.now().UTC()
	if period != nil && !period.IsExpired(now) {
		return period, nil
	}

	// Rollover: the new month starts with a clean slate, alert flags and the
	// brake included
	fresh := quota.NewPeriod(provider, s.monthlyCredits, now)
	if err := s.periodRepo.Create(ctx, fresh); err != nil {
		// Another instance may have created the period concurrently
		if existing, getErr := s.periodRepo.GetLatest(ctx, provider); getErr == nil && !existing.IsExpired(now) {
			return existing, nil
		}
		return nil, pkgerrors.Wrap(err, "failed to create quota period")
	}

	s.log.Infof("Started new quota period for %s: %s, %d credits",
		provider, fresh.PeriodStart.Format("2006-01"), fresh.CreditsAllowed)

	return fresh, nil
}

// CheckAdmission decides whether a call costing the given credits may proceed.
// Returns ErrQuotaExceeded once the period is marked exceeded or usage has
// reached the critical threshold. The decision reads current state; a small
// overshoot from calls admitted concurrently is accepted.
func (s *Service) CheckAdmission(ctx context.Context, provider string, credits int64) error {
	period, err := s.CurrentPeriod(ctx, provider)
	if err != nil {
		return err
	}

	if period.Exceeded || period.UsagePercent() >= quota.ThresholdCritical {
		metrics.QuotaRejections.WithLabelValues(provider).Inc()
		return pkgerrors.Wrapf(pkgerrors.ErrQuotaExceeded,
			"quota exhausted for %s: %d/%d credits used (%.1f%%)",
			provider, period.CreditsUsed, period.CreditsAllowed, period.UsagePercent())
	}

	return nil
}

// RecordUsage appends a ledger record and, when the record carries credits,
// charges them to the current period and evaluates threshold alerts. The
// ledger insert happens even for zero-credit failure records so every call
// attempt is accounted for.
func (s *Service) RecordUsage(ctx context.Context, record *usage.Record) (*quota.Period, error) {
	lock := s.providerLock(record.Provider)
	lock.Lock()
	defer lock.Unlock()

	period, err := s.CurrentPeriod(ctx, record.Provider)
	if err != nil {
		return nil, err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}

	if err := s.usageRepo.Insert(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to insert usage record")
	}

	if record.Credits <= 0 {
		return period, nil
	}

	updated, err := s.periodRepo.AddCredits(ctx, period.ID, record.Credits)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to charge credits")
	}

	metrics.RecordQuotaUsage(record.Provider, updated.CreditsUsed, updated.UsagePercent())

	s.evaluateAlerts(ctx, updated)

	return updated, nil
}

// Status returns the current period for a provider without mutating anything
func (s *Service) Status(ctx context.Context, provider string) (*quota.Period, error) {
	return s.CurrentPeriod(ctx, provider)
}

// UsageStats aggregates the ledger for reporting
func (s *Service) UsageStats(ctx context.Context, provider string, days int) (*Stats, error) {
	if days <= 0 {
		days = 30
	}
	since := s.now().UTC().AddDate(0, 0, -days)

	daily, err := s.usageRepo.DailyStats(ctx, provider, since)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get daily stats")
	}

	endpoints, err := s.usageRepo.TopEndpoints(ctx, provider, since, 10)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get endpoint stats")
	}

	period, err := s.CurrentPeriod(ctx, provider)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Period:       period,
		Daily:        daily,
		TopEndpoints: endpoints,
	}, nil
}

// Stats bundles the current period with ledger aggregates
type Stats struct {
	Period       *quota.Period
	Daily        []usage.DayStat
	TopEndpoints []usage.EndpointStat
}

// evaluateAlerts sends at most one notification per call: the highest
// threshold newly crossed. Lower thresholds jumped over in the same charge
// are marked sent without their own notification so a later small charge
// does not fire a stale warning.
func (s *Service) evaluateAlerts(ctx context.Context, period *quota.Period) {
	pct := period.UsagePercent()
	thresholds := []float64{quota.ThresholdCritical, quota.ThresholdUrgent, quota.ThresholdWarning}

	var highest float64
	changed := false
	now := s.now().UTC()

	for _, t := range thresholds {
		if pct < t || period.AlertSent(t) {
			continue
		}
		period.MarkAlertSent(t, now)
		changed = true
		if highest == 0 {
			highest = t
		}
	}

	if !changed {
		return
	}

	if highest >= quota.ThresholdCritical {
		period.Exceeded = true
	}

	if err := s.periodRepo.Update(ctx, period); err != nil {
		s.log.Errorf("Failed to persist alert flags for %s: %v", period.Provider, err)
	}

	if highest > 0 {
		s.log.Warnf("Quota threshold %.0f%% crossed for %s: %d/%d credits (%.1f%%)",
			highest, period.Provider, period.CreditsUsed, period.CreditsAllowed, pct)

		metrics.QuotaAlerts.WithLabelValues(period.Provider, fmt.Sprintf("%.0f", highest)).Inc()

		if s.notifier != nil {
			if err := s.notifier.NotifyThreshold(ctx, period.Provider, highest, period.CreditsUsed, period.CreditsAllowed); err != nil {
				s.log.Errorf("Failed to send quota alert for %s: %v", period.Provider, err)
			}
		}
	}
}

func (s *Service) providerLock(provider string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[provider]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[provider] = lock
	}
	return lock
}
