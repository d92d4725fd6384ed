package quota

import (
	"time"

	"github.com/google/uuid"
)

// Alert thresholds as percentages of the monthly allowance. Crossing 95%
// also trips the emergency brake: no further provider calls are admitted
// until the period rolls over.
const (
	ThresholdWarning  = 80.0
	ThresholdUrgent   = 90.0
	ThresholdCritical = 95.0
)

// Period is the mutable usage aggregate for one provider and one calendar
// month (UTC). At most one period is current per provider at any instant.
type Period struct {
	ID             uuid.UUID  `db:"id"`
	Provider       string     `db:"provider"`
	PeriodStart    time.Time  `db:"period_start"`
	PeriodEnd      time.Time  `db:"period_end"`
	CreditsAllowed int64      `db:"credits_allowed"`
	CreditsUsed    int64      `db:"credits_used"`
	Alert80SentAt  *time.Time `db:"alert_80_sent_at"`
	Alert90SentAt  *time.Time `db:"alert_90_sent_at"`
	Alert95SentAt  *time.Time `db:"alert_95_sent_at"`
	Exceeded       bool       `db:"exceeded"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// UsagePercent returns credits_used / credits_allowed as a percentage.
func (p *Period) UsagePercent() float64 {
	if p.CreditsAllowed <= 0 {
		return 0
	}
	return float64(p.CreditsUsed) / float64(p.CreditsAllowed) * 100
}

// IsExpired reports whether the period window has passed.
func (p *Period) IsExpired(now time.Time) bool {
	return now.After(p.PeriodEnd)
}

// AlertSent reports whether the alert for a given threshold has already been
// delivered within this period.
func (p *Period) AlertSent(threshold float64) bool {
	switch threshold {
	case ThresholdWarning:
		return p.Alert80SentAt != nil
	case ThresholdUrgent:
		return p.Alert90SentAt != nil
	case ThresholdCritical:
		return p.Alert95SentAt != nil
	}
	return false
}

// MarkAlertSent records the delivery timestamp for a threshold alert.
func (p *Period) MarkAlertSent(threshold float64, at time.Time) {
	switch threshold {
	case ThresholdWarning:
		p.Alert80SentAt = &at
	case ThresholdUrgent:
		p.Alert90SentAt = &at
	case ThresholdCritical:
		p.Alert95SentAt = &at
	}
}

// NewPeriod creates the period covering the calendar month of now (UTC).
func NewPeriod(provider string, creditsAllowed int64, now time.Time) *Period {
	start, end := MonthWindow(now)
	return &Period{
		ID:             uuid.New(),
		Provider:       provider,
		PeriodStart:    start,
		PeriodEnd:      end,
		CreditsAllowed: creditsAllowed,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
}

// MonthWindow returns the first and last instant of the UTC calendar month
// containing t.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
