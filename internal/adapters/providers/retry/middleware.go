package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"aeroclaim/internal/adapters/providers"
	"aeroclaim/internal/metrics"
	"aeroclaim/pkg/errors"
)

const (
	// minDelay is the floor applied after jitter so two concurrent callers
	// never hammer the provider back to back.
	minDelay = 100 * time.Millisecond

	jitterFraction = 0.25
)

// Config contains retry configuration
type Config struct {
	Provider   string        // Provider name, used for metrics labels
	MaxRetries int           // Additional attempts after the first; total = MaxRetries+1
	BaseDelay  time.Duration // Delay before the first retry (pre-jitter)
	MaxDelay   time.Duration // Cap on the computed delay (pre-jitter)
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Middleware retries transient provider failures with exponential backoff
// and jitter. Classification comes from the providers error taxonomy; a
// server-supplied Retry-After overrides the computed delay.
type Middleware struct {
	config Config
	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a new retry middleware
func New(config Config) *Middleware {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}

	return &Middleware{
		config: config,
		sleep:  sleepCtx,
	}
}

// Do executes fn up to MaxRetries+1 times. Non-retryable errors surface
// immediately; retryable ones surface after exhaustion wrapped with the
// attempt count.
func (m *Middleware) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !providers.IsRetryable(err) {
			return err
		}

		// Don't sleep after last attempt
		if attempt == m.config.MaxRetries {
			break
		}

		if pe, ok := providers.AsError(err); ok {
			metrics.ProviderRetries.WithLabelValues(m.config.Provider, string(pe.Kind)).Inc()
		}

		delay := m.delayFor(attempt, err)
		if err := m.sleep(ctx, delay); err != nil {
			return errors.Wrap(err, "retry cancelled")
		}
	}

	return errors.Wrapf(lastErr, "max retries (%d) exceeded", m.config.MaxRetries)
}

// delayFor picks the wait before the next attempt: the Retry-After hint when
// the provider sent one, the jittered exponential backoff otherwise.
func (m *Middleware) delayFor(attempt int, err error) time.Duration {
	if hint, ok := providers.RetryAfterHint(err); ok {
		return hint
	}
	return Jitter(NextDelay(attempt, m.config.BaseDelay, m.config.MaxDelay))
}

// NextDelay computes the pre-jitter backoff for a 0-indexed attempt:
// min(max, base * 2^attempt).
func NextDelay(attempt int, base, max time.Duration) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}

// Jitter applies ±25% uniform jitter and floors the result at 100ms.
func Jitter(d time.Duration) time.Duration {
	spread := float64(d) * jitterFraction
	jittered := float64(d) + (rand.Float64()*2-1)*spread
	result := time.Duration(jittered)
	if result < minDelay {
		result = minDelay
	}
	return result
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
