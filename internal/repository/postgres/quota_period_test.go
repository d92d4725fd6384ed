package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeroclaim/internal/domain/quota"
	"aeroclaim/internal/testsupport"
	pkgerrors "aeroclaim/pkg/errors"
)

func testProvider(t *testing.T) string {
	t.Helper()
	return "it-" + uuid.NewString()[:8]
}

func cleanupQuotaPeriods(t *testing.T, h *testsupport.PostgresTestHelper, provider string) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = h.DB().Exec(`DELETE FROM quota_periods WHERE provider = $1`, provider)
	})
}

func TestQuotaPeriodCreateAndGetLatest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	h := testsupport.NewTestPostgres(t)
	repo := NewQuotaPeriodRepository(h.DB())
	ctx := context.Background()

	provider := testProvider(t)
	cleanupQuotaPeriods(t, h, provider)

	_, err := repo.GetLatest(ctx, provider)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrNotFound))

	period := quota.NewPeriod(provider, 5000, time.Now())
	require.NoError(t, repo.Create(ctx, period))

	got, err := repo.GetLatest(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, period.ID, got.ID)
	assert.Equal(t, int64(5000), got.CreditsAllowed)
	assert.Equal(t, int64(0), got.CreditsUsed)
	assert.False(t, got.Exceeded)
}

func TestQuotaPeriodGetLatestPicksNewest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	h := testsupport.NewTestPostgres(t)
	repo := NewQuotaPeriodRepository(h.DB())
	ctx := context.Background()

	provider := testProvider(t)
	cleanupQuotaPeriods(t, h, provider)

	old := quota.NewPeriod(provider, 5000, time.Now().AddDate(0, -1, 0))
	current := quota.NewPeriod(provider, 5000, time.Now())
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, current))

	got, err := repo.GetLatest(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, current.ID, got.ID)
}

func TestQuotaPeriodAddCreditsTripsExceeded(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	h := testsupport.NewTestPostgres(t)
	repo := NewQuotaPeriodRepository(h.DB())
	ctx := context.Background()

	provider := testProvider(t)
	cleanupQuotaPeriods(t, h, provider)

	period := quota.NewPeriod(provider, 100, time.Now())
	require.NoError(t, repo.Create(ctx, period))

	updated, err := repo.AddCredits(ctx, period.ID, 94)
	require.NoError(t, err)
	assert.Equal(t, int64(94), updated.CreditsUsed)
	assert.False(t, updated.Exceeded)

	// One more credit lands exactly on 95%
	updated, err = repo.AddCredits(ctx, period.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(95), updated.CreditsUsed)
	assert.True(t, updated.Exceeded)

	// The flag is sticky
	updated, err = repo.AddCredits(ctx, period.ID, 1)
	require.NoError(t, err)
	assert.True(t, updated.Exceeded)
}

func TestQuotaPeriodUpdatePersistsAlertFlags(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	h := testsupport.NewTestPostgres(t)
	repo := NewQuotaPeriodRepository(h.DB())
	ctx := context.Background()

	provider := testProvider(t)
	cleanupQuotaPeriods(t, h, provider)

	period := quota.NewPeriod(provider, 100, time.Now())
	require.NoError(t, repo.Create(ctx, period))

	now := time.Now().UTC()
	period.MarkAlertSent(quota.ThresholdWarning, now)
	period.MarkAlertSent(quota.ThresholdUrgent, now)
	require.NoError(t, repo.Update(ctx, period))

	got, err := repo.GetLatest(ctx, provider)
	require.NoError(t, err)
	assert.NotNil(t, got.Alert80SentAt)
	assert.NotNil(t, got.Alert90SentAt)
	assert.Nil(t, got.Alert95SentAt)
}

func TestQuotaPeriodAddCreditsUnknownPeriod(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	h := testsupport.NewTestPostgres(t)
	repo := NewQuotaPeriodRepository(h.DB())

	_, err := repo.AddCredits(context.Background(), uuid.New(), 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrNotFound))
}
