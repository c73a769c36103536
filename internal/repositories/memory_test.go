package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khayalcare/internal/models"
)

func baseRecord(code string, now time.Time) *models.VerificationCode {
	return &models.VerificationCode{
		Email:      "ali@example.com",
		Phone:      "+923001234567",
		Code:       code,
		Purpose:    models.PurposeRegistration,
		Method:     models.MethodBoth,
		LastSentAt: now,
		ExpiresAt:  now.Add(10 * time.Minute),
	}
}

func TestCreateOrRefreshKeepsSinglePendingRecord(t *testing.T) {
	repo := NewMemoryVerificationRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := baseRecord(fmt.Sprintf("%06d", i), now)
			_, _, _ = repo.CreateOrRefresh(ctx, rec, 0)
		}(i)
	}
	wg.Wait()

	repo.mu.Lock()
	var pending int
	for _, rec := range repo.records {
		if rec.Status == models.StatusPending {
			pending++
		}
	}
	repo.mu.Unlock()
	assert.Equal(t, 1, pending, "concurrent issuance must collapse into one pending record")
}

func TestCreateOrRefreshCooldownLeavesRecordUntouched(t *testing.T) {
	repo := NewMemoryVerificationRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, _, err := repo.CreateOrRefresh(ctx, baseRecord("111111", now), 2*time.Minute)
	require.NoError(t, err)

	again := baseRecord("222222", now.Add(30*time.Second))
	got, retryAfter, err := repo.CreateOrRefresh(ctx, again, 2*time.Minute)
	assert.ErrorIs(t, err, ErrResendCooldown)
	assert.Equal(t, 90*time.Second, retryAfter)
	assert.Equal(t, first.Code, got.Code)
	assert.Equal(t, first.ExpiresAt, got.ExpiresAt)
}

func TestCreateOrRefreshExpiredPendingStartsNewCycle(t *testing.T) {
	repo := NewMemoryVerificationRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, _, err := repo.CreateOrRefresh(ctx, baseRecord("111111", now), 2*time.Minute)
	require.NoError(t, err)

	// накрутим resend_count на живой записи
	refreshed, _, err := repo.CreateOrRefresh(ctx, baseRecord("222222", now.Add(3*time.Minute)), 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.ResendCount)

	// после протухания — новый цикл на той же строке, счётчик resend с нуля
	later := now.Add(20 * time.Minute)
	renewed, _, err := repo.CreateOrRefresh(ctx, baseRecord("333333", later), 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.ID, renewed.ID)
	assert.Equal(t, 0, renewed.ResendCount)
	assert.Equal(t, "333333", renewed.Code)
	assert.Equal(t, later.Add(10*time.Minute), renewed.ExpiresAt)
}

func TestIncrementAttemptsIsExactUnderConcurrency(t *testing.T) {
	repo := NewMemoryVerificationRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec, _, err := repo.CreateOrRefresh(ctx, baseRecord("111111", now), 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.IncrementAttempts(ctx, rec.ID)
		}()
	}
	wg.Wait()

	got, err := repo.GetPending(ctx, rec.Email, rec.Phone, rec.Purpose)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 50, got.Attempts)
}

func TestMarkVerifiedIsOneShot(t *testing.T) {
	repo := NewMemoryVerificationRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec, _, err := repo.CreateOrRefresh(ctx, baseRecord("111111", now), 0)
	require.NoError(t, err)

	ok, err := repo.MarkVerified(ctx, rec.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// повторное закрытие и инкремент по закрытой записи не проходят
	ok, err = repo.MarkVerified(ctx, rec.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.IncrementAttempts(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNoPendingRecord)

	ok, err = repo.MarkExpired(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDailyTryIncrementCeilingUnderConcurrency(t *testing.T) {
	repo := NewMemoryDailyAttemptRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var allowed int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.TryIncrement(ctx, "ali@example.com", "+923001234567", models.PurposeRegistration, "2025-06-01", 5, now)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, allowed, "ceiling must admit exactly max attempts")
}
