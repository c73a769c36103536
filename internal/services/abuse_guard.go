package services

import (
	"context"
	"log"
	"time"

	"khayalcare/internal/models"
	"khayalcare/internal/repositories"
)

const (
	defaultMaxDailyAttempts  = 5
	defaultRestrictionWindow = 4 * 24 * time.Hour
)

// AbuseGuard гейтит выдачу кодов: сначала длительный бан, затем дневной счётчик.
type AbuseGuard struct {
	restrictions      repositories.RestrictionRepository
	daily             repositories.DailyAttemptRepository
	alerts            *AlertService
	maxDailyAttempts  int
	restrictionWindow time.Duration

	now func() time.Time
}

func NewAbuseGuard(
	restrictions repositories.RestrictionRepository,
	daily repositories.DailyAttemptRepository,
	alerts *AlertService,
	maxDailyAttempts int,
	restrictionWindow time.Duration,
) *AbuseGuard {
	if maxDailyAttempts <= 0 {
		maxDailyAttempts = defaultMaxDailyAttempts
	}
	if restrictionWindow <= 0 {
		restrictionWindow = defaultRestrictionWindow
	}
	return &AbuseGuard{
		restrictions:      restrictions,
		daily:             daily,
		alerts:            alerts,
		maxDailyAttempts:  maxDailyAttempts,
		restrictionWindow: restrictionWindow,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// AuthorizeIssuance возвращает использованные/оставшиеся попытки за день либо
// RestrictedError / DailyLimitError. Счётчик не трогается, если потолок достигнут.
func (g *AbuseGuard) AuthorizeIssuance(ctx context.Context, email, phone string, purpose models.VerificationPurpose) (used, remaining int, err error) {
	now := g.now()

	restriction, err := g.restrictions.GetActive(ctx, email, phone, now)
	if err != nil {
		return 0, 0, err
	}
	if restriction != nil {
		return 0, 0, &RestrictedError{Until: restriction.RestrictedUntil, Reason: restriction.Reason}
	}

	date := now.Format("2006-01-02")
	count, allowed, err := g.daily.TryIncrement(ctx, email, phone, purpose, date, g.maxDailyAttempts, now)
	if err != nil {
		return 0, 0, err
	}
	if !allowed {
		midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		return count, 0, &DailyLimitError{RetryAfter: midnight.Sub(now)}
	}
	return count, g.maxDailyAttempts - count, nil
}

// RecordLockout создаёт/продлевает бан и уведомляет дежурных.
func (g *AbuseGuard) RecordLockout(ctx context.Context, email, phone, reason string) error {
	now := g.now()
	restriction := &models.AccountRestriction{
		Email:           email,
		Phone:           phone,
		RestrictionType: "excessive_attempts",
		Reason:          reason,
		RestrictedUntil: now.Add(g.restrictionWindow),
		CreatedAt:       now,
	}
	if err := g.restrictions.Upsert(ctx, restriction); err != nil {
		return err
	}
	log.Printf("[abuse][lockout] email=%s phone=%s until=%s reason=%q",
		email, phone, restriction.RestrictedUntil.Format(time.RFC3339), reason)

	// Алерт не должен задерживать ответ.
	go g.alerts.NotifyLockout(email, phone, reason, restriction.RestrictedUntil)
	return nil
}
