package services

import (
	"context"
	"log"
	"time"

	"khayalcare/internal/repositories"
)

const defaultCleanupInterval = time.Hour

// CleanupService — фоновая уборка: протухшие pending-записи и вчерашние
// дневные счётчики. Корректность не зависит от уборки (протухание проверяется
// и при verify), это чистая рекламация.
type CleanupService struct {
	verifications repositories.VerificationRepository
	daily         repositories.DailyAttemptRepository
	interval      time.Duration

	now func() time.Time
}

func NewCleanupService(
	verifications repositories.VerificationRepository,
	daily repositories.DailyAttemptRepository,
	interval time.Duration,
) *CleanupService {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &CleanupService{
		verifications: verifications,
		daily:         daily,
		interval:      interval,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Run крутится до отмены ctx; ошибки одного прохода не останавливают цикл.
func (s *CleanupService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[cleanup] started, interval=%s", s.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[cleanup] stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep — один проход уборки.
func (s *CleanupService) Sweep(ctx context.Context) {
	now := s.now()

	if n, err := s.verifications.DeleteExpired(ctx, now); err != nil {
		log.Printf("[cleanup][err] expired codes: %v", err)
	} else if n > 0 {
		log.Printf("[cleanup] removed %d expired verification codes", n)
	}

	yesterday := now.Add(-24 * time.Hour).Format("2006-01-02")
	if n, err := s.daily.DeleteBefore(ctx, yesterday); err != nil {
		log.Printf("[cleanup][err] daily counters: %v", err)
	} else if n > 0 {
		log.Printf("[cleanup] removed %d stale daily counters", n)
	}
}
