package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"khayalcare/internal/models"
)

type DailyAttemptRepository interface {
	// TryIncrement атомарно увеличивает дневной счётчик, если он ещё меньше max.
	// Возвращает новое значение и allowed=false, когда потолок уже достигнут
	// (счётчик в этом случае не меняется).
	TryIncrement(ctx context.Context, email, phone string, purpose models.VerificationPurpose, date string, max int, at time.Time) (int, bool, error)
	// DeleteBefore удаляет счётчики за дни раньше date.
	DeleteBefore(ctx context.Context, date string) (int64, error)
}

type dailyAttemptRepository struct {
	DB *sql.DB
}

func NewDailyAttemptRepository(db *sql.DB) DailyAttemptRepository {
	return &dailyAttemptRepository{DB: db}
}

func (r *dailyAttemptRepository) TryIncrement(ctx context.Context, email, phone string, purpose models.VerificationPurpose, date string, max int, at time.Time) (int, bool, error) {
	// Условный upsert: вставка первой попытки дня или инкремент, пока не достигнут потолок.
	const q = `
		INSERT INTO daily_verification_attempts
			(email, phone, purpose, attempt_date, attempt_count, last_attempt_at)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (email, phone, purpose, attempt_date)
		DO UPDATE SET
			attempt_count   = daily_verification_attempts.attempt_count + 1,
			last_attempt_at = $5
		WHERE daily_verification_attempts.attempt_count < $6
		RETURNING attempt_count
	`
	var count int
	err := r.DB.QueryRowContext(ctx, q, email, phone, purpose, date, at, max).Scan(&count)
	if err == sql.ErrNoRows {
		// Потолок достигнут: RETURNING ничего не вернул.
		return max, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("daily attempt increment: %w", err)
	}
	return count, true, nil
}

func (r *dailyAttemptRepository) DeleteBefore(ctx context.Context, date string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM daily_verification_attempts WHERE attempt_date < $1`, date)
	if err != nil {
		return 0, fmt.Errorf("daily attempt delete before %s: %w", date, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
