package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"khayalcare/internal/models"
)

var (
	// ErrResendCooldown — повторная выдача раньше кулдауна; запись не тронута.
	ErrResendCooldown = errors.New("resend cooldown active")
	// ErrNoPendingRecord — нет pending-записи для ключа (или её уже закрыли).
	ErrNoPendingRecord = errors.New("no pending verification record")
)

type VerificationRepository interface {
	// GetPending возвращает pending-запись для ключа, nil если её нет.
	GetPending(ctx context.Context, email, phone string, purpose models.VerificationPurpose) (*models.VerificationCode, error)
	// CreateOrRefresh атомарно создаёт запись либо обновляет существующую
	// pending-запись (новый код, новый expires_at, resend_count+1, attempts=0).
	// Если кулдаун ещё не истёк — ErrResendCooldown и остаток ожидания.
	CreateOrRefresh(ctx context.Context, v *models.VerificationCode, cooldown time.Duration) (*models.VerificationCode, time.Duration, error)
	// IncrementAttempts — attempts+1 при условии status='pending'; возвращает новое значение.
	IncrementAttempts(ctx context.Context, id int64) (int, error)
	// MarkVerified переводит pending -> verified; false, если запись уже закрыта.
	MarkVerified(ctx context.Context, id int64, at time.Time) (bool, error)
	// MarkExpired переводит pending -> expired; false, если запись уже закрыта.
	MarkExpired(ctx context.Context, id int64) (bool, error)
	// DeleteExpired удаляет pending-записи с истёкшим TTL (фоновая уборка).
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type verificationRepository struct {
	DB *sql.DB
}

func NewVerificationRepository(db *sql.DB) VerificationRepository {
	return &verificationRepository{DB: db}
}

const verificationColumns = `
	id, email, phone, COALESCE(username, ''), code, purpose, method, status,
	attempts, resend_count, last_sent_at, expires_at, created_at, verified_at, registration_data
`

func scanVerification(row interface{ Scan(...any) error }) (*models.VerificationCode, error) {
	var v models.VerificationCode
	var verifiedAt sql.NullTime
	var payload []byte
	if err := row.Scan(
		&v.ID, &v.Email, &v.Phone, &v.Username, &v.Code, &v.Purpose, &v.Method, &v.Status,
		&v.Attempts, &v.ResendCount, &v.LastSentAt, &v.ExpiresAt, &v.CreatedAt, &verifiedAt, &payload,
	); err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		v.VerifiedAt = &verifiedAt.Time
	}
	v.RegistrationData = payload
	return &v, nil
}

func (r *verificationRepository) GetPending(ctx context.Context, email, phone string, purpose models.VerificationPurpose) (*models.VerificationCode, error) {
	q := `
		SELECT ` + verificationColumns + `
		FROM verification_codes
		WHERE email = $1 AND phone = $2 AND purpose = $3 AND status = 'pending'
	`
	v, err := scanVerification(r.DB.QueryRowContext(ctx, q, email, phone, purpose))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("verification get pending: %w", err)
	}
	return v, nil
}

// CreateOrRefresh держит advisory-лок на ключ на время транзакции, чтобы два
// конкурентных create не вставили дубликаты и не потеряли обновление.
func (r *verificationRepository) CreateOrRefresh(ctx context.Context, v *models.VerificationCode, cooldown time.Duration) (*models.VerificationCode, time.Duration, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("verification upsert: begin tx: %w", err)
	}
	defer tx.Rollback()

	lockKey := v.Email + ":" + v.Phone + ":" + string(v.Purpose)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(1, hashtext($1))`, lockKey); err != nil {
		return nil, 0, fmt.Errorf("verification upsert: advisory lock: %w", err)
	}

	q := `
		SELECT ` + verificationColumns + `
		FROM verification_codes
		WHERE email = $1 AND phone = $2 AND purpose = $3 AND status = 'pending'
	`
	existing, err := scanVerification(tx.QueryRowContext(ctx, q, v.Email, v.Phone, v.Purpose))
	if err != nil && err != sql.ErrNoRows {
		return nil, 0, fmt.Errorf("verification upsert: lookup: %w", err)
	}

	now := v.LastSentAt
	if existing == nil {
		const ins = `
			INSERT INTO verification_codes
				(email, phone, username, code, purpose, method, status,
				 attempts, resend_count, last_sent_at, expires_at, created_at, registration_data)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, 'pending', 0, 0, $7, $8, $7, $9)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, ins,
			v.Email, v.Phone, v.Username, v.Code, v.Purpose, v.Method,
			now, v.ExpiresAt, []byte(v.RegistrationData),
		).Scan(&v.ID); err != nil {
			return nil, 0, fmt.Errorf("verification upsert: insert: %w", err)
		}
		v.Status = models.StatusPending
		v.CreatedAt = now
		if err := tx.Commit(); err != nil {
			return nil, 0, fmt.Errorf("verification upsert: commit: %w", err)
		}
		return v, 0, nil
	}

	// Живая pending-запись: кулдаун считается от последней отправки.
	if now.Before(existing.ExpiresAt) {
		if elapsed := now.Sub(existing.LastSentAt); elapsed < cooldown {
			return existing, cooldown - elapsed, ErrResendCooldown
		}
	}

	// Истёкшая pending-запись переиспользуется как новый цикл (resend_count=0);
	// живая — обновляется с resend_count+1. attempts в обоих случаях обнуляем.
	resendCount := existing.ResendCount + 1
	if !now.Before(existing.ExpiresAt) {
		resendCount = 0
	}

	const upd = `
		UPDATE verification_codes
		SET code = $2, method = $3, username = COALESCE(NULLIF($4, ''), username),
		    attempts = 0, resend_count = $5, last_sent_at = $6, expires_at = $7,
		    registration_data = COALESCE($8, registration_data)
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + verificationColumns + `
	`
	var payload []byte
	if len(v.RegistrationData) > 0 {
		payload = []byte(v.RegistrationData)
	}
	updated, err := scanVerification(tx.QueryRowContext(ctx, upd,
		existing.ID, v.Code, v.Method, v.Username, resendCount, now, v.ExpiresAt, payload,
	))
	if err != nil {
		return nil, 0, fmt.Errorf("verification upsert: refresh: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("verification upsert: commit: %w", err)
	}
	return updated, 0, nil
}

func (r *verificationRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	const q = `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE id = $1 AND status = 'pending'
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&attempts); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNoPendingRecord
		}
		return 0, fmt.Errorf("verification increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *verificationRepository) MarkVerified(ctx context.Context, id int64, at time.Time) (bool, error) {
	const q = `
		UPDATE verification_codes
		SET status = 'verified', verified_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.DB.ExecContext(ctx, q, id, at)
	if err != nil {
		return false, fmt.Errorf("verification mark verified: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *verificationRepository) MarkExpired(ctx context.Context, id int64) (bool, error) {
	const q = `
		UPDATE verification_codes
		SET status = 'expired'
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.DB.ExecContext(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("verification mark expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *verificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE status = 'pending' AND expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("verification delete expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
