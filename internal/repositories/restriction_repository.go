package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"khayalcare/internal/models"
)

type RestrictionRepository interface {
	// GetActive возвращает действующий бан по email или phone, nil если его нет.
	GetActive(ctx context.Context, email, phone string, now time.Time) (*models.AccountRestriction, error)
	// Upsert создаёт бан либо продлевает существующий для пары (email, phone).
	Upsert(ctx context.Context, restriction *models.AccountRestriction) error
}

type restrictionRepository struct {
	DB *sql.DB
}

func NewRestrictionRepository(db *sql.DB) RestrictionRepository {
	return &restrictionRepository{DB: db}
}

func (r *restrictionRepository) GetActive(ctx context.Context, email, phone string, now time.Time) (*models.AccountRestriction, error) {
	const q = `
		SELECT id, email, phone, restriction_type, reason, restricted_until, created_at
		FROM account_restrictions
		WHERE (email = $1 OR phone = $2) AND restricted_until > $3
		ORDER BY restricted_until DESC
		LIMIT 1
	`
	var res models.AccountRestriction
	err := r.DB.QueryRowContext(ctx, q, email, phone, now).Scan(
		&res.ID, &res.Email, &res.Phone, &res.RestrictionType, &res.Reason, &res.RestrictedUntil, &res.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("restriction get active: %w", err)
	}
	return &res, nil
}

func (r *restrictionRepository) Upsert(ctx context.Context, restriction *models.AccountRestriction) error {
	const q = `
		INSERT INTO account_restrictions
			(email, phone, restriction_type, reason, restricted_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email, phone)
		DO UPDATE SET
			restriction_type = EXCLUDED.restriction_type,
			reason           = EXCLUDED.reason,
			restricted_until = EXCLUDED.restricted_until
		RETURNING id
	`
	if err := r.DB.QueryRowContext(ctx, q,
		restriction.Email, restriction.Phone, restriction.RestrictionType,
		restriction.Reason, restriction.RestrictedUntil, restriction.CreatedAt,
	).Scan(&restriction.ID); err != nil {
		return fmt.Errorf("restriction upsert: %w", err)
	}
	return nil
}
