package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"khayalcare/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// Exists проверяет занятость email, phone или username одним запросом.
	Exists(ctx context.Context, email, phone, username string) (bool, error)
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) (bool, error)
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `id, username, name, email, phone, password_hash, role, COALESCE(city, ''), is_verified, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(
		&u.ID, &u.Username, &u.Name, &u.Email, &u.Phone,
		&u.PasswordHash, &u.Role, &u.City, &u.IsVerified, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (username, name, email, phone, password_hash, role, city, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		RETURNING id
	`
	if err := r.DB.QueryRowContext(ctx, q,
		user.Username, user.Name, user.Email, user.Phone,
		user.PasswordHash, user.Role, user.City, user.IsVerified, user.CreatedAt,
	).Scan(&user.ID); err != nil {
		return fmt.Errorf("user create: %w", err)
	}
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("user get by email: %w", err)
	}
	return u, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("user get by username: %w", err)
	}
	return u, nil
}

func (r *userRepository) Exists(ctx context.Context, email, phone, username string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE email = $1 OR phone = $2 OR username = $3
		)
	`
	var exists bool
	if err := r.DB.QueryRowContext(ctx, q, email, phone, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

func (r *userRepository) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE email = $1`, email, passwordHash)
	if err != nil {
		return false, fmt.Errorf("user update password: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
