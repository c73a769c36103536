package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"khayalcare/internal/models"
	"khayalcare/internal/repositories"
)

var ErrUserExists = errors.New("user with this email, phone or username already exists")

type UserService interface {
	// RegisterVerified создаёт пользователя из payload подтверждённой верификации.
	RegisterVerified(ctx context.Context, payload json.RawMessage) (*models.User, error)
	// GetByIdentifier ищет по email либо username.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, email, phone, username string) (bool, error)
	UpdatePassword(ctx context.Context, email, newPassword string) error
}

type userService struct {
	repo   repositories.UserRepository
	emails EmailService
	auth   AuthService
}

func NewUserService(repo repositories.UserRepository, emails EmailService, auth AuthService) UserService {
	return &userService{repo: repo, emails: emails, auth: auth}
}

// ValidatePassword — политика паролей: минимум 8 символов, верхний и нижний
// регистр, не меньше двух цифр.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	var upper, lower bool
	digits := 0
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digits++
		}
	}
	if !upper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !lower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if digits < 2 {
		return errors.New("password must contain at least two numbers")
	}
	return nil
}

func (s *userService) RegisterVerified(ctx context.Context, payload json.RawMessage) (*models.User, error) {
	if len(payload) == 0 {
		return nil, errors.New("verification record carries no registration data")
	}
	var req models.RegistrationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode registration data: %w", err)
	}
	if !models.ValidRole(req.Role) {
		return nil, fmt.Errorf("unknown role %q", req.Role)
	}

	// ключ мог заняться, пока код ждал подтверждения
	exists, err := s.repo.Exists(ctx, req.Email, req.Phone, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     req.Username,
		Name:         req.Name,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         req.Role,
		City:         req.City,
		IsVerified:   true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	if s.emails != nil {
		if err := s.emails.SendWelcomeEmail(user.Email, user.Name); err != nil {
			// warn but do not fail creation
			log.Printf("[user][register] welcome email failed for %s: %v", user.Email, err)
		}
	}

	log.Printf("[user][register] created id=%d username=%s role=%s", user.ID, user.Username, user.Role)
	return user, nil
}

func (s *userService) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return s.repo.GetByEmail(ctx, strings.ToLower(identifier))
	}
	return s.repo.GetByUsername(ctx, identifier)
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *userService) Exists(ctx context.Context, email, phone, username string) (bool, error) {
	return s.repo.Exists(ctx, email, phone, username)
}

func (s *userService) UpdatePassword(ctx context.Context, email, newPassword string) error {
	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	ok, err := s.repo.UpdatePasswordByEmail(ctx, email, hash)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("user not found")
	}
	return nil
}
