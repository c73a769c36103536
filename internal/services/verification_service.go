package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"khayalcare/internal/models"
	"khayalcare/internal/repositories"
)

// Дефолты политики; реальные значения приходят из конфига.
const (
	defaultCodeTTL          = 10 * time.Minute
	defaultResendCooldown   = 2 * time.Minute
	defaultMaxWrongAttempts = 5
)

type VerificationService struct {
	repo             repositories.VerificationRepository
	guard            *AbuseGuard
	dispatcher       *NotificationDispatcher
	codeTTL          time.Duration
	resendCooldown   time.Duration
	maxWrongAttempts int

	now func() time.Time
}

func NewVerificationService(
	repo repositories.VerificationRepository,
	guard *AbuseGuard,
	dispatcher *NotificationDispatcher,
	codeTTL, resendCooldown time.Duration,
	maxWrongAttempts int,
) *VerificationService {
	if codeTTL <= 0 {
		codeTTL = defaultCodeTTL
	}
	if resendCooldown <= 0 {
		resendCooldown = defaultResendCooldown
	}
	if maxWrongAttempts <= 0 {
		maxWrongAttempts = defaultMaxWrongAttempts
	}
	return &VerificationService{
		repo:             repo,
		guard:            guard,
		dispatcher:       dispatcher,
		codeTTL:          codeTTL,
		resendCooldown:   resendCooldown,
		maxWrongAttempts: maxWrongAttempts,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// generateCode — равномерно случайный 6-значный код, ведущие нули допустимы.
func generateCode() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

type CreateVerificationInput struct {
	Email    string
	Phone    string
	Username string
	Purpose  models.VerificationPurpose
	Method   models.VerificationMethod
	Payload  json.RawMessage
}

type CreateVerificationResult struct {
	Record            *models.VerificationCode
	AttemptsUsed      int
	AttemptsRemaining int
	SentVia           []string
}

// CreateVerification — выдача кода: гейт абьюза, атомарный create-or-refresh,
// отправка уведомлений вне критического пути.
func (s *VerificationService) CreateVerification(ctx context.Context, in CreateVerificationInput) (*CreateVerificationResult, error) {
	if in.Email == "" || in.Phone == "" {
		return nil, ErrInvalidIdentity
	}
	if in.Purpose != models.PurposeRegistration && in.Purpose != models.PurposePasswordReset {
		return nil, fmt.Errorf("unknown verification purpose %q", in.Purpose)
	}
	if in.Method == "" {
		in.Method = models.MethodBoth
	}

	used, remaining, err := s.guard.AuthorizeIssuance(ctx, in.Email, in.Phone, in.Purpose)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &models.VerificationCode{
		Email:            in.Email,
		Phone:            in.Phone,
		Username:         in.Username,
		Code:             generateCode(),
		Purpose:          in.Purpose,
		Method:           in.Method,
		LastSentAt:       now,
		ExpiresAt:        now.Add(s.codeTTL),
		RegistrationData: in.Payload,
	}

	saved, retryAfter, err := s.repo.CreateOrRefresh(ctx, rec, s.resendCooldown)
	if err != nil {
		if errors.Is(err, repositories.ErrResendCooldown) {
			return nil, &CooldownError{RetryAfter: retryAfter}
		}
		return nil, err
	}

	// Запись уже создана/обновлена — ответ не ждёт доставки.
	sentVia := s.dispatcher.Dispatch(saved)

	log.Printf("[verify][create] email=%s phone=%s purpose=%s resend_count=%d daily_used=%d",
		in.Email, in.Phone, in.Purpose, saved.ResendCount, used)

	return &CreateVerificationResult{
		Record:            saved,
		AttemptsUsed:      used,
		AttemptsRemaining: remaining,
		SentVia:           sentVia,
	}, nil
}

// VerifyCode сверяет код: ленивое протухание, атомарный инкремент попыток,
// перевод в терминальный статус. Возвращает отложенный payload при успехе.
func (s *VerificationService) VerifyCode(ctx context.Context, email, phone string, purpose models.VerificationPurpose, code string) (json.RawMessage, error) {
	if email == "" || phone == "" {
		return nil, ErrInvalidIdentity
	}
	if !isSixDigits(code) {
		return nil, ErrMalformedCode
	}

	v, err := s.repo.GetPending(ctx, email, phone, purpose)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNoPendingVerification
	}

	now := s.now()
	if now.After(v.ExpiresAt) {
		if _, err := s.repo.MarkExpired(ctx, v.ID); err != nil {
			log.Printf("[verify][check] mark expired failed: id=%d err=%v", v.ID, err)
		}
		return nil, ErrCodeExpired
	}

	attempts, err := s.repo.IncrementAttempts(ctx, v.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNoPendingRecord) {
			// запись закрыли конкурентно
			return nil, ErrNoPendingVerification
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(code)) != 1 {
		if attempts >= s.maxWrongAttempts {
			if _, err := s.repo.MarkExpired(ctx, v.ID); err != nil {
				log.Printf("[verify][check] mark expired failed: id=%d err=%v", v.ID, err)
			}
			if err := s.guard.RecordLockout(ctx, email, phone, "Too many incorrect verification attempts"); err != nil {
				log.Printf("[verify][check] record lockout failed: email=%s err=%v", email, err)
			}
			log.Printf("[verify][check] locked out: email=%s phone=%s purpose=%s", email, phone, purpose)
			return nil, ErrLockedOut
		}
		return nil, &MismatchError{Remaining: s.maxWrongAttempts - attempts}
	}

	ok, err := s.repo.MarkVerified(ctx, v.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// конкурентный verify успел первым
		return nil, ErrNoPendingVerification
	}

	log.Printf("[verify][check] OK email=%s phone=%s purpose=%s attempts=%d", email, phone, purpose, attempts)
	return v.RegistrationData, nil
}

// ResendCode — та же кулдаун-гейтовая выдача; метод всегда BOTH.
func (s *VerificationService) ResendCode(ctx context.Context, email, phone string, purpose models.VerificationPurpose) (*CreateVerificationResult, error) {
	return s.CreateVerification(ctx, CreateVerificationInput{
		Email:   email,
		Phone:   phone,
		Purpose: purpose,
		Method:  models.MethodBoth,
	})
}
