package models

import (
	"encoding/json"
	"time"
)

type VerificationPurpose string

const (
	PurposeRegistration  VerificationPurpose = "registration"
	PurposePasswordReset VerificationPurpose = "password_reset"
)

type VerificationMethod string

const (
	MethodEmail    VerificationMethod = "email"
	MethodWhatsApp VerificationMethod = "whatsapp"
	MethodBoth     VerificationMethod = "both"
)

type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusExpired  VerificationStatus = "expired"
)

// VerificationCode — один цикл подтверждения для пары (email, phone, purpose).
// Максимум одна pending-запись на ключ; это гарантирует репозиторий.
type VerificationCode struct {
	ID         int64               `json:"id"`
	Email      string              `json:"email"`
	Phone      string              `json:"phone"`
	Username   string              `json:"username,omitempty"`
	Code       string              `json:"-"` // не отдаём наружу
	Purpose    VerificationPurpose `json:"purpose"`
	Method     VerificationMethod  `json:"method"`
	Status     VerificationStatus  `json:"status"`
	Attempts   int                 `json:"attempts"`
	ResendCount int                `json:"resend_count"`
	LastSentAt time.Time           `json:"last_sent_at"`
	ExpiresAt  time.Time           `json:"expires_at"`
	CreatedAt  time.Time           `json:"created_at"`
	VerifiedAt *time.Time          `json:"verified_at,omitempty"`

	// RegistrationData — отложенные данные регистрации. Ядро верификации их
	// не интерпретирует; декодируются только после успешного verify.
	RegistrationData json.RawMessage `json:"-"`
}

// DailyVerificationAttempt — счётчик выдач за календарный день.
// Ключ (email, phone, purpose, attempt_date); смена даты = новый ключ.
type DailyVerificationAttempt struct {
	ID            int64               `json:"id"`
	Email         string              `json:"email"`
	Phone         string              `json:"phone"`
	Purpose       VerificationPurpose `json:"purpose"`
	AttemptDate   string              `json:"attempt_date"` // YYYY-MM-DD (UTC)
	AttemptCount  int                 `json:"attempt_count"`
	LastAttemptAt time.Time           `json:"last_attempt_at"`
}

// AccountRestriction — длительный бан на выдачу кодов после серьёзного абьюза.
type AccountRestriction struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	RestrictionType string    `json:"restriction_type"`
	Reason          string    `json:"reason"`
	RestrictedUntil time.Time `json:"restricted_until"`
	CreatedAt       time.Time `json:"created_at"`
}
