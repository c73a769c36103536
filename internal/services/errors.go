package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidIdentity       = errors.New("email and phone are required")
	ErrMalformedCode         = errors.New("verification code must be 6 digits")
	ErrNoPendingVerification = errors.New("no pending verification found")
	ErrCodeExpired           = errors.New("verification code has expired")
	ErrLockedOut             = errors.New("too many incorrect attempts, account restricted")
)

// CooldownError — повторный запрос кода раньше кулдауна.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting a new code", int(e.RetryAfter.Seconds()))
}

// DailyLimitError — исчерпан дневной лимит выдач.
type DailyLimitError struct {
	RetryAfter time.Duration
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily verification limit reached, try again in %d hours", int(e.RetryAfter.Hours())+1)
}

// RestrictedError — действует длительный бан; имеет приоритет над дневным лимитом.
type RestrictedError struct {
	Until  time.Time
	Reason string
}

func (e *RestrictedError) Error() string {
	return fmt.Sprintf("account restricted until %s", e.Until.Format(time.RFC3339))
}

// MismatchError — неверный код, цикл ещё жив.
type MismatchError struct {
	Remaining int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.Remaining)
}
