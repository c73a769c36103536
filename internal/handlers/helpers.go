package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"khayalcare/internal/services"
)

// getInt64FromCtx — устойчиво к типам (int / int64 / float64 / string)
func getInt64FromCtx(c *gin.Context, key string) (int64, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// respondVerificationError мапит ошибки ядра верификации на HTTP-ответы.
// Где применимо — машинное retry_after_seconds, чтобы клиент не гадал.
func respondVerificationError(c *gin.Context, err error) {
	var cooldown *services.CooldownError
	var daily *services.DailyLimitError
	var restricted *services.RestrictedError
	var mismatch *services.MismatchError

	switch {
	case errors.As(err, &cooldown):
		minutes := int(cooldown.RetryAfter.Minutes()) + 1
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "Please wait " + strconv.Itoa(minutes) + " minutes before requesting a new code",
			"retry_after_seconds": int(cooldown.RetryAfter.Seconds()),
		})
	case errors.As(err, &daily):
		hours := int(daily.RetryAfter.Hours()) + 1
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "Daily verification limit reached. Try again in " + strconv.Itoa(hours) + " hours",
			"retry_after_seconds": int(daily.RetryAfter.Seconds()),
		})
	case errors.As(err, &restricted):
		c.JSON(http.StatusForbidden, gin.H{
			"error":            "Account restricted due to excessive attempts",
			"restricted_until": restricted.Until,
		})
	case errors.As(err, &mismatch):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":              "Invalid code. " + strconv.Itoa(mismatch.Remaining) + " attempts remaining",
			"attempts_remaining": mismatch.Remaining,
		})
	case errors.Is(err, services.ErrLockedOut):
		c.JSON(http.StatusForbidden, gin.H{"error": "Too many incorrect attempts. Account restricted"})
	case errors.Is(err, services.ErrCodeExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verification code has expired. Please request a new code"})
	case errors.Is(err, services.ErrNoPendingVerification):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No pending verification found"})
	case errors.Is(err, services.ErrMalformedCode), errors.Is(err, services.ErrInvalidIdentity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
	}
}
