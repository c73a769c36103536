package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"khayalcare/internal/models"
	"khayalcare/internal/services"
)

type VerificationHandler struct {
	verifications *services.VerificationService
	users         services.UserService
	auth          services.AuthService

	// для полей ответа
	TTLMinutes      int
	CooldownMinutes int
	DailyLimit      int
}

func NewVerificationHandler(
	verifications *services.VerificationService,
	users services.UserService,
	auth services.AuthService,
	ttlMinutes, cooldownMinutes, dailyLimit int,
) *VerificationHandler {
	return &VerificationHandler{
		verifications:   verifications,
		users:           users,
		auth:            auth,
		TTLMinutes:      ttlMinutes,
		CooldownMinutes: cooldownMinutes,
		DailyLimit:      dailyLimit,
	}
}

// @Summary      Start registration
// @Description  Validates registration data, stores it until the code is confirmed and sends a verification code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        registration  body      models.RegistrationRequest  true  "Registration data"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Router       /auth/register [post]
func (h *VerificationHandler) Register(c *gin.Context) {
	var req models.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	if err := services.ValidatePassword(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := h.users.Exists(c.Request.Context(), req.Email, req.Phone, req.Username)
	if err != nil {
		log.Printf("[auth][register] user lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "User with this email, phone or username already exists"})
		return
	}

	payload, err := req.Marshal()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	result, err := h.verifications.CreateVerification(c.Request.Context(), services.CreateVerificationInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Username: req.Username,
		Purpose:  models.PurposeRegistration,
		Method:   models.MethodBoth,
		Payload:  payload,
	})
	if err != nil {
		respondVerificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":                  sentMessage(result.SentVia),
		"email":                    req.Email,
		"phone":                    req.Phone,
		"expires_in_minutes":       h.TTLMinutes,
		"can_resend_after_minutes": h.CooldownMinutes,
		"daily_limit":              h.DailyLimit,
		"attempts_remaining":       result.AttemptsRemaining,
	})
}

// @Summary      Confirm registration
// @Description  Verifies the code and creates the user from the stored registration data
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        confirmation  body      models.VerifyCodeRequest  true  "Verification code"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /auth/register/confirm [post]
func (h *VerificationHandler) ConfirmRegistration(c *gin.Context) {
	var req models.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	payload, err := h.verifications.VerifyCode(c.Request.Context(), req.Email, req.Phone, models.PurposeRegistration, req.Code)
	if err != nil {
		respondVerificationError(c, err)
		return
	}

	user, err := h.users.RegisterVerified(c.Request.Context(), payload)
	if err != nil {
		log.Printf("[auth][confirm] user creation failed: email=%s err=%v", req.Email, err)
		if err == services.ErrUserExists {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	token, err := h.auth.GenerateToken(user)
	if err != nil {
		log.Printf("[auth][confirm] token generation failed: user_id=%d err=%v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account verified and created successfully",
		"token":   token,
		"user":    user,
	})
}

// @Summary      Resend verification code
// @Description  Regenerates the code for an active cycle, honoring the resend cooldown
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        resend  body      models.ResendCodeRequest  true  "Identity"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Router       /auth/register/resend [post]
func (h *VerificationHandler) Resend(c *gin.Context) {
	var req models.ResendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Purpose == "" {
		req.Purpose = models.PurposeRegistration
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	result, err := h.verifications.ResendCode(c.Request.Context(), req.Email, req.Phone, req.Purpose)
	if err != nil {
		respondVerificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            sentMessage(result.SentVia),
		"attempts_remaining": result.AttemptsRemaining,
	})
}

// @Summary      Request password reset
// @Description  Sends a verification code to the account matching the identifier; never reveals whether the account exists
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body      models.PasswordResetRequest  true  "Email or username"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Router       /auth/password-reset/request [post]
func (h *VerificationHandler) RequestPasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Method == "" {
		req.Method = models.MethodBoth
	}

	const genericMsg = "If the account exists, a verification code has been sent"

	user, err := h.users.GetByIdentifier(c.Request.Context(), req.Identifier)
	if err != nil || user == nil {
		// don't leak existence
		log.Printf("[auth][reset] request for %q: not found or error: %v", req.Identifier, err)
		c.JSON(http.StatusOK, gin.H{"message": genericMsg})
		return
	}

	_, err = h.verifications.CreateVerification(c.Request.Context(), services.CreateVerificationInput{
		Email:   user.Email,
		Phone:   user.Phone,
		Purpose: models.PurposePasswordReset,
		Method:  req.Method,
	})
	if err != nil {
		respondVerificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": genericMsg,
		"email":   user.Email,
		"phone":   user.Phone,
	})
}

// @Summary      Confirm password reset
// @Description  Verifies the code and sets the new password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        reset  body      models.PasswordResetVerify  true  "Code and new password"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /auth/password-reset/verify [post]
func (h *VerificationHandler) VerifyPasswordReset(c *gin.Context) {
	var req models.PasswordResetVerify
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := services.ValidatePassword(req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := h.verifications.VerifyCode(c.Request.Context(), req.Email, req.Phone, models.PurposePasswordReset, req.Code); err != nil {
		respondVerificationError(c, err)
		return
	}

	if err := h.users.UpdatePassword(c.Request.Context(), req.Email, req.NewPassword); err != nil {
		log.Printf("[auth][reset] password update failed: email=%s err=%v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Password reset failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

func sentMessage(sentVia []string) string {
	if len(sentVia) == 0 {
		return "Verification code created. Please check your email and WhatsApp"
	}
	return "Verification code sent successfully via " + strings.Join(sentVia, ", ")
}
