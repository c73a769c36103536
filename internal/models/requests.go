package models

import "encoding/json"

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegistrationRequest — поля, которые лежат в payload верификации до подтверждения.
type RegistrationRequest struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
	City     string `json:"city"`
}

type VerifyCodeRequest struct {
	Email   string              `json:"email" binding:"required"`
	Phone   string              `json:"phone" binding:"required"`
	Code    string              `json:"code" binding:"required"`
	Purpose VerificationPurpose `json:"purpose"`
}

type ResendCodeRequest struct {
	Email   string              `json:"email" binding:"required"`
	Phone   string              `json:"phone" binding:"required"`
	Purpose VerificationPurpose `json:"purpose"`
}

type PasswordResetRequest struct {
	// Identifier — email или username.
	Identifier string             `json:"identifier" binding:"required"`
	Method     VerificationMethod `json:"method"`
}

type PasswordResetVerify struct {
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (r *RegistrationRequest) Marshal() (json.RawMessage, error) {
	return json.Marshal(r)
}
