package models

import "time"

// Роли маркетплейса.
const (
	RoleSubscriber   = "subscriber"
	RoleCaretaker    = "caretaker"
	RoleChef         = "chef"
	RolePsychologist = "psychologist"
	RoleAdmin        = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"` // не отдаём наружу
	Role         string    `json:"role"`
	City         string    `json:"city,omitempty"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleSubscriber, RoleCaretaker, RoleChef, RolePsychologist, RoleAdmin:
		return true
	}
	return false
}
