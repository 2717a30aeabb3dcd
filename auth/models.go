package auth

import "time"

type Role string

const (
	// RoleRecipient raises help requests.
	RoleRecipient Role = "recipient"
	// RoleResponder handles requests while on shift.
	RoleResponder Role = "responder"
	// RoleOverseer is the always-available fallback actor.
	RoleOverseer Role = "overseer"
)

// User is the domain representation of an authenticated actor.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Phone        *string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains sign-up data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginRequest contains sign-in credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
