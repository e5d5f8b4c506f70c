package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus is the lifecycle state of a user record.
type UserStatus string

const (
	UserStatusActive  UserStatus = "ACTIVE"
	UserStatusBlocked UserStatus = "BLOCKED"
)

// User is an authenticated principal that owns zero or more accounts.
// PasswordHash is a bcrypt hash and is never serialized.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     *string    `json:"full_name,omitempty"`
	Admin        bool       `json:"admin"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RegisterRequest is the payload for creating a new user.
type RegisterRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
}

// LoginRequest carries the credentials for token issuance.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned on successful login.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
