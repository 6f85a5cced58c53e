package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's platform role.
type Role string

const (
	RoleStudent Role = "student"
	RoleTA      Role = "ta"
	RoleAdmin   Role = "admin"
)

// Staff reports whether the role carries moderation rights.
func (r Role) Staff() bool {
	return r == RoleTA || r == RoleAdmin
}

// Profile represents a registered user.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	School       string    `json:"school,omitempty"`
	Course       string    `json:"course,omitempty"`
	IsHandRaised bool      `json:"is_hand_raised"`
	IsUnlocked   bool      `json:"is_unlocked"` // per-student override of the global lock
	IsPremium    bool      `json:"is_premium"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
