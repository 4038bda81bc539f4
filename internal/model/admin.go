package model

import "time"

// AdminUser is an operator of the hotspot business. Passwords are stored as
// bcrypt hashes. Accounts are deactivated rather than deleted so audit rows
// keep a valid actor.
type AdminUser struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         Role       `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// RefreshToken is the server-side record of an issued refresh token. Only
// the SHA-256 of the raw token is stored. Tokens in the same family descend
// from one login; reuse of a revoked member revokes the whole family.
type RefreshToken struct {
	ID        string    `json:"id" db:"id"`
	AdminID   int64     `json:"admin_id" db:"admin_id"`
	FamilyID  string    `json:"family_id" db:"family_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
