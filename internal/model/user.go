package model

import "time"

// HotspotUser is a subscriber provisioned on the hotspot. The profile names
// the bandwidth/billing plan applied by the router.
type HotspotUser struct {
	ID        int64      `json:"id" db:"id"`
	Username  string     `json:"username" db:"username"`
	FullName  string     `json:"full_name" db:"full_name"`
	Phone     string     `json:"phone" db:"phone"`
	Profile   string     `json:"profile" db:"profile"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}
