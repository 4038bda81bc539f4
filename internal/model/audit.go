package model

import "time"

// AuditEntry records one admin action. Writes are fire-and-forget relative
// to the request that caused them.
type AuditEntry struct {
	ID         int64     `json:"id" db:"id"`
	ActorID    int64     `json:"actor_id" db:"actor_id"`
	Action     string    `json:"action" db:"action"`
	TargetType string    `json:"target_type" db:"target_type"`
	TargetID   string    `json:"target_id" db:"target_id"`
	Outcome    string    `json:"outcome" db:"outcome"`
	RequestID  string    `json:"request_id" db:"request_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
