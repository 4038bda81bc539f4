package model

import "time"

// Voucher statuses. A voucher moves unused → used exactly once; expired is
// set by housekeeping for unused vouchers past their sale window.
const (
	VoucherUnused  = "unused"
	VoucherUsed    = "used"
	VoucherExpired = "expired"
)

// Voucher is a prepaid access code. Codes are generated from an alphabet
// without ambiguous characters so they survive being read off paper.
type Voucher struct {
	ID              int64      `json:"id" db:"id"`
	Code            string     `json:"code" db:"code"`
	Profile         string     `json:"profile" db:"profile"`
	DurationMinutes int        `json:"duration_minutes" db:"duration_minutes"`
	Price           float64    `json:"price" db:"price"`
	Status          string     `json:"status" db:"status"`
	UsedBy          string     `json:"used_by,omitempty" db:"used_by"`
	UsedAt          *time.Time `json:"used_at,omitempty" db:"used_at"`
	BatchID         string     `json:"batch_id" db:"batch_id"`
	CreatedBy       int64      `json:"created_by" db:"created_by"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// VoucherSummary aggregates voucher counts for the usage report endpoint.
type VoucherSummary struct {
	Total   int     `json:"total" db:"total"`
	Unused  int     `json:"unused" db:"unused"`
	Used    int     `json:"used" db:"used"`
	Expired int     `json:"expired" db:"expired"`
	Revenue float64 `json:"revenue" db:"revenue"`
}
