package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVoucherUsed is returned when redeeming a voucher that has already
	// been consumed or expired.
	ErrVoucherUsed = errors.New("voucher already used")
)
