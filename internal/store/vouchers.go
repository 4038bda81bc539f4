package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wifigate/wifigate/internal/model"
)

// CreateVoucherBatch inserts a batch of vouchers in one transaction so a
// partially generated batch never becomes sellable.
func (s *Store) CreateVoucherBatch(ctx context.Context, vouchers []model.Voucher) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin voucher batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const q = `INSERT INTO vouchers
		(code, profile, duration_minutes, price, status, used_by, batch_id, created_by, created_at)
		VALUES
		(:code, :profile, :duration_minutes, :price, :status, :used_by, :batch_id, :created_by, :created_at)`

	now := time.Now().UTC()
	for i := range vouchers {
		vouchers[i].CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, q, vouchers[i]); err != nil {
			return fmt.Errorf("insert voucher: %w", err)
		}
	}

	return tx.Commit()
}

// GetVoucherByCode returns a voucher by its unique code.
func (s *Store) GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error) {
	var v model.Voucher
	if err := s.db.GetContext(ctx, &v, s.rebind("SELECT * FROM vouchers WHERE code = ?"), code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get voucher by code: %w", err)
	}
	return &v, nil
}

// ListVouchers returns vouchers, optionally filtered by status, newest
// first. A limit of 0 means no limit.
func (s *Store) ListVouchers(ctx context.Context, status string, limit, offset int) ([]model.Voucher, error) {
	q := "SELECT * FROM vouchers"
	args := []interface{}{}
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	var vouchers []model.Voucher
	if err := s.db.SelectContext(ctx, &vouchers, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	return vouchers, nil
}

// RedeemVoucher consumes an unused voucher for the given hotspot username.
// The status guard in the UPDATE makes redemption single-use even under
// concurrent requests: exactly one caller observes a row change.
func (s *Store) RedeemVoucher(ctx context.Context, code, usedBy string) (*model.Voucher, error) {
	result, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE vouchers SET status = ?, used_by = ?, used_at = ?
			WHERE code = ? AND status = ?`),
		model.VoucherUsed, usedBy, time.Now().UTC(), code, model.VoucherUnused)
	if err != nil {
		return nil, fmt.Errorf("redeem voucher: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("redeem voucher rows affected: %w", err)
	}
	if n == 0 {
		// Either the code doesn't exist or it was already consumed.
		if _, lookupErr := s.GetVoucherByCode(ctx, code); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, ErrVoucherUsed
	}

	return s.GetVoucherByCode(ctx, code)
}

// VoucherSummary aggregates voucher counts and realized revenue.
func (s *Store) VoucherSummary(ctx context.Context) (*model.VoucherSummary, error) {
	const q = `SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN status = 'unused' THEN 1 ELSE 0 END), 0) AS unused,
		COALESCE(SUM(CASE WHEN status = 'used' THEN 1 ELSE 0 END), 0) AS used,
		COALESCE(SUM(CASE WHEN status = 'expired' THEN 1 ELSE 0 END), 0) AS expired,
		COALESCE(SUM(CASE WHEN status = 'used' THEN price ELSE 0 END), 0) AS revenue
		FROM vouchers`

	var summary model.VoucherSummary
	if err := s.db.GetContext(ctx, &summary, q); err != nil {
		return nil, fmt.Errorf("voucher summary: %w", err)
	}
	return &summary, nil
}
