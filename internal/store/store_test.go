package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wifigate/wifigate/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAdminCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin := &model.AdminUser{
		Username:     "owner",
		Email:        "owner@example.com",
		PasswordHash: "$2a$10$fakehash",
		Role:         model.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := s.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if admin.ID == 0 {
		t.Fatal("expected admin ID to be populated")
	}

	got, err := s.GetAdminByUsername(ctx, "owner")
	if err != nil {
		t.Fatalf("GetAdminByUsername: %v", err)
	}
	if got.Role != model.RoleSuperAdmin {
		t.Errorf("Role: got %q, want %q", got.Role, model.RoleSuperAdmin)
	}
	if !got.IsActive {
		t.Error("expected admin to be active")
	}

	if err := s.DeactivateAdmin(ctx, admin.ID); err != nil {
		t.Fatalf("DeactivateAdmin: %v", err)
	}
	got, err = s.GetAdmin(ctx, admin.ID)
	if err != nil {
		t.Fatalf("GetAdmin: %v", err)
	}
	if got.IsActive {
		t.Error("expected admin to be inactive after deactivation")
	}

	if _, err := s.GetAdmin(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &model.RefreshToken{
		AdminID:   1,
		TokenHash: "hash-1",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	if err := s.CreateRefreshToken(ctx, first); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}
	if first.FamilyID == "" {
		t.Fatal("expected family ID to be generated")
	}

	next := &model.RefreshToken{
		AdminID:   1,
		FamilyID:  first.FamilyID,
		TokenHash: "hash-2",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	if err := s.RotateRefreshToken(ctx, first.ID, next); err != nil {
		t.Fatalf("RotateRefreshToken: %v", err)
	}

	// The consumed token is revoked and cannot be rotated again.
	got, err := s.GetRefreshTokenByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetRefreshTokenByHash: %v", err)
	}
	if !got.Revoked {
		t.Error("expected consumed token to be revoked")
	}

	again := &model.RefreshToken{
		AdminID:   1,
		FamilyID:  first.FamilyID,
		TokenHash: "hash-3",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	if err := s.RotateRefreshToken(ctx, first.ID, again); !errors.Is(err, ErrNotFound) {
		t.Errorf("second rotation of same token: expected ErrNotFound, got %v", err)
	}

	if err := s.RevokeTokenFamily(ctx, first.FamilyID); err != nil {
		t.Fatalf("RevokeTokenFamily: %v", err)
	}
	got, err = s.GetRefreshTokenByHash(ctx, "hash-2")
	if err != nil {
		t.Fatalf("GetRefreshTokenByHash: %v", err)
	}
	if !got.Revoked {
		t.Error("expected family revocation to cover rotated token")
	}
}

func TestVoucherRedeemOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []model.Voucher{
		{Code: "ABCD-2345", Profile: "1hour", DurationMinutes: 60, Price: 1.5, Status: model.VoucherUnused, BatchID: "b1", CreatedBy: 1},
		{Code: "EFGH-6789", Profile: "1hour", DurationMinutes: 60, Price: 1.5, Status: model.VoucherUnused, BatchID: "b1", CreatedBy: 1},
	}
	if err := s.CreateVoucherBatch(ctx, batch); err != nil {
		t.Fatalf("CreateVoucherBatch: %v", err)
	}

	v, err := s.RedeemVoucher(ctx, "ABCD-2345", "guest-7")
	if err != nil {
		t.Fatalf("RedeemVoucher: %v", err)
	}
	if v.Status != model.VoucherUsed {
		t.Errorf("Status: got %q, want %q", v.Status, model.VoucherUsed)
	}
	if v.UsedBy != "guest-7" {
		t.Errorf("UsedBy: got %q, want %q", v.UsedBy, "guest-7")
	}
	if v.UsedAt == nil {
		t.Error("expected UsedAt to be set")
	}

	if _, err := s.RedeemVoucher(ctx, "ABCD-2345", "guest-8"); !errors.Is(err, ErrVoucherUsed) {
		t.Errorf("second redeem: expected ErrVoucherUsed, got %v", err)
	}
	if _, err := s.RedeemVoucher(ctx, "NOPE-0000", "guest-9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown code: expected ErrNotFound, got %v", err)
	}

	summary, err := s.VoucherSummary(ctx)
	if err != nil {
		t.Fatalf("VoucherSummary: %v", err)
	}
	if summary.Total != 2 || summary.Used != 1 || summary.Unused != 1 {
		t.Errorf("summary: got %+v", summary)
	}
	if summary.Revenue != 1.5 {
		t.Errorf("Revenue: got %v, want 1.5", summary.Revenue)
	}
}

func TestAuditInsertAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &model.AuditEntry{
		ActorID:    1,
		Action:     "users.manage",
		TargetType: "hotspot_user",
		TargetID:   "42",
		Outcome:    "ok",
		RequestID:  "req-1",
	}
	if err := s.InsertAudit(ctx, entry); err != nil {
		t.Fatalf("InsertAudit: %v", err)
	}

	entries, err := s.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Action != "users.manage" {
		t.Errorf("Action: got %q", entries[0].Action)
	}
}
