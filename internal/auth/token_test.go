package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wifigate/wifigate/internal/model"
	"github.com/wifigate/wifigate/internal/store"
)

func newTestService(t *testing.T, accessTTL time.Duration) (*TokenService, *store.Store) {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewTokenService(st, "test-secret", accessTTL, time.Hour), st
}

func seedAdmin(t *testing.T, st *store.Store, username string, role model.Role, password string) *model.AdminUser {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	admin := &model.AdminUser{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := st.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	return admin
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc, st := newTestService(t, 15*time.Minute)
	admin := seedAdmin(t, st, "alice", model.RoleSuperAdmin, "s3cret")

	pair, err := svc.Issue(context.Background(), admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be populated")
	}
	if pair.ExpiresIn != int((15 * time.Minute).Seconds()) {
		t.Errorf("ExpiresIn: got %d", pair.ExpiresIn)
	}

	claims, err := svc.VerifyAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.UserID != admin.ID {
		t.Errorf("UserID: got %d, want %d", claims.UserID, admin.ID)
	}
	if claims.Username != "alice" {
		t.Errorf("Username: got %q", claims.Username)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email: got %q", claims.Email)
	}
	if claims.Role != model.RoleSuperAdmin {
		t.Errorf("Role: got %q", claims.Role)
	}
}

func TestNewTokenServiceTTLs(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	// Zero means "use the default".
	svc := NewTokenService(st, "test-secret", 0, 0)
	if got := svc.AccessTTL(); got != 15*time.Minute {
		t.Errorf("zero accessTTL: got %s, want 15m", got)
	}

	// A negative TTL is preserved so tests can mint already-expired tokens.
	svc = NewTokenService(st, "test-secret", -time.Minute, time.Hour)
	if got := svc.AccessTTL(); got != -time.Minute {
		t.Errorf("negative accessTTL: got %s, want -1m", got)
	}
	admin := seedAdmin(t, st, "zelda", model.RoleAdmin, "s3cret")
	pair, err := svc.Issue(context.Background(), admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.VerifyAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("token from negative TTL: expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, st := newTestService(t, -time.Minute)
	admin := seedAdmin(t, st, "bob", model.RoleAdmin, "s3cret")

	pair, err := svc.Issue(context.Background(), admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Expired must be distinguishable from malformed: the client's silent
	// refresh path only triggers on expiry.
	if _, err := svc.VerifyAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	svc, st := newTestService(t, 15*time.Minute)
	admin := seedAdmin(t, st, "carol", model.RoleAdmin, "s3cret")

	pair, err := svc.Issue(context.Background(), admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cases := map[string]string{
		"garbage":         "not-a-token",
		"truncated":       pair.AccessToken[:len(pair.AccessToken)/2],
		"wrong signature": pair.AccessToken[:strings.LastIndex(pair.AccessToken, ".")] + ".AAAA",
	}
	for name, token := range cases {
		if _, err := svc.VerifyAccessToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}

	other := NewTokenService(st, "different-secret", 15*time.Minute, time.Hour)
	if _, err := other.VerifyAccessToken(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	svc, st := newTestService(t, 15*time.Minute)
	admin := seedAdmin(t, st, "dave", model.RoleAdmin, "s3cret")
	ctx := context.Background()

	pair, err := svc.Issue(ctx, admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("expected rotation to mint a new refresh token")
	}

	// Replaying the consumed token fails and burns the whole family.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("replay: expected ErrTokenRevoked, got %v", err)
	}
	if _, err := svc.Refresh(ctx, rotated.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("rotated token after family revocation: expected ErrTokenRevoked, got %v", err)
	}
}

func TestRefreshRejectsUnknownAndInactive(t *testing.T) {
	svc, st := newTestService(t, 15*time.Minute)
	admin := seedAdmin(t, st, "erin", model.RoleAdmin, "s3cret")
	ctx := context.Background()

	if _, err := svc.Refresh(ctx, "never-issued"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unknown token: expected ErrInvalidToken, got %v", err)
	}

	pair, err := svc.Issue(ctx, admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := st.DeactivateAdmin(ctx, admin.ID); err != nil {
		t.Fatalf("DeactivateAdmin: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("inactive admin: expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewTokenService(st, "test-secret", 15*time.Minute, -time.Hour)
	admin := seedAdmin(t, st, "heidi", model.RoleAdmin, "s3cret")
	ctx := context.Background()

	pair, err := svc.Issue(ctx, admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// A refresh token past its expiry is indistinguishable from an unknown
	// one: the client falls back to a fresh login either way.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired refresh token: expected ErrInvalidToken, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, st := newTestService(t, 15*time.Minute)
	admin := seedAdmin(t, st, "frank", model.RoleAdmin, "s3cret")
	ctx := context.Background()

	pair, err := svc.Issue(ctx, admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := svc.Revoke(ctx, "never-issued"); err != nil {
		t.Errorf("revoking unknown token should be a no-op, got %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("refresh after logout: expected ErrTokenRevoked, got %v", err)
	}
}

func TestVerifyCredentials(t *testing.T) {
	svc, st := newTestService(t, 15*time.Minute)
	seedAdmin(t, st, "grace", model.RoleAdmin, "correct horse")
	ctx := context.Background()

	admin, err := svc.VerifyCredentials(ctx, "grace", "correct horse")
	if err != nil {
		t.Fatalf("VerifyCredentials: %v", err)
	}
	if admin.Username != "grace" {
		t.Errorf("Username: got %q", admin.Username)
	}

	if _, err := svc.VerifyCredentials(ctx, "grace", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.VerifyCredentials(ctx, "nobody", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}

	if err := st.DeactivateAdmin(ctx, admin.ID); err != nil {
		t.Fatalf("DeactivateAdmin: %v", err)
	}
	if _, err := svc.VerifyCredentials(ctx, "grace", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("inactive account: expected ErrInvalidCredentials, got %v", err)
	}
}
