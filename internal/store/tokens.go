package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wifigate/wifigate/internal/model"
)

// CreateRefreshToken inserts a new refresh token record. ID and FamilyID
// are generated when empty.
func (s *Store) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.FamilyID == "" {
		token.FamilyID = uuid.NewString()
	}
	token.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO refresh_tokens
		(id, admin_id, family_id, token_hash, expires_at, revoked, created_at)
		VALUES
		(:id, :admin_id, :family_id, :token_hash, :expires_at, :revoked, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, token); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetRefreshTokenByHash looks up a refresh token by its SHA-256 hash.
func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	if err := s.db.GetContext(ctx, &token,
		s.rebind("SELECT * FROM refresh_tokens WHERE token_hash = ?"), hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get refresh token by hash: %w", err)
	}
	return &token, nil
}

// RevokeRefreshToken marks a single refresh token as revoked.
func (s *Store) RevokeRefreshToken(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE refresh_tokens SET revoked = ? WHERE id = ?"), true, id); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeTokenFamily marks every token in a family as revoked. Used for
// theft detection when an already-consumed token is presented again.
func (s *Store) RevokeTokenFamily(ctx context.Context, familyID string) error {
	if _, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE refresh_tokens SET revoked = ? WHERE family_id = ?"), true, familyID); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	return nil
}

// RevokeTokensForAdmin marks all refresh tokens for an admin as revoked.
// Used on deactivation and password change.
func (s *Store) RevokeTokensForAdmin(ctx context.Context, adminID int64) error {
	if _, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE refresh_tokens SET revoked = ? WHERE admin_id = ?"), true, adminID); err != nil {
		return fmt.Errorf("revoke tokens for admin: %w", err)
	}
	return nil
}

// RotateRefreshToken atomically revokes the consumed token and inserts its
// replacement in the same family, so concurrent refreshes cannot both win.
func (s *Store) RotateRefreshToken(ctx context.Context, oldID string, next *model.RefreshToken) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		s.rebind("UPDATE refresh_tokens SET revoked = ? WHERE id = ? AND revoked = ?"),
		true, oldID, false)
	if err != nil {
		return fmt.Errorf("revoke consumed token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotation rows affected: %w", err)
	}
	if n == 0 {
		// Lost the race: another refresh already consumed this token.
		return ErrNotFound
	}

	if next.ID == "" {
		next.ID = uuid.NewString()
	}
	next.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO refresh_tokens
		(id, admin_id, family_id, token_hash, expires_at, revoked, created_at)
		VALUES
		(:id, :admin_id, :family_id, :token_hash, :expires_at, :revoked, :created_at)`

	if _, err := tx.NamedExecContext(ctx, q, next); err != nil {
		return fmt.Errorf("insert rotated token: %w", err)
	}

	return tx.Commit()
}

// DeleteExpiredTokens removes refresh tokens past their expiry, returning
// the number of deleted rows.
func (s *Store) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		s.rebind("DELETE FROM refresh_tokens WHERE expires_at <= ?"), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rows affected: %w", err)
	}
	return n, nil
}
