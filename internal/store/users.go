package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wifigate/wifigate/internal/model"
)

// CreateUser inserts a new hotspot user. The ID, CreatedAt, and UpdatedAt
// fields on user are populated after a successful insert.
func (s *Store) CreateUser(ctx context.Context, user *model.HotspotUser) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const q = `INSERT INTO hotspot_users
		(username, full_name, phone, profile, is_active, expires_at, created_at, updated_at)
		VALUES
		(:username, :full_name, :phone, :profile, :is_active, :expires_at, :created_at, :updated_at)`

	id, err := s.namedInsert(ctx, q, user)
	if err != nil {
		return fmt.Errorf("insert hotspot user: %w", err)
	}
	user.ID = id
	return nil
}

// GetUser returns a hotspot user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.HotspotUser, error) {
	var user model.HotspotUser
	if err := s.db.GetContext(ctx, &user, s.rebind("SELECT * FROM hotspot_users WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get hotspot user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername returns a hotspot user by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.HotspotUser, error) {
	var user model.HotspotUser
	if err := s.db.GetContext(ctx, &user,
		s.rebind("SELECT * FROM hotspot_users WHERE username = ?"), username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get hotspot user by username: %w", err)
	}
	return &user, nil
}

// ListUsers returns hotspot users ordered by username with simple
// limit/offset pagination. A limit of 0 means no limit.
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]model.HotspotUser, error) {
	q := "SELECT * FROM hotspot_users ORDER BY username"
	args := []interface{}{}
	if limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	var users []model.HotspotUser
	if err := s.db.SelectContext(ctx, &users, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list hotspot users: %w", err)
	}
	return users, nil
}

// CountUsers returns the total number of hotspot users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM hotspot_users"); err != nil {
		return 0, fmt.Errorf("count hotspot users: %w", err)
	}
	return count, nil
}

// UpdateUser updates an existing hotspot user. The UpdatedAt field is
// refreshed automatically.
func (s *Store) UpdateUser(ctx context.Context, user *model.HotspotUser) error {
	user.UpdatedAt = time.Now().UTC()

	const q = `UPDATE hotspot_users SET
		username = :username, full_name = :full_name, phone = :phone,
		profile = :profile, is_active = :is_active, expires_at = :expires_at,
		updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, user)
	if err != nil {
		return fmt.Errorf("update hotspot user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update hotspot user rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a hotspot user by ID.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM hotspot_users WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete hotspot user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete hotspot user rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
