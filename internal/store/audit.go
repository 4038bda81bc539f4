package store

import (
	"context"
	"fmt"
	"time"

	"github.com/wifigate/wifigate/internal/model"
)

// InsertAudit appends one entry to the audit log.
func (s *Store) InsertAudit(ctx context.Context, entry *model.AuditEntry) error {
	entry.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO audit_log
		(actor_id, action, target_type, target_id, outcome, request_id, created_at)
		VALUES
		(:actor_id, :action, :target_type, :target_id, :outcome, :request_id, :created_at)`

	id, err := s.namedInsert(ctx, q, entry)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	entry.ID = id
	return nil
}

// ListAudit returns the most recent audit entries, newest first. A limit of
// 0 means no limit.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	q := "SELECT * FROM audit_log ORDER BY created_at DESC, id DESC"
	args := []interface{}{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	var entries []model.AuditEntry
	if err := s.db.SelectContext(ctx, &entries, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
