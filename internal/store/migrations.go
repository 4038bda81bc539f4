package store

import (
	"fmt"
	"strings"
)

// pk returns the primary-key column clause for the active driver.
func (s *Store) pk() string {
	switch s.driver {
	case DriverMySQL:
		return "BIGINT PRIMARY KEY AUTO_INCREMENT"
	case DriverPostgres:
		return "BIGSERIAL PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

func (s *Store) migrate() error {
	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS admins (
			id %s,
			username VARCHAR(64) UNIQUE NOT NULL,
			email VARCHAR(255) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL DEFAULT 'admin',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.pk()),

		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id VARCHAR(64) PRIMARY KEY,
			admin_id BIGINT NOT NULL,
			family_id VARCHAR(64) NOT NULL,
			token_hash VARCHAR(64) UNIQUE NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS hotspot_users (
			id %s,
			username VARCHAR(64) UNIQUE NOT NULL,
			full_name VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(32) NOT NULL DEFAULT '',
			profile VARCHAR(64) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.pk()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vouchers (
			id %s,
			code VARCHAR(32) UNIQUE NOT NULL,
			profile VARCHAR(64) NOT NULL DEFAULT 'default',
			duration_minutes INTEGER NOT NULL,
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			status VARCHAR(16) NOT NULL DEFAULT 'unused',
			used_by VARCHAR(64) NOT NULL DEFAULT '',
			used_at TIMESTAMP,
			batch_id VARCHAR(64) NOT NULL DEFAULT '',
			created_by BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.pk()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS audit_log (
			id %s,
			actor_id BIGINT NOT NULL,
			action VARCHAR(64) NOT NULL,
			target_type VARCHAR(32) NOT NULL DEFAULT '',
			target_id VARCHAR(64) NOT NULL DEFAULT '',
			outcome VARCHAR(16) NOT NULL DEFAULT 'ok',
			request_id VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.pk()),

		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_hash ON refresh_tokens(token_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_family ON refresh_tokens(family_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vouchers_status ON vouchers(status)`,
		`CREATE INDEX IF NOT EXISTS idx_vouchers_batch ON vouchers(batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_actor ON audit_log(actor_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// MySQL (pre-8.0.29) lacks CREATE INDEX IF NOT EXISTS; treat a
			// duplicate index as a no-op so reruns stay idempotent.
			if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
