package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// SchemaVersion is the schema version this build expects after migrating.
const SchemaVersion = 3

// Migration is one forward-only schema step.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Clients and applications",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS clients (
					office_id TEXT NOT NULL,
					id TEXT NOT NULL,
					name TEXT NOT NULL,
					contact_person TEXT NOT NULL DEFAULT '',
					email TEXT NOT NULL DEFAULT '',
					phone TEXT NOT NULL DEFAULT '',
					employee_count INTEGER NOT NULL DEFAULT 0,
					industry TEXT NOT NULL DEFAULT '',
					plan_submitted_at TEXT,
					notes TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					PRIMARY KEY (office_id, id)
				)`,

				`CREATE TABLE IF NOT EXISTS applications (
					office_id TEXT NOT NULL,
					id TEXT NOT NULL,
					client_id TEXT NOT NULL,
					worker_name TEXT NOT NULL,
					conversion_type TEXT NOT NULL,
					conversion_date TEXT NOT NULL,
					application_deadline TEXT,
					status TEXT NOT NULL DEFAULT 'preparing',
					subsidy_amount TEXT NOT NULL DEFAULT '0',
					priority_target INTEGER NOT NULL DEFAULT 0,
					pre_total_salary TEXT NOT NULL DEFAULT '0',
					post_total_salary TEXT NOT NULL DEFAULT '0',
					notes TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					PRIMARY KEY (office_id, id),
					FOREIGN KEY (office_id, client_id) REFERENCES clients(office_id, id) ON DELETE CASCADE
				)`,
				`CREATE INDEX IF NOT EXISTS idx_applications_client
					ON applications(office_id, client_id)`,
				`CREATE INDEX IF NOT EXISTS idx_applications_deadline
					ON applications(office_id, application_deadline)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Status history for auditing",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS status_history (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					office_id TEXT NOT NULL,
					application_id TEXT NOT NULL,
					from_status TEXT NOT NULL DEFAULT '',
					to_status TEXT NOT NULL,
					note TEXT NOT NULL DEFAULT '',
					changed_at TEXT NOT NULL,
					FOREIGN KEY (office_id, application_id) REFERENCES applications(office_id, id) ON DELETE CASCADE
				)`,
				`CREATE INDEX IF NOT EXISTS idx_status_history_application
					ON status_history(office_id, application_id)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Document checklist",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS application_checklist (
					office_id TEXT NOT NULL,
					application_id TEXT NOT NULL,
					document TEXT NOT NULL,
					PRIMARY KEY (office_id, application_id, document),
					FOREIGN KEY (office_id, application_id) REFERENCES applications(office_id, id) ON DELETE CASCADE
				)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// migrate applies every migration newer than the database's user_version.
func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		s.logger.Info("applied migration", "version", m.Version, "description", m.Description)
	}

	var final int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&final); err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	if final != SchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", SchemaVersion, final)
	}
	return nil
}

// discardLogger is used when no logger is supplied.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
