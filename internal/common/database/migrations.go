// internal/common/database/migrations.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// DefaultChangeFeedChannel is the NOTIFY channel of the postjob trigger.
const DefaultChangeFeedChannel = "postjob_changes"

// Migration is one forward-only schema step.
type Migration struct {
	Version string
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx) error
}

func execAll(ctx context.Context, tx *sql.Tx, statements ...string) error {
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Migrations holds the job board schema in apply order.
var Migrations = []Migration{
	{
		Version: "20240301090000",
		Name:    "create_postjob",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			return execAll(ctx, tx, `
				CREATE TABLE IF NOT EXISTS postjob (
					id                 BIGSERIAL PRIMARY KEY,
					user_id            TEXT NOT NULL,
					title              TEXT NOT NULL,
					company            TEXT NOT NULL,
					location           TEXT NOT NULL,
					jobtype            TEXT NOT NULL,
					workplace          TEXT NOT NULL,
					jobdesc            TEXT NOT NULL DEFAULT '',
					openings           INTEGER NOT NULL DEFAULT 1,
					screeningquestions JSONB NOT NULL DEFAULT '[]',
					status             TEXT NOT NULL DEFAULT 'open'
						CHECK (status IN ('open', 'paused', 'closed')),
					created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_postjob_user ON postjob (user_id)`,
				`CREATE INDEX IF NOT EXISTS idx_postjob_status_created ON postjob (status, created_at DESC)`,
			)
		},
	},
	{
		Version: "20240301090100",
		Name:    "create_applications",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			return execAll(ctx, tx, `
				CREATE TABLE IF NOT EXISTS applications (
					id              BIGSERIAL PRIMARY KEY,
					job_id          BIGINT NOT NULL REFERENCES postjob (id) ON DELETE CASCADE,
					user_id         TEXT NOT NULL,
					email           TEXT NOT NULL,
					phone           TEXT NOT NULL,
					resume_path     TEXT NOT NULL,
					answers         JSONB NOT NULL DEFAULT '[]',
					status          TEXT NOT NULL DEFAULT 'inprogress'
						CHECK (status IN ('inprogress', 'accepted', 'rejected', 'withdrawn')),
					withdraw_reason TEXT,
					created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (job_id, user_id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_applications_user ON applications (user_id)`,
			)
		},
	},
	{
		Version: "20240301090200",
		Name:    "create_savedjobs_companies_settings",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			return execAll(ctx, tx, `
				CREATE TABLE IF NOT EXISTS savedjobs (
					id         BIGSERIAL PRIMARY KEY,
					user_id    TEXT NOT NULL,
					job_id     BIGINT NOT NULL REFERENCES postjob (id) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (user_id, job_id)
				)`,
				`CREATE TABLE IF NOT EXISTS companies (
					id          BIGSERIAL PRIMARY KEY,
					companyname TEXT NOT NULL,
					companylogo TEXT NOT NULL,
					user_id     TEXT NOT NULL,
					created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS settings (
					id         BIGSERIAL PRIMARY KEY,
					job_id     BIGINT NOT NULL UNIQUE REFERENCES postjob (id) ON DELETE CASCADE,
					auto_close BOOLEAN NOT NULL DEFAULT FALSE
				)`,
			)
		},
	},
	{
		Version: "20240301090300",
		Name:    "postjob_change_feed",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			return execAll(ctx, tx, changeFeedStatements(DefaultChangeFeedChannel)...)
		},
	},
}

// changeFeedStatements builds the postjob trigger. The payload carries only
// op and id; listeners re-read the row.
func changeFeedStatements(channel string) []string {
	return []string{
		fmt.Sprintf(`
			CREATE OR REPLACE FUNCTION postjob_notify() RETURNS trigger AS $$
			DECLARE
				row_id BIGINT;
			BEGIN
				IF TG_OP = 'DELETE' THEN
					row_id := OLD.id;
				ELSE
					row_id := NEW.id;
				END IF;
				PERFORM pg_notify(%s,
					json_build_object('op', TG_OP, 'id', row_id)::text);
				RETURN NULL;
			END;
			$$ LANGUAGE plpgsql`, pq.QuoteLiteral(channel)),
		`DROP TRIGGER IF EXISTS postjob_notify_trigger ON postjob`,
		`CREATE TRIGGER postjob_notify_trigger
			AFTER INSERT OR UPDATE OR DELETE ON postjob
			FOR EACH ROW EXECUTE FUNCTION postjob_notify()`,
	}
}

// EnsureChangeFeed points the postjob trigger at channel. It runs on every
// start so the trigger always notifies the channel the listener is on.
func EnsureChangeFeed(ctx context.Context, db *sql.DB, channel string) error {
	if channel == "" {
		channel = DefaultChangeFeedChannel
	}
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		return execAll(ctx, tx, changeFeedStatements(channel)...)
	})
	if err != nil {
		return fmt.Errorf("install change feed trigger on %s: %w", channel, err)
	}
	return nil
}

// Migrate applies every migration not yet recorded in schema_migrations.
// Each migration runs in its own transaction.
func Migrate(ctx context.Context, db *sql.DB, migrations []Migration) ([]string, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	var ran []string
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			if err := m.Up(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("migration %s_%s: %w", m.Version, m.Name, err)
		}
		ran = append(ran, m.Version)
	}

	return ran, nil
}
