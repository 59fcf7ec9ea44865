package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// migration is one schema step. Statements are per dialect; an empty
// dialect entry means the step does not apply there.
type migration struct {
	Version    int
	Name       string
	Statements map[Dialect][]string
}

const (
	pgID     = "BIGSERIAL PRIMARY KEY"
	mysqlID  = "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	sqliteID = "INTEGER PRIMARY KEY AUTOINCREMENT"
)

func forDialects(build func(id, ts, text, boolT string) []string) map[Dialect][]string {
	return map[Dialect][]string{
		DialectPostgres: build(pgID, "TIMESTAMPTZ", "TEXT", "BOOLEAN"),
		DialectMySQL:    build(mysqlID, "DATETIME(6)", "LONGTEXT", "BOOLEAN"),
		DialectSQLite:   build(sqliteID, "TIMESTAMP", "TEXT", "BOOLEAN"),
	}
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "users",
		Statements: forDialects(func(id, ts, text, boolT string) []string {
			return []string{
				`CREATE TABLE IF NOT EXISTS users (
					id ` + id + `,
					username VARCHAR(100) NOT NULL UNIQUE,
					email VARCHAR(255) NOT NULL,
					name VARCHAR(255) NOT NULL DEFAULT '',
					department VARCHAR(50) NOT NULL DEFAULT '',
					role VARCHAR(50) NOT NULL DEFAULT 'USER',
					is_active ` + boolT + ` NOT NULL DEFAULT TRUE,
					created_at ` + ts + ` NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_users_department_role ON users (department, role)`,
			}
		}),
	},
	{
		Version: 2,
		Name:    "tickets",
		Statements: forDialects(func(id, ts, text, boolT string) []string {
			return []string{
				`CREATE TABLE IF NOT EXISTS tickets (
					id ` + id + `,
					ticket_number VARCHAR(64) NOT NULL UNIQUE,
					title VARCHAR(512) NOT NULL,
					description ` + text + ` NOT NULL,
					status VARCHAR(20) NOT NULL,
					priority VARCHAR(20) NOT NULL,
					category VARCHAR(30) NOT NULL,
					customer_email VARCHAR(255) NOT NULL,
					customer_name VARCHAR(255) NOT NULL DEFAULT '',
					assigned_team VARCHAR(50) NOT NULL DEFAULT '',
					tags ` + text + ` NOT NULL,
					created_by BIGINT NOT NULL,
					created_at ` + ts + ` NOT NULL,
					updated_at ` + ts + ` NOT NULL,
					resolved_at ` + ts + ` NULL,
					closed_at ` + ts + ` NULL
				)`,
				`CREATE INDEX idx_tickets_customer_created ON tickets (customer_email, created_at)`,
			}
		}),
	},
	{
		Version: 3,
		Name:    "ticket_comments",
		Statements: forDialects(func(id, ts, text, boolT string) []string {
			return []string{
				`CREATE TABLE IF NOT EXISTS ticket_comments (
					id ` + id + `,
					ticket_id BIGINT NOT NULL REFERENCES tickets (id) ON DELETE CASCADE,
					content ` + text + ` NOT NULL,
					author_id BIGINT NOT NULL,
					author_type VARCHAR(20) NOT NULL,
					is_internal ` + boolT + ` NOT NULL DEFAULT FALSE,
					created_at ` + ts + ` NOT NULL
				)`,
				`CREATE INDEX idx_ticket_comments_ticket ON ticket_comments (ticket_id)`,
			}
		}),
	},
	{
		Version: 4,
		Name:    "notifications",
		Statements: forDialects(func(id, ts, text, boolT string) []string {
			return []string{
				`CREATE TABLE IF NOT EXISTS notifications (
					id ` + id + `,
					user_id BIGINT NOT NULL,
					title VARCHAR(255) NOT NULL,
					message ` + text + ` NOT NULL,
					type VARCHAR(50) NOT NULL,
					link VARCHAR(512) NOT NULL DEFAULT '',
					is_read ` + boolT + ` NOT NULL DEFAULT FALSE,
					created_at ` + ts + ` NOT NULL
				)`,
				`CREATE INDEX idx_notifications_user ON notifications (user_id, is_read)`,
			}
		}),
	},
	{
		Version: 5,
		Name:    "ticket_number_counter",
		Statements: forDialects(func(_, ts, _, _ string) []string {
			return []string{
				`CREATE TABLE IF NOT EXISTS ticket_number_counter (
					counter_uid VARCHAR(32) NOT NULL PRIMARY KEY,
					counter BIGINT NOT NULL,
					created_at ` + ts + ` NOT NULL
				)`,
			}
		}),
	},
}

const versionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER NOT NULL PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`

// LatestVersion is the highest schema version this binary knows about.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// CurrentVersion returns the highest applied version, 0 for a fresh database.
func CurrentVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var v int
	err := db.GetContext(ctx, &v, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Migrate applies pending migrations in order, each in its own transaction,
// and returns how many were applied.
func Migrate(ctx context.Context, db *sqlx.DB, log zerolog.Logger) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	dialect := DialectOf(db.DriverName())
	if dialect == DialectUnknown {
		return 0, fmt.Errorf("migrations: unsupported driver %q", db.DriverName())
	}

	if _, err := db.ExecContext(ctx, versionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, db, m, m.Statements[dialect]); err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("migration applied")
		applied++
	}
	return applied, nil
}

func apply(ctx context.Context, db *sqlx.DB, m migration, stmts []string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`),
		m.Version, m.Name, time.Now().UTC())
	if err != nil {
		return err
	}
	return tx.Commit()
}
