// Package database opens the SQL store behind the helpdesk and keeps its schema current.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	// Registered drivers. Which one is used depends on database.driver.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/TIPA-VN/uxone-sub003/internal/config"
)

// Dialect names the SQL flavour behind a connection.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite3"
	DialectUnknown  Dialect = "unknown"
)

// DialectOf maps a sqlx driver name to a Dialect.
func DialectOf(driverName string) Dialect {
	switch driverName {
	case "postgres":
		return DialectPostgres
	case "mysql":
		return DialectMySQL
	case "sqlite3", SQLiteDriverName:
		return DialectSQLite
	default:
		return DialectUnknown
	}
}

// SupportsReturning reports whether INSERT ... RETURNING is available.
func (d Dialect) SupportsReturning() bool {
	return d == DialectPostgres || d == DialectSQLite
}

// Open connects to the configured database, applies pool settings and pings it.
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*sqlx.DB, error) {
	dsn, err := cfg.GetDSN()
	if err != nil {
		return nil, err
	}

	driver := cfg.Driver
	if DialectOf(driver) == DialectUnknown {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	driverName := driver
	if DialectOf(driver) == DialectSQLite {
		driverName = SQLiteDriverName
	}
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if DialectOf(driver) == DialectSQLite {
		// A single writer avoids SQLITE_BUSY on concurrent counter upserts.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	log.Info().
		Str("driver", driver).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("database connected")
	return db, nil
}
