package ticketnumber

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/TIPA-VN/uxone-sub003/internal/database"
)

// DBStore keeps one ticket_number_counter row per day and increments it with
// a dialect specific atomic statement:
//
//	Postgres, SQLite: INSERT ... ON CONFLICT (counter_uid) DO UPDATE SET counter = counter + 1 RETURNING counter
//	MySQL: INSERT ... ON DUPLICATE KEY UPDATE counter = LAST_INSERT_ID(counter + 1)
//
// Other drivers fall back to a transaction with SELECT ... FOR UPDATE.
type DBStore struct {
	db    *sqlx.DB
	clock func() time.Time
}

// NewDBStore creates a store on db.
func NewDBStore(db *sqlx.DB) *DBStore {
	return &DBStore{db: db, clock: time.Now}
}

// Next implements CounterStore.
func (s *DBStore) Next(ctx context.Context, scope string, seed int64) (int64, error) {
	if seed < 0 {
		seed = 0
	}
	first := seed + 1
	created := s.clock().UTC()

	switch database.DialectOf(s.db.DriverName()) {
	case database.DialectPostgres, database.DialectSQLite:
		var c int64
		err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO ticket_number_counter (counter_uid, counter, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT (counter_uid) DO UPDATE SET counter = ticket_number_counter.counter + 1
			RETURNING counter`), scope, first, created).Scan(&c)
		if err != nil {
			return 0, err
		}
		return c, nil

	case database.DialectMySQL:
		// The table has no AUTO_INCREMENT column, so LastInsertId is only
		// non-zero when the update branch ran LAST_INSERT_ID(expr).
		res, err := s.db.ExecContext(ctx, `INSERT INTO ticket_number_counter (counter_uid, counter, created_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE counter = LAST_INSERT_ID(counter + 1)`, scope, first, created)
		if err != nil {
			return 0, err
		}
		c, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		if c == 0 {
			return first, nil
		}
		return c, nil

	default:
		return s.nextLocked(ctx, scope, first, created)
	}
}

func (s *DBStore) nextLocked(ctx context.Context, scope string, first int64, created time.Time) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	err = tx.QueryRowxContext(ctx, tx.Rebind(`SELECT counter FROM ticket_number_counter WHERE counter_uid = ? FOR UPDATE`), scope).Scan(&current)
	next := current + 1
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE ticket_number_counter SET counter = ? WHERE counter_uid = ?`), next, scope)
	case errors.Is(err, sql.ErrNoRows):
		next = first
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO ticket_number_counter (counter_uid, counter, created_at) VALUES (?, ?, ?)`), scope, next, created)
	}
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", scope, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}
