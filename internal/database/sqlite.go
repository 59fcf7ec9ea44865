package database

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// SQLiteDriverName is the driver Open uses for database.driver "sqlite3".
// It replaces SQLite's ASCII-only lower() with Unicode case folding so
// case-insensitive title matching works for accented subjects.
const SQLiteDriverName = "sqlite3_unicode"

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", strings.ToLower, true)
		},
	})
	sqlx.BindDriver(SQLiteDriverName, sqlx.QUESTION)
}
