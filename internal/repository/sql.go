package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/TIPA-VN/uxone-sub003/internal/database"
)

// insertID runs an INSERT written with ? placeholders and returns the new
// row id, via RETURNING where the dialect has it and LastInsertId otherwise.
func insertID(ctx context.Context, ext sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	if database.DialectOf(ext.DriverName()).SupportsReturning() {
		var id int64
		err := ext.QueryRowxContext(ctx, ext.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern builds a LIKE pattern for ESCAPE '!' matching s anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// prefixPattern builds a LIKE pattern for ESCAPE '!' matching s at the start.
func prefixPattern(s string) string {
	return likeEscaper.Replace(s) + "%"
}
