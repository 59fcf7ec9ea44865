package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

const userColumns = `id, username, email, name, department, role, is_active, created_at`

// SQLUserRepository is the sqlx implementation of UserRepository.
type SQLUserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a user repository on db.
func NewUserRepository(db *sqlx.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db}
}

// FindSystemUser implements UserRepository. Without a preferred id the
// oldest active ADMIN is used.
func (r *SQLUserRepository) FindSystemUser(ctx context.Context, preferredID int64) (*models.User, error) {
	var (
		u   models.User
		err error
	)
	if preferredID > 0 {
		err = r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users
			WHERE id = ? AND is_active = ?`), preferredID, true)
	} else {
		err = r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users
			WHERE role = ? AND is_active = ?
			ORDER BY id
			LIMIT 1`), models.RoleAdmin, true)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSystemUser
	}
	if err != nil {
		return nil, fmt.Errorf("find system user: %w", err)
	}
	return &u, nil
}

// ListActiveByDepartment implements UserRepository.
func (r *SQLUserRepository) ListActiveByDepartment(ctx context.Context, department string, roles []string) ([]models.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users
		WHERE department = ? AND is_active = ? AND role IN (?)
		ORDER BY id`, department, true, roles)
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list users of %s: %w", department, err)
	}
	return users, nil
}
