package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

// SQLNotificationRepository is the sqlx implementation of NotificationRepository.
type SQLNotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a notification repository on db.
func NewNotificationRepository(db *sqlx.DB) *SQLNotificationRepository {
	return &SQLNotificationRepository{db: db}
}

// Create inserts n and sets its ID.
func (r *SQLNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	id, err := insertID(ctx, r.db, `INSERT INTO notifications (
			user_id, title, message, type, link, is_read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Message, n.Type, n.Link, n.IsRead, n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert notification for user %d: %w", n.UserID, err)
	}
	n.ID = id
	return nil
}
