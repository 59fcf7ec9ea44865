package repository

import (
	"context"
	"errors"
	"time"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

var (
	// ErrTicketNotFound is returned by lookups keyed on a ticket id.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrNoSystemUser means no account can author automatic tickets.
	ErrNoSystemUser = errors.New("no system user available")
)

// TicketQuery narrows the thread lookup. SubjectTerms are matched as
// case-insensitive substrings of the title; any term may match.
type TicketQuery struct {
	CustomerEmail string
	SubjectTerms  []string
	Since         time.Time
}

// TicketRepository persists tickets and their comments.
type TicketRepository interface {
	// FindLatest returns the newest ticket matching q, or nil when none does.
	FindLatest(ctx context.Context, q TicketQuery) (*models.Ticket, error)
	GetByID(ctx context.Context, id int64) (*models.Ticket, error)
	// CreateWithComment inserts the ticket and its first comment atomically
	// and fills in both IDs.
	CreateWithComment(ctx context.Context, t *models.Ticket, c *models.TicketComment) error
	// AddComment inserts c and, when reopen is set, moves the ticket to OPEN
	// with updated_at = c.CreatedAt, atomically.
	AddComment(ctx context.Context, c *models.TicketComment, reopen bool) error
	// MaxTicketNumber returns the lexically greatest ticket number starting
	// with prefix, or "" when none exists.
	MaxTicketNumber(ctx context.Context, prefix string) (string, error)
}

// UserRepository reads staff accounts.
type UserRepository interface {
	// FindSystemUser returns the account used as author of automatic tickets.
	// preferredID > 0 selects a specific active account.
	FindSystemUser(ctx context.Context, preferredID int64) (*models.User, error)
	ListActiveByDepartment(ctx context.Context, department string, roles []string) ([]models.User, error)
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
}
