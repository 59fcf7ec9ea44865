package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/TIPA-VN/uxone-sub003/internal/database"
	"github.com/TIPA-VN/uxone-sub003/internal/models"
	"github.com/TIPA-VN/uxone-sub003/internal/utils"
)

// ErrDuplicateTicketNumber is returned when the ticket_number unique key rejects an insert.
var ErrDuplicateTicketNumber = errors.New("duplicate ticket number")

const ticketColumns = `id, ticket_number, title, description, status, priority, category,
	customer_email, customer_name, assigned_team, tags, created_by,
	created_at, updated_at, resolved_at, closed_at`

// SQLTicketRepository is the sqlx implementation of TicketRepository.
type SQLTicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates a ticket repository on db.
func NewTicketRepository(db *sqlx.DB) *SQLTicketRepository {
	return &SQLTicketRepository{db: db}
}

// FindLatest implements TicketRepository.
func (r *SQLTicketRepository) FindLatest(ctx context.Context, q TicketQuery) (*models.Ticket, error) {
	terms := uniqueTerms(q.SubjectTerms)
	if len(terms) == 0 {
		return nil, nil //nolint:nilnil
	}

	conds := make([]string, 0, len(terms))
	args := []interface{}{utils.TruncateRunes(q.CustomerEmail, MaxCustomerLength), q.Since.UTC()}
	for _, term := range terms {
		conds = append(conds, "LOWER(title) LIKE ? ESCAPE '!'")
		args = append(args, containsPattern(term))
	}

	query := `SELECT ` + ticketColumns + `
		FROM tickets
		WHERE customer_email = ? AND created_at >= ? AND (` + strings.Join(conds, " OR ") + `)
		ORDER BY created_at DESC
		LIMIT 1`

	var t models.Ticket
	if err := r.db.GetContext(ctx, &t, r.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil
		}
		return nil, fmt.Errorf("find ticket for %s: %w", q.CustomerEmail, err)
	}
	return &t, nil
}

// GetByID implements TicketRepository.
func (r *SQLTicketRepository) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	var t models.Ticket
	err := r.db.GetContext(ctx, &t, r.db.Rebind(`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return &t, nil
}

// CreateWithComment implements TicketRepository.
func (r *SQLTicketRepository) CreateWithComment(ctx context.Context, t *models.Ticket, c *models.TicketComment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ticketID, err := insertID(ctx, tx, `INSERT INTO tickets (
			ticket_number, title, description, status, priority, category,
			customer_email, customer_name, assigned_team, tags, created_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TicketNumber, t.Title, t.Description, t.Status, t.Priority, t.Category,
		t.CustomerEmail, t.CustomerName, t.AssignedTeam, t.Tags, t.CreatedBy,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateTicketNumber, t.TicketNumber)
		}
		return fmt.Errorf("insert ticket: %w", err)
	}

	c.TicketID = ticketID
	commentID, err := insertComment(ctx, tx, c)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ticket %s: %w", t.TicketNumber, err)
	}
	t.ID = ticketID
	c.ID = commentID
	return nil
}

// AddComment implements TicketRepository. The reopen update only touches
// tickets that are still CLOSED or RESOLVED at write time.
func (r *SQLTicketRepository) AddComment(ctx context.Context, c *models.TicketComment, reopen bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertComment(ctx, tx, c)
	if err != nil {
		return err
	}

	if reopen {
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE tickets SET status = ?, updated_at = ?
			WHERE id = ? AND status IN (?, ?)`),
			models.StatusOpen, c.CreatedAt.UTC(), c.TicketID, models.StatusClosed, models.StatusResolved)
		if err != nil {
			return fmt.Errorf("reopen ticket %d: %w", c.TicketID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit comment on ticket %d: %w", c.TicketID, err)
	}
	c.ID = id
	return nil
}

// MaxTicketNumber implements TicketRepository. Longer numbers sort first so
// that NNNN outranks NNN once a day passes 999 tickets.
func (r *SQLTicketRepository) MaxTicketNumber(ctx context.Context, prefix string) (string, error) {
	var tn string
	err := r.db.GetContext(ctx, &tn, r.db.Rebind(`SELECT ticket_number FROM tickets
		WHERE ticket_number LIKE ? ESCAPE '!'
		ORDER BY LENGTH(ticket_number) DESC, ticket_number DESC
		LIMIT 1`), prefixPattern(prefix))
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("max ticket number for %s: %w", prefix, err)
	}
	return tn, nil
}

func insertComment(ctx context.Context, tx *sqlx.Tx, c *models.TicketComment) (int64, error) {
	id, err := insertID(ctx, tx, `INSERT INTO ticket_comments (
			ticket_id, content, author_id, author_type, is_internal, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		c.TicketID, c.Content, c.AuthorID, c.AuthorType, c.IsInternal, c.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert comment on ticket %d: %w", c.TicketID, err)
	}
	return id, nil
}

// uniqueTerms lowercases and de-duplicates terms, dropping blanks. Terms are
// clipped like stored titles so an over-long subject still finds its ticket.
func uniqueTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.ToLower(utils.TruncateRunes(strings.TrimSpace(term), MaxTitleLength))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}
