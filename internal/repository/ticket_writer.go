package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
	"github.com/TIPA-VN/uxone-sub003/internal/utils"
)

// Teams that own inbound tickets.
const (
	TeamIS = "IS"
	TeamCS = "CS"
)

// Column widths of the tickets table, in characters.
const (
	MaxTitleLength    = 512
	MaxCustomerLength = 255
)

// EmailTags marks tickets opened by the email pipeline.
var EmailTags = models.Tags{"email-conversion", "auto-generated"}

// TeamForCategory routes a category to the owning team. Unknown categories go to CS.
func TeamForCategory(c models.TicketCategory) string {
	switch c {
	case models.CategoryBug, models.CategoryFeatureRequest, models.CategoryTechnicalIssue:
		return TeamIS
	default:
		return TeamCS
	}
}

// NewTicket is an inbound email accepted as a new thread.
type NewTicket struct {
	TicketNumber  string
	Subject       string
	Body          string
	CustomerEmail string
	CustomerName  string
	Category      models.TicketCategory
	Priority      models.TicketPriority
	MessageID     string
	ReceivedAt    time.Time
}

// Reply is an inbound email matched to an existing ticket.
type Reply struct {
	Body          string
	CustomerEmail string
	CustomerName  string
	MessageID     string
	ReceivedAt    time.Time
}

// TicketWriter turns accepted emails into ticket and comment rows.
type TicketWriter struct {
	tickets      TicketRepository
	users        UserRepository
	systemUserID int64
	now          func() time.Time
}

// WriterOption configures a TicketWriter.
type WriterOption func(*TicketWriter)

// WithSystemUserID pins the author of automatic tickets to one account.
func WithSystemUserID(id int64) WriterOption {
	return func(w *TicketWriter) { w.systemUserID = id }
}

// WithWriterClock overrides time.Now.
func WithWriterClock(now func() time.Time) WriterOption {
	return func(w *TicketWriter) {
		if now != nil {
			w.now = now
		}
	}
}

// NewTicketWriter wires a writer over the given repositories.
func NewTicketWriter(tickets TicketRepository, users UserRepository, opts ...WriterOption) *TicketWriter {
	w := &TicketWriter{tickets: tickets, users: users, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CreateTicket stores an OPEN ticket together with an internal SYSTEM comment
// that echoes the email for audit.
func (w *TicketWriter) CreateTicket(ctx context.Context, in NewTicket) (*models.Ticket, *models.TicketComment, error) {
	author, err := w.users.FindSystemUser(ctx, w.systemUserID)
	if err != nil {
		return nil, nil, err
	}

	now := w.now().UTC()
	t := &models.Ticket{
		TicketNumber:  in.TicketNumber,
		Title:         utils.TruncateRunes(in.Subject, MaxTitleLength),
		Description:   in.Body,
		Status:        models.StatusOpen,
		Priority:      in.Priority,
		Category:      in.Category,
		CustomerEmail: utils.TruncateRunes(in.CustomerEmail, MaxCustomerLength),
		CustomerName:  utils.TruncateRunes(in.CustomerName, MaxCustomerLength),
		AssignedTeam:  TeamForCategory(in.Category),
		Tags:          append(models.Tags(nil), EmailTags...),
		CreatedBy:     author.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c := &models.TicketComment{
		Content:    auditContent("Ticket created from email.", in.CustomerName, in.CustomerEmail, in.MessageID, in.ReceivedAt, now, in.Body),
		AuthorID:   author.ID,
		AuthorType: models.AuthorSystem,
		IsInternal: true,
		CreatedAt:  now,
	}

	if err := w.tickets.CreateWithComment(ctx, t, c); err != nil {
		return nil, nil, fmt.Errorf("create ticket %s: %w", in.TicketNumber, err)
	}
	return t, c, nil
}

// AppendReply adds a customer comment to t and reopens it when it was
// CLOSED or RESOLVED. t is updated in place to reflect the stored state.
func (w *TicketWriter) AppendReply(ctx context.Context, t *models.Ticket, in Reply) (*models.TicketComment, error) {
	author, err := w.users.FindSystemUser(ctx, w.systemUserID)
	if err != nil {
		return nil, err
	}

	now := w.now().UTC()
	c := &models.TicketComment{
		TicketID:   t.ID,
		Content:    auditContent("Email reply received.", in.CustomerName, in.CustomerEmail, in.MessageID, in.ReceivedAt, now, in.Body),
		AuthorID:   author.ID,
		AuthorType: models.AuthorCustomer,
		IsInternal: false,
		CreatedAt:  now,
	}

	reopen := t.ReopensOnReply()
	if err := w.tickets.AddComment(ctx, c, reopen); err != nil {
		return nil, fmt.Errorf("append reply to %s: %w", t.TicketNumber, err)
	}
	if reopen {
		t.Status = models.StatusOpen
		t.UpdatedAt = now
	}
	return c, nil
}

func auditContent(headline, name, email, messageID string, received, fallback time.Time, body string) string {
	if received.IsZero() {
		received = fallback
	}
	var b strings.Builder
	b.WriteString(headline)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "From: %s <%s>\n", name, email)
	fmt.Fprintf(&b, "Date: %s\n", received.UTC().Format(time.RFC1123Z))
	if messageID != "" {
		fmt.Fprintf(&b, "Message-ID: %s\n", messageID)
	}
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}
