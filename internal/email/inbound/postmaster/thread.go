package postmaster

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
	"github.com/TIPA-VN/uxone-sub003/internal/repository"
)

// DefaultThreadWindow bounds how far back a reply may match a ticket.
const DefaultThreadWindow = 30 * 24 * time.Hour

// subjectPrefixes are the reply and forward markers NormalizeSubject strips.
var subjectPrefixes = []string{
	"reply:", "reply -", "reply-",
	"fwd:", "fwd -", "fwd-",
	"fw:", "fw -", "fw-",
	"re:", "re -", "re-",
}

// NormalizeSubject removes at most one leading reply or forward prefix,
// case-insensitively, and trims the result.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for _, p := range subjectPrefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

type ticketFinder interface {
	FindLatest(ctx context.Context, q repository.TicketQuery) (*models.Ticket, error)
}

// ThreadResolver matches an inbound email to a recent ticket from the same
// sender with a similar title.
type ThreadResolver struct {
	tickets ticketFinder
	window  time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewThreadResolver creates a resolver. A non-positive window selects
// DefaultThreadWindow.
func NewThreadResolver(tickets ticketFinder, window time.Duration, logger zerolog.Logger) *ThreadResolver {
	if window <= 0 {
		window = DefaultThreadWindow
	}
	return &ThreadResolver{
		tickets: tickets,
		window:  window,
		now:     time.Now,
		logger:  logger,
	}
}

// FindExistingTicket returns the newest ticket from senderEmail created
// within the window whose title contains the normalized or raw subject.
// Lookup errors are logged and reported as no match.
func (r *ThreadResolver) FindExistingTicket(ctx context.Context, subject, senderEmail string) *models.Ticket {
	normalized := NormalizeSubject(subject)
	q := repository.TicketQuery{
		CustomerEmail: senderEmail,
		SubjectTerms:  []string{normalized, subject},
		Since:         r.now().Add(-r.window),
	}
	t, err := r.tickets.FindLatest(ctx, q)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("sender", senderEmail).
			Str("subject", subject).
			Msg("thread lookup failed, treating as new ticket")
		return nil
	}
	return t
}
