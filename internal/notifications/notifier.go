package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
	"github.com/TIPA-VN/uxone-sub003/internal/repository"
)

// Outcomes reported to the Observer.
const (
	ResultSent         = "sent"
	ResultFailed       = "failed"
	ResultNoRecipients = "no_recipients"
)

// EventNotification is the realtime event type for stored notifications.
const EventNotification = "notification"

// Observer counts notification outcomes.
type Observer interface {
	ObserveNotification(result string)
}

// Publisher pushes a stored notification to live connections.
type Publisher interface {
	Publish(userID int64, e Event) int
}

// Notifier writes in-app notifications for the managers of a team. It
// never returns errors; failures are logged and counted.
type Notifier struct {
	users    repository.UserRepository
	store    repository.NotificationRepository
	realtime Publisher
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithRealtime pushes every stored notification through p.
func WithRealtime(p Publisher) Option {
	return func(n *Notifier) { n.realtime = p }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(n *Notifier) {
		if o != nil {
			n.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

// NewNotifier creates a Notifier.
func NewNotifier(users repository.UserRepository, store repository.NotificationRepository, opts ...Option) *Notifier {
	n := &Notifier{
		users:    users,
		store:    store,
		observer: nopObserver{},
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// TicketLink is the in-app path of a ticket.
func TicketLink(t *models.Ticket) string {
	return fmt.Sprintf("/helpdesk/tickets/%d", t.ID)
}

// NotifyTeam tells the managers of team about a new ticket.
func (n *Notifier) NotifyTeam(ctx context.Context, t *models.Ticket, team string) {
	n.fanOut(ctx, t, team, models.Notification{
		Title:   "New Support Ticket: " + t.TicketNumber,
		Message: fmt.Sprintf("New ticket from %s (%s): %s", t.CustomerName, t.CustomerEmail, t.Title),
		Type:    models.NotificationTicketCreated,
		Link:    TicketLink(t),
	})
}

// NotifyReply tells the managers of the ticket's team about a customer reply.
// Tickets without a team fall back to CS.
func (n *Notifier) NotifyReply(ctx context.Context, t *models.Ticket, senderEmail, senderName string) {
	team := t.AssignedTeam
	if team == "" {
		team = repository.TeamCS
	}
	n.fanOut(ctx, t, team, models.Notification{
		Title:   "Customer Reply: " + t.TicketNumber,
		Message: fmt.Sprintf("%s (%s) replied to ticket: %s", senderName, senderEmail, t.Title),
		Type:    models.NotificationTicketReply,
		Link:    TicketLink(t),
	})
}

func (n *Notifier) fanOut(ctx context.Context, t *models.Ticket, team string, tmpl models.Notification) {
	log := n.logger.With().
		Int64("ticket_id", t.ID).
		Str("ticket_number", t.TicketNumber).
		Str("team", team).
		Str("type", tmpl.Type).
		Logger()

	recipients, err := n.users.ListActiveByDepartment(ctx, team, models.TeamNotificationRoles)
	if err != nil {
		log.Error().Err(err).Msg("notification recipients lookup failed")
		n.observer.ObserveNotification(ResultFailed)
		return
	}
	if len(recipients) == 0 {
		log.Warn().Msg("no recipients for team notification")
		n.observer.ObserveNotification(ResultNoRecipients)
		return
	}

	sent := 0
	for _, u := range recipients {
		item := tmpl
		item.UserID = u.ID
		item.CreatedAt = n.now().UTC()
		if err := n.store.Create(ctx, &item); err != nil {
			log.Error().Err(err).Int64("user_id", u.ID).Msg("notification insert failed")
			n.observer.ObserveNotification(ResultFailed)
			continue
		}
		n.observer.ObserveNotification(ResultSent)
		sent++
		if n.realtime != nil {
			n.realtime.Publish(u.ID, Event{Type: EventNotification, Notification: item, SentAt: item.CreatedAt})
		}
	}
	log.Info().Int("recipients", len(recipients)).Int("sent", sent).Msg("team notified")
}

type nopObserver struct{}

func (nopObserver) ObserveNotification(string) {}
