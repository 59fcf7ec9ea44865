package postmaster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/classifier"
	"github.com/TIPA-VN/uxone-sub003/internal/models"
	"github.com/TIPA-VN/uxone-sub003/internal/repository"
	"github.com/TIPA-VN/uxone-sub003/internal/utils"
)

// Actions reported in Result.
const (
	ActionTicketCreated = "ticket_created"
	ActionReplyAdded    = "reply_added"
)

// Event types handed to the EventPublisher.
const (
	EventTicketCreated  = "ticket.created"
	EventTicketReopened = "ticket.reopened"
	EventArticleAdded   = "article.added"
)

// Failure stages reported to the Observer.
const (
	StageValidate = "validate"
	StageParse    = "parse"
	StageNumber   = "number"
	StageWrite    = "write"
)

var (
	// ErrInvalidPayload means the email lacks a sender, subject or body.
	ErrInvalidPayload = errors.New("invalid email payload")
	// ErrNoSystemUser means no account can author automatic tickets.
	ErrNoSystemUser = repository.ErrNoSystemUser
)

// maxNumberAttempts bounds retries when a generated number is already taken.
const maxNumberAttempts = 3

type numberSource interface {
	Next(ctx context.Context) (string, error)
}

type ticketWriter interface {
	CreateTicket(ctx context.Context, in repository.NewTicket) (*models.Ticket, *models.TicketComment, error)
	AppendReply(ctx context.Context, t *models.Ticket, in repository.Reply) (*models.TicketComment, error)
}

type emailClassifier interface {
	Classify(subject, body string) classifier.Result
}

// Notifier informs staff about inbound email. Implementations swallow their
// own errors.
type Notifier interface {
	NotifyTeam(ctx context.Context, t *models.Ticket, team string)
	NotifyReply(ctx context.Context, t *models.Ticket, senderEmail, senderName string)
}

// EventPublisher forwards pipeline events to external systems. It must not block.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, t *models.Ticket, c *models.TicketComment)
}

// Observer records pipeline outcomes.
type Observer interface {
	ObserveProcessed(action string, elapsed time.Duration)
	ObserveFailure(stage string)
}

// Result describes what Process did with an email.
type Result struct {
	Action   string
	Ticket   *models.Ticket
	Comment  *models.TicketComment
	Sender   Sender
	Reopened bool
}

// Pipeline converts inbound email into tickets or ticket replies.
type Pipeline struct {
	resolver   *ThreadResolver
	classifier emailClassifier
	numbers    numberSource
	writer     ticketWriter
	notifier   Notifier
	events     EventPublisher
	observer   Observer
	logger     zerolog.Logger
	now        func() time.Time
}

// PipelineOption customizes Pipeline.
type PipelineOption func(*Pipeline)

// WithClassifier replaces the built-in keyword classifier.
func WithClassifier(c emailClassifier) PipelineOption {
	return func(p *Pipeline) {
		if c != nil {
			p.classifier = c
		}
	}
}

// WithNotifier sets the staff notifier.
func WithNotifier(n Notifier) PipelineOption {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithEventPublisher sets where ticket events are forwarded.
func WithEventPublisher(e EventPublisher) PipelineOption {
	return func(p *Pipeline) {
		if e != nil {
			p.events = e
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) PipelineOption {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger overrides the logger used for diagnostics.
func WithLogger(logger zerolog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithClock overrides time.Now for the pipeline and its resolver.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline wires the conversion pipeline.
func NewPipeline(resolver *ThreadResolver, numbers numberSource, writer ticketWriter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver:   resolver,
		classifier: classifier.Default(),
		numbers:    numbers,
		writer:     writer,
		notifier:   nopNotifier{},
		events:     nopPublisher{},
		observer:   nopObserver{},
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.resolver != nil {
		p.resolver.now = p.now
	}
	return p
}

// Validate reports the required fields missing from email, in the order
// from, subject, body.
func Validate(email models.IncomingEmail) []string {
	var missing []string
	if strings.TrimSpace(email.From) == "" {
		missing = append(missing, "from")
	}
	if strings.TrimSpace(email.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(email.Text) == "" && strings.TrimSpace(email.HTML) == "" {
		missing = append(missing, "text or html")
	}
	return missing
}

// Process runs one email through the pipeline. Ticket and comment write
// failures are returned; notification and event failures are not.
func (p *Pipeline) Process(ctx context.Context, email models.IncomingEmail) (Result, error) {
	start := p.now()

	if missing := Validate(email); len(missing) > 0 {
		p.observer.ObserveFailure(StageValidate)
		return Result{}, fmt.Errorf("%w: missing %s", ErrInvalidPayload, strings.Join(missing, ", "))
	}

	sender := ParseSender(email.From)
	body := email.Text
	if strings.TrimSpace(body) == "" {
		body = utils.HTMLToText(email.HTML)
	}

	log := p.logger.With().
		Str("sender", sender.Email).
		Str("message_id", email.MessageID).
		Logger()
	if n := len(email.Attachments); n > 0 {
		log.Info().Int("count", n).Strs("names", email.AttachmentNames()).Msg("attachments received, not stored")
	}

	var (
		res Result
		err error
	)
	if existing := p.resolver.FindExistingTicket(ctx, email.Subject, sender.Email); existing != nil {
		res, err = p.reply(ctx, log, existing, sender, email, body)
	} else {
		res, err = p.create(ctx, log, sender, email, body)
	}
	if err != nil {
		return Result{}, err
	}
	p.observer.ObserveProcessed(res.Action, p.now().Sub(start))
	return res, nil
}

func (p *Pipeline) create(ctx context.Context, log zerolog.Logger, sender Sender, email models.IncomingEmail, body string) (Result, error) {
	cls := p.classifier.Classify(email.Subject, body)

	in := repository.NewTicket{
		Subject:       email.Subject,
		Body:          body,
		CustomerEmail: sender.Email,
		CustomerName:  sender.Name,
		Category:      cls.Category,
		Priority:      cls.Priority,
		MessageID:     email.MessageID,
		ReceivedAt:    email.Timestamp,
	}

	var (
		ticket  *models.Ticket
		comment *models.TicketComment
	)
	for attempt := 1; ; attempt++ {
		number, err := p.numbers.Next(ctx)
		if err != nil {
			p.observer.ObserveFailure(StageNumber)
			return Result{}, fmt.Errorf("allocate ticket number: %w", err)
		}
		in.TicketNumber = number

		ticket, comment, err = p.writer.CreateTicket(ctx, in)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateTicketNumber) && attempt < maxNumberAttempts {
			log.Warn().Str("ticket_number", number).Int("attempt", attempt).Msg("ticket number taken, retrying")
			continue
		}
		p.observer.ObserveFailure(StageWrite)
		return Result{}, err
	}

	log.Info().
		Int64("ticket_id", ticket.ID).
		Str("ticket_number", ticket.TicketNumber).
		Str("category", string(ticket.Category)).
		Str("priority", string(ticket.Priority)).
		Str("team", ticket.AssignedTeam).
		Msg("ticket created from email")

	p.notifier.NotifyTeam(ctx, ticket, ticket.AssignedTeam)
	p.events.Publish(ctx, EventTicketCreated, ticket, comment)

	return Result{Action: ActionTicketCreated, Ticket: ticket, Comment: comment, Sender: sender}, nil
}

func (p *Pipeline) reply(ctx context.Context, log zerolog.Logger, t *models.Ticket, sender Sender, email models.IncomingEmail, body string) (Result, error) {
	reopened := t.ReopensOnReply()
	comment, err := p.writer.AppendReply(ctx, t, repository.Reply{
		Body:          body,
		CustomerEmail: sender.Email,
		CustomerName:  sender.Name,
		MessageID:     email.MessageID,
		ReceivedAt:    email.Timestamp,
	})
	if err != nil {
		p.observer.ObserveFailure(StageWrite)
		return Result{}, err
	}

	log.Info().
		Int64("ticket_id", t.ID).
		Str("ticket_number", t.TicketNumber).
		Bool("reopened", reopened).
		Msg("reply added to ticket")

	p.notifier.NotifyReply(ctx, t, sender.Email, sender.Name)
	if reopened {
		p.events.Publish(ctx, EventTicketReopened, t, comment)
	}
	p.events.Publish(ctx, EventArticleAdded, t, comment)

	return Result{Action: ActionReplyAdded, Ticket: t, Comment: comment, Sender: sender, Reopened: reopened}, nil
}

type nopNotifier struct{}

func (nopNotifier) NotifyTeam(context.Context, *models.Ticket, string)           {}
func (nopNotifier) NotifyReply(context.Context, *models.Ticket, string, string) {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, *models.Ticket, *models.TicketComment) {}

type nopObserver struct{}

func (nopObserver) ObserveProcessed(string, time.Duration) {}
func (nopObserver) ObserveFailure(string)                  {}
