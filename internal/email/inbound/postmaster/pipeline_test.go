package postmaster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
	"github.com/TIPA-VN/uxone-sub003/internal/repository"
	"github.com/TIPA-VN/uxone-sub003/internal/ticketnumber"
)

var pipelineNow = time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	mu      sync.Mutex
	teams   []string
	replies []string
}

func (n *recordingNotifier) NotifyTeam(_ context.Context, t *models.Ticket, team string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.teams = append(n.teams, team+":"+t.TicketNumber)
}

func (n *recordingNotifier) NotifyReply(_ context.Context, t *models.Ticket, email, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replies = append(n.replies, email+":"+t.TicketNumber)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ *models.Ticket, _ *models.TicketComment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

type recordingObserver struct {
	processed []string
	failures  []string
}

func (o *recordingObserver) ObserveProcessed(action string, _ time.Duration) {
	o.processed = append(o.processed, action)
}
func (o *recordingObserver) ObserveFailure(stage string) { o.failures = append(o.failures, stage) }

type failingFinder struct{}

func (failingFinder) FindLatest(context.Context, repository.TicketQuery) (*models.Ticket, error) {
	return nil, errors.New("connection refused")
}

// stuckNumbers always hands out the same number.
type stuckNumbers struct{ calls int }

func (s *stuckNumbers) Next(context.Context) (string, error) {
	s.calls++
	return "TIPA-HD-250115-001", nil
}

type harness struct {
	tickets  *repository.MemoryTicketRepository
	users    *repository.MemoryUserRepository
	notifier *recordingNotifier
	events   *recordingPublisher
	observer *recordingObserver
	pipeline *Pipeline
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tickets: repository.NewMemoryTicketRepository(),
		users: repository.NewMemoryUserRepository(
			models.User{ID: 1, Username: "system", Role: models.RoleAdmin, Department: "IS", IsActive: true},
		),
		notifier: &recordingNotifier{},
		events:   &recordingPublisher{},
		observer: &recordingObserver{},
		now:      pipelineNow,
	}
	clock := func() time.Time { return h.now }
	numbers := ticketnumber.New(ticketnumber.NewMemoryStore(),
		ticketnumber.WithClock(clock),
		ticketnumber.WithSeed(ticketnumber.SeedFromMaxNumber(h.tickets.MaxTicketNumber)))
	writer := repository.NewTicketWriter(h.tickets, h.users, repository.WithWriterClock(clock))
	h.pipeline = NewPipeline(
		NewThreadResolver(h.tickets, DefaultThreadWindow, zerolog.Nop()),
		numbers, writer,
		WithNotifier(h.notifier),
		WithEventPublisher(h.events),
		WithObserver(h.observer),
		WithClock(clock),
	)
	return h
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		email models.IncomingEmail
		want  []string
	}{
		{"complete", models.IncomingEmail{From: "a@x.com", Subject: "s", Text: "b"}, nil},
		{"html only", models.IncomingEmail{From: "a@x.com", Subject: "s", HTML: "<p>b</p>"}, nil},
		{"missing subject", models.IncomingEmail{From: "a@x.com", Text: "b"}, []string{"subject"}},
		{"blank everything", models.IncomingEmail{From: " ", Subject: "\t"}, []string{"from", "subject", "text or html"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.email))
		})
	}
}

func TestPipeline_CreatesUrgentBugTicket(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline.Process(context.Background(), models.IncomingEmail{
		From:    "John Doe <john@acme.com>",
		Subject: "Login page crash",
		Text:    "URGENT: the login page shows an error",
	})
	require.NoError(t, err)

	assert.Equal(t, ActionTicketCreated, res.Action)
	assert.Equal(t, "TIPA-HD-250115-001", res.Ticket.TicketNumber)
	assert.Equal(t, models.CategoryBug, res.Ticket.Category)
	assert.Equal(t, models.PriorityUrgent, res.Ticket.Priority)
	assert.Equal(t, models.StatusOpen, res.Ticket.Status)
	assert.Equal(t, repository.TeamIS, res.Ticket.AssignedTeam)
	assert.Equal(t, "john@acme.com", res.Ticket.CustomerEmail)
	assert.Equal(t, "John Doe", res.Ticket.CustomerName)
	assert.Equal(t, Sender{Email: "john@acme.com", Name: "John Doe"}, res.Sender)

	comments := h.tickets.Comments(res.Ticket.ID)
	require.Len(t, comments, 1)
	assert.True(t, comments[0].IsInternal)
	assert.Equal(t, models.AuthorSystem, comments[0].AuthorType)

	assert.Equal(t, []string{"IS:TIPA-HD-250115-001"}, h.notifier.teams)
	assert.Equal(t, []string{EventTicketCreated}, h.events.events)
	assert.Equal(t, []string{ActionTicketCreated}, h.observer.processed)
}

func TestPipeline_ReplyWithinWindowThreads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.pipeline.Process(ctx, models.IncomingEmail{
		From: "john@acme.com", Subject: "Login page crash", Text: "it crashes",
	})
	require.NoError(t, err)

	h.now = pipelineNow.Add(2 * 24 * time.Hour)
	reply, err := h.pipeline.Process(ctx, models.IncomingEmail{
		From: "john@acme.com", Subject: "RE: Login page crash", Text: "still broken",
	})
	require.NoError(t, err)

	assert.Equal(t, ActionReplyAdded, reply.Action)
	assert.Equal(t, first.Ticket.ID, reply.Ticket.ID)
	assert.False(t, reply.Reopened)
	assert.Len(t, h.tickets.Tickets(), 1)

	comments := h.tickets.Comments(first.Ticket.ID)
	require.Len(t, comments, 2)
	assert.Equal(t, models.AuthorCustomer, comments[1].AuthorType)
	assert.False(t, comments[1].IsInternal)
	assert.Contains(t, comments[1].Content, "still broken")

	assert.Equal(t, []string{"john@acme.com:" + first.Ticket.TicketNumber}, h.notifier.replies)
	assert.Equal(t, []string{EventTicketCreated, EventArticleAdded}, h.events.events)
}

func TestPipeline_ThreadWindow(t *testing.T) {
	tests := []struct {
		name      string
		age       time.Duration
		wantReply bool
	}{
		{"ten days old", 10 * 24 * time.Hour, true},
		{"forty days old", 40 * 24 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.tickets.Seed(models.Ticket{
				TicketNumber:  "TIPA-HD-241201-004",
				Title:         "VPN drops",
				Status:        models.StatusOpen,
				CustomerEmail: "kim@acme.com",
				CreatedAt:     pipelineNow.Add(-tt.age),
			})

			res, err := h.pipeline.Process(context.Background(), models.IncomingEmail{
				From: "kim@acme.com", Subject: "Re: VPN drops", Text: "again today",
			})
			require.NoError(t, err)
			if tt.wantReply {
				assert.Equal(t, ActionReplyAdded, res.Action)
				assert.Equal(t, "TIPA-HD-241201-004", res.Ticket.TicketNumber)
			} else {
				assert.Equal(t, ActionTicketCreated, res.Action)
				assert.Equal(t, "TIPA-HD-250115-001", res.Ticket.TicketNumber)
			}
		})
	}
}

func TestPipeline_ReplyReopensClosedTicket(t *testing.T) {
	h := newHarness(t)
	seeded := h.tickets.Seed(models.Ticket{
		TicketNumber:  "TIPA-HD-250110-002",
		Title:         "Printer offline",
		Status:        models.StatusClosed,
		CustomerEmail: "ann@acme.com",
		AssignedTeam:  repository.TeamCS,
		CreatedAt:     pipelineNow.Add(-5 * 24 * time.Hour),
	})

	res, err := h.pipeline.Process(context.Background(), models.IncomingEmail{
		From: "Ann <ann@acme.com>", Subject: "Fwd: Printer offline", Text: "it is back off",
	})
	require.NoError(t, err)
	assert.True(t, res.Reopened)
	assert.Equal(t, models.StatusOpen, res.Ticket.Status)

	stored, err := h.tickets.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, stored.Status)
	assert.Equal(t, pipelineNow, stored.UpdatedAt)
	assert.Equal(t, []string{EventTicketReopened, EventArticleAdded}, h.events.events)
}

func TestPipeline_DifferentSenderDoesNotThread(t *testing.T) {
	h := newHarness(t)
	h.tickets.Seed(models.Ticket{
		TicketNumber: "TIPA-HD-250114-001", Title: "Need help", Status: models.StatusOpen,
		CustomerEmail: "one@acme.com", CreatedAt: pipelineNow.Add(-time.Hour),
	})

	res, err := h.pipeline.Process(context.Background(), models.IncomingEmail{
		From: "two@acme.com", Subject: "Re: Need help", Text: "me too",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionTicketCreated, res.Action)
}

func TestPipeline_FeatureRequestDefaultsToMedium(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline.Process(context.Background(), models.IncomingEmail{
		From: "pm@acme.com", Subject: "Export to CSV", Text: "Please consider this feature for reports",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryFeatureRequest, res.Ticket.Category)
	assert.Equal(t, models.PriorityMedium, res.Ticket.Priority)
	assert.Equal(t, repository.TeamIS, res.Ticket.AssignedTeam)
}

func TestPipeline_SupportGoesToCS(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline.Process(context.Background(), models.IncomingEmail{
		From: "x@acme.com", Subject: "Invoice copy", Text: "Could you send last month's invoice",
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategorySupport, res.Ticket.Category)
	assert.Equal(t, repository.TeamCS, res.Ticket.AssignedTeam)
	assert.Equal(t, []string{"CS:" + res.Ticket.TicketNumber}, h.notifier.teams)
}

func TestPipeline_InvalidPayloadHasNoSideEffects(t *testing.T) {
	h := newHarness(t)

	_, err := h.pipeline.Process(context.Background(), models.IncomingEmail{From: "a@acme.com", Text: "no subject"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Contains(t, err.Error(), "subject")

	assert.Empty(t, h.tickets.Tickets())
	assert.Empty(t, h.notifier.teams)
	assert.Empty(t, h.events.events)
	assert.Equal(t, []string{StageValidate}, h.observer.failures)

	// The counter was not consumed.
	res, err := h.pipeline.Process(context.Background(), models.IncomingEmail{From: "a@acme.com", Subject: "ok", Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, "TIPA-HD-250115-001", res.Ticket.TicketNumber)
}

func TestPipeline_SequentialNumbersSameDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.pipeline.Process(ctx, models.IncomingEmail{From: "a@acme.com", Subject: "First", Text: "one"})
	require.NoError(t, err)
	b, err := h.pipeline.Process(ctx, models.IncomingEmail{From: "b@acme.com", Subject: "Second", Text: "two"})
	require.NoError(t, err)

	assert.Equal(t, "TIPA-HD-250115-001", a.Ticket.TicketNumber)
	assert.Equal(t, "TIPA-HD-250115-002", b.Ticket.TicketNumber)

	h.now = pipelineNow.Add(24 * time.Hour)
	c, err := h.pipeline.Process(ctx, models.IncomingEmail{From: "c@acme.com", Subject: "Third", Text: "three"})
	require.NoError(t, err)
	assert.Equal(t, "TIPA-HD-250116-001", c.Ticket.TicketNumber)
}

func TestPipeline_SeedsFromExistingTickets(t *testing.T) {
	h := newHarness(t)
	h.tickets.Seed(models.Ticket{TicketNumber: "TIPA-HD-250115-007", Title: "old", CustomerEmail: "z@acme.com", CreatedAt: pipelineNow.Add(-time.Hour)})

	res, err := h.pipeline.Process(context.Background(), models.IncomingEmail{From: "a@acme.com", Subject: "Fresh", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "TIPA-HD-250115-008", res.Ticket.TicketNumber)
}

func TestPipeline_LookupFailureStillCreates(t *testing.T) {
	h := newHarness(t)
	h.pipeline.resolver = NewThreadResolver(failingFinder{}, DefaultThreadWindow, zerolog.Nop())

	res, err := h.pipeline.Process(context.Background(), models.IncomingEmail{
		From: "a@acme.com", Subject: "Re: anything", Text: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionTicketCreated, res.Action)
	assert.Len(t, h.tickets.Tickets(), 1)
}

func TestPipeline_NoSystemUser(t *testing.T) {
	h := newHarness(t)
	users := repository.NewMemoryUserRepository(models.User{ID: 5, Role: models.RoleUser, IsActive: true})
	h.pipeline.writer = repository.NewTicketWriter(h.tickets, users)

	_, err := h.pipeline.Process(context.Background(), models.IncomingEmail{From: "a@acme.com", Subject: "s", Text: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSystemUser)
	assert.Empty(t, h.tickets.Tickets())
	assert.Empty(t, h.notifier.teams)
	assert.Equal(t, []string{StageWrite}, h.observer.failures)
}

func TestPipeline_WriteFailureSkipsNotifications(t *testing.T) {
	h := newHarness(t)
	h.tickets.FailWrites = errors.New("database is locked")

	_, err := h.pipeline.Process(context.Background(), models.IncomingEmail{From: "a@acme.com", Subject: "s", Text: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Empty(t, h.notifier.teams)
	assert.Empty(t, h.events.events)
}

func TestPipeline_RetriesDuplicateNumber(t *testing.T) {
	h := newHarness(t)
	h.tickets.Seed(models.Ticket{TicketNumber: "TIPA-HD-250115-001", Title: "taken", CustomerEmail: "z@acme.com", CreatedAt: pipelineNow})
	numbers := &stuckNumbers{}
	h.pipeline.numbers = numbers

	_, err := h.pipeline.Process(context.Background(), models.IncomingEmail{From: "a@acme.com", Subject: "s", Text: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicateTicketNumber)
	assert.Equal(t, maxNumberAttempts, numbers.calls)
}

func TestPipeline_HTMLOnlyBody(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline.Process(context.Background(), models.IncomingEmail{
		From:    "a@acme.com",
		Subject: "Formatted",
		HTML:    "<p>Hello<br>the <b>server</b> is slow</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello\nthe server is slow", res.Ticket.Description)
	assert.Equal(t, models.CategoryTechnicalIssue, res.Ticket.Category)
}
