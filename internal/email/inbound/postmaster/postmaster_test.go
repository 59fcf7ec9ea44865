package postmaster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/connector"
	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/parser"
	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

type stubParser struct {
	email models.IncomingEmail
	err   error
}

func (p stubParser) Parse([]byte) (models.IncomingEmail, error) { return p.email, p.err }

type stubProcessor struct {
	got models.IncomingEmail
	err error
}

func (p *stubProcessor) Process(_ context.Context, email models.IncomingEmail) (Result, error) {
	p.got = email
	if p.err != nil {
		return Result{}, p.err
	}
	return Result{Action: ActionTicketCreated, Ticket: &models.Ticket{ID: 3}}, nil
}

func fetched() *connector.FetchedMessage {
	msg := &connector.FetchedMessage{
		UID:        "17",
		ReceivedAt: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
		Raw:        []byte("raw"),
	}
	msg.WithAccount(connector.Account{Name: "support", Type: "imap"})
	return msg
}

func TestServiceHandle_FallsBackToReceivedAt(t *testing.T) {
	proc := &stubProcessor{}
	svc := Service{
		Parser:  stubParser{email: models.IncomingEmail{From: "a@x.com", Subject: "s", Text: "b"}},
		Handler: proc,
		Logger:  zerolog.Nop(),
	}

	require.NoError(t, svc.Handle(context.Background(), fetched()))
	assert.Equal(t, time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), proc.got.Timestamp)
}

func TestServiceHandle_KeepsHeaderDate(t *testing.T) {
	sent := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	proc := &stubProcessor{}
	svc := Service{
		Parser:  stubParser{email: models.IncomingEmail{From: "a@x.com", Subject: "s", Text: "b", Timestamp: sent}},
		Handler: proc,
		Logger:  zerolog.Nop(),
	}

	require.NoError(t, svc.Handle(context.Background(), fetched()))
	assert.Equal(t, sent, proc.got.Timestamp)
}

type failureCounter struct{ stages []string }

func (c *failureCounter) ObserveProcessed(string, time.Duration) {}
func (c *failureCounter) ObserveFailure(stage string)            { c.stages = append(c.stages, stage) }

func TestServiceHandle_ParseErrorAcknowledges(t *testing.T) {
	proc := &stubProcessor{}
	obs := &failureCounter{}
	svc := Service{Parser: stubParser{err: errNotMIME}, Handler: proc, Logger: zerolog.Nop(), Observer: obs}

	require.NoError(t, svc.Handle(context.Background(), fetched()))
	assert.Empty(t, proc.got.From)
	assert.Equal(t, []string{StageParse}, obs.stages)
}

func TestServiceHandle_InvalidPayloadAcknowledges(t *testing.T) {
	raw := "From: An <an@x.vn>\r\nTo: helpdesk@example.com\r\nContent-Type: text/plain\r\n\r\nno subject here\r\n"
	h := newHarness(t)
	svc := Service{Parser: parser.New(0), Handler: h.pipeline, Logger: zerolog.Nop()}
	msg := fetched()
	msg.Raw = []byte(raw)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Handle(context.Background(), msg))
	}
	assert.Empty(t, h.tickets.Tickets())
	assert.Equal(t, []string{StageValidate, StageValidate, StageValidate}, h.observer.failures)
}

func TestServiceHandle_ProcessorError(t *testing.T) {
	boom := errors.New("insert failed")
	svc := Service{
		Parser:  stubParser{email: models.IncomingEmail{From: "a@x.com"}},
		Handler: &stubProcessor{err: boom},
		Logger:  zerolog.Nop(),
	}

	assert.ErrorIs(t, svc.Handle(context.Background(), fetched()), boom)
}

var errNotMIME = errors.New("not a MIME message")
