package postmaster

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/connector"
	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

// Processor runs a decoded email through ticket conversion.
type Processor interface {
	Process(ctx context.Context, email models.IncomingEmail) (Result, error)
}

// MessageParser decodes raw RFC 5322 bytes.
type MessageParser interface {
	Parse(raw []byte) (models.IncomingEmail, error)
}

// Service adapts fetched mailbox messages to a Processor. It implements
// connector.Handler.
type Service struct {
	Parser  MessageParser
	Handler Processor
	Logger  zerolog.Logger
	// Observer counts messages rejected before they reach Handler. Optional.
	Observer Observer
}

// Handle implements connector.Handler. A returned error keeps the message
// in the mailbox for the next poll. Messages that can never be converted,
// undecodable MIME or an invalid payload, are logged and acknowledged.
func (s Service) Handle(ctx context.Context, msg *connector.FetchedMessage) error {
	email, err := s.Parser.Parse(msg.Raw)
	if err != nil {
		if s.Observer != nil {
			s.Observer.ObserveFailure(StageParse)
		}
		s.reject(msg, err)
		return nil
	}
	if email.Timestamp.IsZero() {
		email.Timestamp = msg.ReceivedAt
	}
	res, err := s.Handler.Process(ctx, email)
	if errors.Is(err, ErrInvalidPayload) {
		s.reject(msg, err)
		return nil
	}
	if err != nil {
		return err
	}
	s.Logger.Debug().
		Str("mailbox", msg.AccountSnapshot().Name).
		Str("uid", msg.UID).
		Str("action", res.Action).
		Int64("ticket_id", res.Ticket.ID).
		Msg("mailbox message processed")
	return nil
}

func (s Service) reject(msg *connector.FetchedMessage, err error) {
	s.Logger.Error().Err(err).
		Str("mailbox", msg.AccountSnapshot().Name).
		Str("uid", msg.UID).
		Str("message_id", msg.RemoteID).
		Msg("mailbox message rejected")
}
