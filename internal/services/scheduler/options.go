package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/connector"
)

// DefaultSchedule applies to mailboxes without a schedule.
const DefaultSchedule = "@every 1m"

type options struct {
	Logger   zerolog.Logger
	Factory  connector.Factory
	Cron     *cron.Cron
	Parser   cron.Parser
	Location *time.Location
	Observer PollObserver
	Timeout  time.Duration
}

// Option applies configuration to the scheduler service.
type Option func(*options)

func defaultOptions() options {
	return options{Logger: zerolog.Nop(), Location: time.UTC, Timeout: 5 * time.Minute}
}

// WithLogger injects the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithFactory replaces the connector factory.
func WithFactory(f connector.Factory) Option {
	return func(o *options) {
		o.Factory = f
	}
}

// WithCron supplies a preconfigured cron scheduler instance.
func WithCron(c *cron.Cron) Option {
	return func(o *options) {
		o.Cron = c
	}
}

// WithCronParser allows replacing the cron expression parser.
func WithCronParser(p cron.Parser) Option {
	return func(o *options) {
		o.Parser = p
	}
}

// WithLocation sets the scheduler timezone location.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.Location = loc
	}
}

// WithObserver records poll outcomes.
func WithObserver(obs PollObserver) Option {
	return func(o *options) {
		o.Observer = obs
	}
}

// WithPollTimeout bounds a single mailbox poll.
func WithPollTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.Timeout = d
		}
	}
}
