package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/TIPA-VN/uxone-sub003/internal/config"
	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/connector"
)

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// PollObserver counts mailbox polls.
type PollObserver interface {
	ObservePoll(mailbox, result string)
}

// MailboxStatus is the outcome of the last poll of one mailbox.
type MailboxStatus struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	LastRunAt  *time.Time `json:"lastRunAt,omitempty"`
	LastStatus string     `json:"lastStatus,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	Duration   string     `json:"duration,omitempty"`
	NextRunAt  *time.Time `json:"nextRunAt,omitempty"`
}

type mailboxJob struct {
	account  connector.Account
	schedule string
	entry    cron.EntryID
	status   MailboxStatus
}

// Service polls configured mailboxes on cron schedules and hands every
// fetched message to handler.
type Service struct {
	handler  connector.Handler
	factory  connector.Factory
	cron     *cron.Cron
	parser   cron.Parser
	logger   zerolog.Logger
	location *time.Location
	observer PollObserver
	timeout  time.Duration

	mu        sync.RWMutex
	jobs      map[string]*mailboxJob
	rootCtx   context.Context
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewService builds a scheduler for the enabled mailboxes. Mailbox names
// must be unique.
func NewService(mailboxes []config.MailboxConfig, handler connector.Handler, opts ...Option) (*Service, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Factory == nil {
		o.Factory = connector.DefaultFactory(o.Logger)
	}
	var zeroParser cron.Parser
	if o.Parser == zeroParser {
		o.Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	}
	if o.Cron == nil {
		o.Cron = cron.New(
			cron.WithLocation(o.Location),
			cron.WithParser(o.Parser),
			cron.WithChain(cron.Recover(cronLogger{o.Logger}), cron.SkipIfStillRunning(cronLogger{o.Logger})),
		)
	}

	s := &Service{
		handler:  handler,
		factory:  o.Factory,
		cron:     o.Cron,
		parser:   o.Parser,
		logger:   o.Logger,
		location: o.Location,
		observer: o.Observer,
		timeout:  o.Timeout,
		jobs:     make(map[string]*mailboxJob),
	}

	for _, mb := range mailboxes {
		if !mb.Enabled {
			continue
		}
		if err := s.addMailbox(mb); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) addMailbox(mb config.MailboxConfig) error {
	if mb.Name == "" {
		return errors.New("mailbox name is required")
	}
	if _, dup := s.jobs[mb.Name]; dup {
		return fmt.Errorf("duplicate mailbox %q", mb.Name)
	}
	account := connector.AccountFromConfig(mb)
	if _, err := s.factory.FetcherFor(account); err != nil {
		return fmt.Errorf("mailbox %s: %w", mb.Name, err)
	}
	expr := mb.Schedule
	if expr == "" {
		expr = DefaultSchedule
	}
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("mailbox %s: schedule %q: %w", mb.Name, expr, err)
	}

	name := mb.Name
	job := &mailboxJob{account: account, schedule: expr, status: MailboxStatus{Name: name, Schedule: expr}}
	job.entry = s.cron.Schedule(schedule, cron.FuncJob(func() {
		ctx := s.rootCtx
		if ctx == nil {
			ctx = context.Background()
		}
		_ = s.Poll(ctx, name)
	}))
	s.jobs[name] = job
	return nil
}

// Mailboxes returns the names of the scheduled mailboxes in sorted order.
func (s *Service) Mailboxes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run starts the cron loop and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.rootCtx = ctx
		s.cron.Start()
		s.logger.Info().Strs("mailboxes", s.Mailboxes()).Msg("mailbox scheduler started")
	})
	<-ctx.Done()
	s.stop()
	return nil
}

func (s *Service) stop() {
	s.stopOnce.Do(func() {
		done := s.cron.Stop()
		select {
		case <-done.Done():
		case <-time.After(s.timeout):
			s.logger.Warn().Msg("timed out waiting for mailbox polls to finish")
		}
	})
}

// PollAll polls every mailbox once, sequentially, and joins their errors.
func (s *Service) PollAll(ctx context.Context) error {
	var errs []error
	for _, name := range s.Mailboxes() {
		if err := s.Poll(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Poll fetches one mailbox now.
func (s *Service) Poll(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	var account connector.Account
	if ok {
		account = job.account
	}
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown mailbox %q", name)
	}

	fetcher, err := s.factory.FetcherFor(account)
	if err != nil {
		s.finish(name, s.now(), s.now(), err)
		return err
	}

	pollCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	err = s.safeFetch(pollCtx, fetcher, account)
	s.finish(name, start, s.now(), err)
	return err
}

func (s *Service) safeFetch(ctx context.Context, fetcher connector.Fetcher, account connector.Account) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fetcher.Fetch(ctx, account, s.handler)
}

func (s *Service) finish(name string, start, end time.Time, runErr error) {
	status := statusSuccess
	if runErr != nil {
		status = statusFailed
	}
	if s.observer != nil {
		s.observer.ObservePoll(name, status)
	}

	log := s.logger.With().Str("mailbox", name).Dur("duration", end.Sub(start)).Logger()
	if runErr != nil {
		log.Error().Err(runErr).Msg("mailbox poll failed")
	} else {
		log.Debug().Msg("mailbox polled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if !ok {
		return
	}
	finished := end
	job.status.LastRunAt = &finished
	job.status.LastStatus = status
	job.status.Duration = end.Sub(start).String()
	job.status.LastError = ""
	if runErr != nil {
		job.status.LastError = runErr.Error()
	}
}

// Status reports the last outcome of each mailbox, sorted by name.
func (s *Service) Status() []MailboxStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MailboxStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		st := job.status
		if entry := s.cron.Entry(job.entry); entry.ID != 0 && !entry.Next.IsZero() {
			next := entry.Next.In(s.location)
			st.NextRunAt = &next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) now() time.Time {
	return time.Now().In(s.location)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
