package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/knadh/go-pop3"
	"github.com/rs/zerolog"
)

type pop3Connection interface {
	Auth(user, password string) error
	Quit() error
	Uidl(msgID int) ([]pop3.MessageID, error)
	RetrRaw(msgID int) (*bytes.Buffer, error)
	Dele(msgID ...int) error
}

type pop3ConnFactory func(Account) (pop3Connection, error)

// POP3Fetcher drains POP3/POP3S mailboxes.
type POP3Fetcher struct {
	dialTimeout time.Duration
	now         func() time.Time
	logger      zerolog.Logger
	newConn     pop3ConnFactory

	// POP3 has no flags; mailboxes that keep mail are deduplicated by UIDL
	// for the life of the process.
	mu   sync.Mutex
	seen map[string]map[string]struct{}
}

// POP3FetcherOption customizes fetcher behavior.
type POP3FetcherOption func(*POP3Fetcher)

// NewPOP3Fetcher returns a POP3 connector.
func NewPOP3Fetcher(opts ...POP3FetcherOption) *POP3Fetcher {
	f := &POP3Fetcher{
		dialTimeout: defaultDialTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      zerolog.Nop(),
		seen:        make(map[string]map[string]struct{}),
	}
	f.newConn = f.defaultConnFactory
	for _, opt := range opts {
		opt(f)
	}
	if f.newConn == nil {
		f.newConn = f.defaultConnFactory
	}
	return f
}

// WithPOP3Logger overrides the logger used for connector diagnostics.
func WithPOP3Logger(logger zerolog.Logger) POP3FetcherOption {
	return func(f *POP3Fetcher) { f.logger = logger }
}

// WithPOP3DialTimeout sets the dial timeout used when an account has none.
func WithPOP3DialTimeout(timeout time.Duration) POP3FetcherOption {
	return func(f *POP3Fetcher) {
		if timeout > 0 {
			f.dialTimeout = timeout
		}
	}
}

func withPOP3ConnFactory(factory pop3ConnFactory) POP3FetcherOption {
	return func(f *POP3Fetcher) {
		f.newConn = factory
	}
}

// WithPOP3Clock overrides the wall clock, primarily for tests.
func WithPOP3Clock(now func() time.Time) POP3FetcherOption {
	return func(f *POP3Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// Name returns the connector identifier.
func (f *POP3Fetcher) Name() string {
	return "pop3"
}

// Fetch hands each message in the mailbox to handler. Handled messages are
// deleted when the account says so; rejected ones stay for the next poll and
// their errors are joined into the return value.
func (f *POP3Fetcher) Fetch(ctx context.Context, account Account, handler Handler) error {
	if handler == nil {
		return errors.New("pop3 fetcher requires a handler")
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	conn, err := f.newConn(account)
	if err != nil {
		return fmt.Errorf("pop3 connect: %w", err)
	}
	defer f.safeQuit(conn)

	if err := conn.Auth(account.Username, account.Password); err != nil {
		return fmt.Errorf("pop3 auth: %w", err)
	}

	msgs, err := conn.Uidl(0)
	if err != nil {
		return fmt.Errorf("pop3 uidl: %w", err)
	}

	var failed []error
	for _, meta := range msgs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		uid := meta.UID
		if uid == "" {
			uid = strconv.Itoa(meta.ID)
		}
		if !account.DeleteAfterFetch && f.wasSeen(account, uid) {
			continue
		}

		payload, err := conn.RetrRaw(meta.ID)
		if err != nil {
			return fmt.Errorf("pop3 retr %d: %w", meta.ID, err)
		}

		raw := append([]byte(nil), payload.Bytes()...)
		msg := &FetchedMessage{
			Connector:  f.Name(),
			UID:        uid,
			RemoteID:   buildRemoteID(account, uid),
			ReceivedAt: f.now(),
			SizeBytes:  int64(len(raw)),
			Raw:        raw,
			Metadata: map[string]string{
				"uidl":    uid,
				"pop3_id": strconv.Itoa(meta.ID),
			},
		}
		if meta.Size > 0 {
			msg.Metadata["reported_size"] = strconv.Itoa(meta.Size)
		}
		msg.WithAccount(account)

		if err := handler.Handle(ctx, msg); err != nil {
			f.logger.Warn().Err(err).Str("mailbox", account.Name).Str("uid", uid).Msg("message left for retry")
			failed = append(failed, fmt.Errorf("message %s: %w", uid, err))
			continue
		}
		if !account.DeleteAfterFetch {
			f.markSeen(account, uid)
			continue
		}
		if err := conn.Dele(meta.ID); err != nil {
			return fmt.Errorf("pop3 delete %d: %w", meta.ID, err)
		}
	}

	return errors.Join(failed...)
}

func (f *POP3Fetcher) wasSeen(account Account, uid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[buildRemoteID(account, "")][uid]
	return ok
}

func (f *POP3Fetcher) markSeen(account Account, uid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := buildRemoteID(account, "")
	if f.seen[key] == nil {
		f.seen[key] = make(map[string]struct{})
	}
	f.seen[key][uid] = struct{}{}
}

func (f *POP3Fetcher) safeQuit(conn pop3Connection) {
	if conn == nil {
		return
	}
	if err := conn.Quit(); err != nil {
		f.logger.Debug().Err(err).Msg("pop3 quit")
	}
}

func (f *POP3Fetcher) defaultConnFactory(account Account) (pop3Connection, error) {
	if account.Host == "" {
		return nil, errors.New("pop3 account missing host")
	}
	port := account.Port
	if port == 0 {
		if usePOP3TLS(account.Type) {
			port = 995
		} else {
			port = 110
		}
	}
	timeout := account.DialTimeout
	if timeout <= 0 {
		timeout = f.dialTimeout
	}
	client := pop3.New(pop3.Opt{
		Host:        account.Host,
		Port:        port,
		DialTimeout: timeout,
		TLSEnabled:  usePOP3TLS(account.Type),
	})
	return client.NewConn()
}

func validateAccount(account Account) error {
	if account.Username == "" {
		return errors.New("pop3 account missing username")
	}
	if account.Password == "" {
		return errors.New("pop3 account missing password")
	}
	if !supportsPOP3(account.Type) {
		return fmt.Errorf("account type %s not supported by POP3 connector", account.Type)
	}
	return nil
}

func supportsPOP3(t string) bool {
	switch strings.ToLower(t) {
	case "pop3", "pop3s", "pop3_tls", "pop3s_tls":
		return true
	default:
		return false
	}
}

func usePOP3TLS(t string) bool {
	switch strings.ToLower(t) {
	case "pop3s", "pop3_tls", "pop3s_tls":
		return true
	default:
		return false
	}
}

func buildRemoteID(account Account, uid string) string {
	if account.Username == "" {
		return fmt.Sprintf("%s:%s", account.Host, uid)
	}
	return fmt.Sprintf("%s@%s:%s", account.Username, account.Host, uid)
}
