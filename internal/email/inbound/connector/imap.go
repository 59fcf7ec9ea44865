package connector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"
)

const defaultDialTimeout = 5 * time.Second

type imapClient interface {
	Login(username, password string) commandWaiter
	Logout() commandWaiter
	Close() error
	Select(mailbox string, options *imap.SelectOptions) selectWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter
	Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchWaiter
	UIDExpunge(uids imap.UIDSet) expungeWaiter
}

type commandWaiter interface{ Wait() error }
type selectWaiter interface {
	Wait() (*imap.SelectData, error)
}
type searchWaiter interface {
	Wait() (*imap.SearchData, error)
}
type fetchWaiter interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
	Close() error
}
type expungeWaiter interface{ Close() error }

// IMAPFetcher drains unseen messages from IMAP/IMAPS mailboxes.
type IMAPFetcher struct {
	dialTimeout time.Duration
	now         func() time.Time
	logger      zerolog.Logger
	newClient   func(Account) (imapClient, error)
}

// IMAPFetcherOption customizes fetcher behavior.
type IMAPFetcherOption func(*IMAPFetcher)

// NewIMAPFetcher returns an IMAP connector.
func NewIMAPFetcher(opts ...IMAPFetcherOption) *IMAPFetcher {
	f := &IMAPFetcher{
		dialTimeout: defaultDialTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      zerolog.Nop(),
	}
	f.newClient = f.defaultClientFactory
	for _, opt := range opts {
		opt(f)
	}
	if f.newClient == nil {
		f.newClient = f.defaultClientFactory
	}
	return f
}

// WithIMAPLogger overrides the logger used for connector diagnostics.
func WithIMAPLogger(logger zerolog.Logger) IMAPFetcherOption {
	return func(f *IMAPFetcher) { f.logger = logger }
}

// WithIMAPDialTimeout sets the dial timeout used when an account has none.
func WithIMAPDialTimeout(timeout time.Duration) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		if timeout > 0 {
			f.dialTimeout = timeout
		}
	}
}

func withIMAPClientFactory(factory func(Account) (imapClient, error)) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		f.newClient = factory
	}
}

// WithIMAPClock overrides the wall clock, primarily for tests.
func WithIMAPClock(now func() time.Time) IMAPFetcherOption {
	return func(f *IMAPFetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// Name returns the connector identifier.
func (f *IMAPFetcher) Name() string {
	return "imap"
}

// Fetch hands every unseen message in the account's folder to handler.
// Handled messages are deleted, or flagged \Seen when the account keeps
// mail. Messages the handler rejects stay unseen and are retried on the
// next poll; their errors are joined into the return value.
func (f *IMAPFetcher) Fetch(ctx context.Context, account Account, handler Handler) error {
	if handler == nil {
		return errors.New("imap fetcher requires a handler")
	}
	if err := validateIMAPAccount(account); err != nil {
		return err
	}

	client, err := f.newClient(account)
	if err != nil {
		return fmt.Errorf("imap connect: %w", err)
	}
	defer f.safeClose(client)

	if err := client.Login(account.Username, account.Password).Wait(); err != nil {
		return fmt.Errorf("imap auth: %w", err)
	}

	mailbox := account.Folder
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("imap select %s: %w", mailbox, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}, nil).Wait()
	if err != nil {
		return fmt.Errorf("imap search: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return client.Logout().Wait()
	}

	fetchOpts := &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{{Peek: true}},
	}
	fetchBuffers, err := client.Fetch(imap.UIDSetNum(uids...), fetchOpts).Collect()
	if err != nil {
		return fmt.Errorf("imap fetch: %w", err)
	}

	var (
		handled []imap.UID
		failed  []error
	)
	for _, buf := range fetchBuffers {
		if ctx.Err() != nil {
			break
		}
		body := buf.FindBodySection(&imap.FetchItemBodySection{})
		if body == nil {
			continue
		}
		received := buf.InternalDate
		if received.IsZero() {
			received = f.now()
		}
		uidStr := fmt.Sprintf("%d", buf.UID)
		msg := &FetchedMessage{
			Connector:  f.Name(),
			UID:        uidStr,
			RemoteID:   buildRemoteID(account, uidStr),
			ReceivedAt: received,
			SizeBytes:  int64(len(body)),
			Raw:        append([]byte(nil), body...),
			Metadata: map[string]string{
				"imap_uid":    uidStr,
				"imap_folder": mailbox,
			},
		}
		msg.WithAccount(account)
		if err := handler.Handle(ctx, msg); err != nil {
			f.logger.Warn().Err(err).Str("mailbox", account.Name).Str("uid", uidStr).Msg("message left for retry")
			failed = append(failed, fmt.Errorf("message %s: %w", uidStr, err))
			continue
		}
		handled = append(handled, buf.UID)
	}

	if len(handled) > 0 {
		if err := f.markHandled(client, account, handled); err != nil {
			return err
		}
	}

	if err := client.Logout().Wait(); err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.Join(failed...)
}

func (f *IMAPFetcher) markHandled(client imapClient, account Account, uids []imap.UID) error {
	set := imap.UIDSetNum(uids...)
	if !account.DeleteAfterFetch {
		seen := &imap.StoreFlags{Op: imap.StoreFlagsAdd, Silent: true, Flags: []imap.Flag{imap.FlagSeen}}
		if err := client.Store(set, seen, nil).Close(); err != nil {
			return fmt.Errorf("imap store seen: %w", err)
		}
		return nil
	}
	deleted := &imap.StoreFlags{Op: imap.StoreFlagsAdd, Silent: true, Flags: []imap.Flag{imap.FlagDeleted}}
	if err := client.Store(set, deleted, nil).Close(); err != nil {
		return fmt.Errorf("imap store delete: %w", err)
	}
	if err := client.UIDExpunge(set).Close(); err != nil {
		return fmt.Errorf("imap expunge: %w", err)
	}
	return nil
}

func (f *IMAPFetcher) safeClose(client imapClient) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		f.logger.Debug().Err(err).Msg("imap close")
	}
}

func (f *IMAPFetcher) defaultClientFactory(account Account) (imapClient, error) {
	if account.Host == "" {
		return nil, errors.New("imap account missing host")
	}
	port := account.Port
	if port == 0 {
		if useIMAPTLS(account.Type) {
			port = 993
		} else {
			port = 143
		}
	}
	timeout := account.DialTimeout
	if timeout <= 0 {
		timeout = f.dialTimeout
	}
	opts := &imapclient.Options{Dialer: &net.Dialer{Timeout: timeout}}
	addr := net.JoinHostPort(account.Host, fmt.Sprintf("%d", port))
	var client *imapclient.Client
	var err error
	if useIMAPTLS(account.Type) {
		client, err = imapclient.DialTLS(addr, opts)
	} else {
		client, err = imapclient.DialInsecure(addr, opts)
	}
	if err != nil {
		return nil, err
	}
	return &imapClientWrapper{Client: client}, nil
}

type imapClientWrapper struct{ *imapclient.Client }

func (w *imapClientWrapper) Login(username, password string) commandWaiter {
	return w.Client.Login(username, password)
}
func (w *imapClientWrapper) Logout() commandWaiter { return w.Client.Logout() }
func (w *imapClientWrapper) Select(mailbox string, options *imap.SelectOptions) selectWaiter {
	return w.Client.Select(mailbox, options)
}
func (w *imapClientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter {
	return w.Client.UIDSearch(criteria, options)
}
func (w *imapClientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	return w.Client.Fetch(numSet, options)
}
func (w *imapClientWrapper) Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchWaiter {
	return w.Client.Store(numSet, store, options)
}
func (w *imapClientWrapper) UIDExpunge(uids imap.UIDSet) expungeWaiter {
	return w.Client.UIDExpunge(uids)
}

func validateIMAPAccount(account Account) error {
	if account.Username == "" {
		return errors.New("imap account missing username")
	}
	if account.Password == "" {
		return errors.New("imap account missing password")
	}
	if !supportsIMAP(account.Type) {
		return fmt.Errorf("account type %s not supported by IMAP connector", account.Type)
	}
	return nil
}

func supportsIMAP(t string) bool {
	switch strings.ToLower(t) {
	case "imap", "imaps", "imap_tls", "imaps_tls", "imaptls":
		return true
	default:
		return false
	}
}

func useIMAPTLS(t string) bool {
	switch strings.ToLower(t) {
	case "imaps", "imap_tls", "imaps_tls", "imaptls":
		return true
	default:
		return false
	}
}
