package connector

import (
	"context"
	"time"

	"github.com/TIPA-VN/uxone-sub003/internal/config"
)

// Account is one polled mailbox.
type Account struct {
	Name             string
	Type             string // pop3, pop3s, imap, imaps
	Host             string
	Port             int
	Username         string
	Password         string
	Folder           string
	DeleteAfterFetch bool
	DialTimeout      time.Duration
}

// AccountFromConfig maps a configured mailbox to an Account.
func AccountFromConfig(mc config.MailboxConfig) Account {
	return Account{
		Name:             mc.Name,
		Type:             mc.Type,
		Host:             mc.Host,
		Port:             mc.Port,
		Username:         mc.Username,
		Password:         mc.Password,
		Folder:           mc.Folder,
		DeleteAfterFetch: mc.DeleteAfterFetch,
		DialTimeout:      mc.DialTimeout,
	}
}

// FetchedMessage wraps the on-wire RFC822 payload plus derived metadata.
type FetchedMessage struct {
	Connector  string
	UID        string
	RemoteID   string
	ReceivedAt time.Time
	SizeBytes  int64
	Raw        []byte
	Metadata   map[string]string
	account    Account
}

// AccountSnapshot returns the account the message was fetched from, without
// its password.
func (m FetchedMessage) AccountSnapshot() Account {
	return m.account
}

// WithAccount captures the account metadata on the message.
func (m *FetchedMessage) WithAccount(acc Account) {
	acc.Password = ""
	m.account = acc
}

// Handler receives fully fetched messages. A message whose Handle fails is
// left on the server.
type Handler interface {
	Handle(ctx context.Context, msg *FetchedMessage) error
}

// Fetcher implementations (POP3, IMAP) stream messages to a handler.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, account Account, handler Handler) error
}

// Factory resolves the correct connector implementation for a mailbox.
type Factory interface {
	FetcherFor(account Account) (Fetcher, error)
}
