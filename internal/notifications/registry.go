package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

// Event is one realtime message pushed to a subscriber.
type Event struct {
	Type         string              `json:"type"`
	Notification models.Notification `json:"notification"`
	SentAt       time.Time           `json:"sentAt"`
}

// Sink receives events for one connection. Deliver must not block and
// reports false when the event was dropped.
type Sink interface {
	Deliver(Event) bool
}

// ChanSink is a Sink backed by a buffered channel.
type ChanSink chan Event

// NewChanSink creates a sink buffering up to size events.
func NewChanSink(size int) ChanSink {
	if size <= 0 {
		size = 16
	}
	return make(ChanSink, size)
}

// Deliver implements Sink. Events are dropped when the buffer is full.
func (s ChanSink) Deliver(e Event) bool {
	select {
	case s <- e:
		return true
	default:
		return false
	}
}

// Token identifies one subscription.
type Token string

type subscription struct {
	userID int64
	sink   Sink
}

// Registry maps users to their live connections. It is owned by one server
// instance; there is no cross-instance fan-out.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int64]map[Token]Sink
	subs   map[Token]subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[int64]map[Token]Sink),
		subs:   make(map[Token]subscription),
	}
}

// Subscribe registers sink for userID. A user may hold several
// subscriptions at once.
func (r *Registry) Subscribe(userID int64, sink Sink) Token {
	tok := Token(uuid.NewString())
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[Token]Sink)
	}
	r.byUser[userID][tok] = sink
	r.subs[tok] = subscription{userID: userID, sink: sink}
	return tok
}

// Unsubscribe removes a subscription. Unknown tokens are ignored.
func (r *Registry) Unsubscribe(tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[tok]
	if !ok {
		return
	}
	delete(r.subs, tok)
	sinks := r.byUser[sub.userID]
	delete(sinks, tok)
	if len(sinks) == 0 {
		delete(r.byUser, sub.userID)
	}
}

// Publish delivers e to every subscription of userID and returns how many
// accepted it.
func (r *Registry) Publish(userID int64, e Event) int {
	r.mu.RLock()
	sinks := make([]Sink, 0, len(r.byUser[userID]))
	for _, s := range r.byUser[userID] {
		sinks = append(sinks, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range sinks {
		if s.Deliver(e) {
			delivered++
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions.
func (r *Registry) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
