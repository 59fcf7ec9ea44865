package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TIPA-VN/uxone-sub003/internal/config"
	"github.com/TIPA-VN/uxone-sub003/internal/models"
	"github.com/TIPA-VN/uxone-sub003/internal/utils"
	"github.com/TIPA-VN/uxone-sub003/internal/version"
)

// ErrStopped is returned by Stop when called twice.
var ErrStopped = errors.New("webhook forwarder stopped")

// Observer counts delivery outcomes.
type Observer interface {
	ObserveWebhookDelivery(result string)
}

type delivery struct {
	id       string
	event    string
	endpoint Endpoint
	body     []byte
}

// Forwarder posts pipeline events to configured endpoints. Publish only
// enqueues; a fixed pool of workers performs the HTTP calls.
type Forwarder struct {
	endpoints  []Endpoint
	queue      chan *delivery
	workers    int
	attempts   int
	retryDelay time.Duration
	client     *http.Client
	sanitizer  *utils.HTMLSanitizer
	observer   Observer
	logger     zerolog.Logger
	now        func() time.Time

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option customizes a Forwarder.
type Option func(*Forwarder)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) {
		if c != nil {
			f.client = c
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(f *Forwarder) {
		if o != nil {
			f.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Forwarder) { f.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Forwarder) {
		if now != nil {
			f.now = now
		}
	}
}

// NewForwarder builds a forwarder from configuration. Call Start before
// publishing.
func NewForwarder(cfg config.OutboundWebhookConfig, opts ...Option) *Forwarder {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 100
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	endpoints := make([]Endpoint, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		endpoints = append(endpoints, Endpoint{URL: ep.URL, Secret: ep.Secret, Events: ep.Events})
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Forwarder{
		endpoints:  endpoints,
		queue:      make(chan *delivery, size),
		workers:    workers,
		attempts:   attempts,
		retryDelay: cfg.RetryDelay,
		client:     &http.Client{Timeout: timeout},
		sanitizer:  utils.NewHTMLSanitizer(),
		observer:   nopObserver{},
		logger:     zerolog.Nop(),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start launches the worker goroutines.
func (f *Forwarder) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started || f.closed {
		return
	}
	f.started = true
	for i := 0; i < f.workers; i++ {
		f.wg.Add(1)
		go f.worker()
	}
}

// Stop stops accepting events and waits for queued deliveries until ctx
// expires, after which in-flight retries are abandoned.
func (f *Forwarder) Stop(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrStopped
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		f.cancel()
		return nil
	case <-ctx.Done():
		f.cancel()
		<-done
		return ctx.Err()
	}
}

// Publish queues eventType for every subscribed endpoint. It never blocks:
// when the queue is full the delivery is dropped and logged.
func (f *Forwarder) Publish(_ context.Context, eventType string, t *models.Ticket, c *models.TicketComment) {
	if t == nil || len(f.endpoints) == 0 {
		return
	}
	data := EventData{Ticket: ticketData(t)}
	if c != nil {
		data.Article = &ArticleData{
			ID:          c.ID,
			Content:     c.Content,
			ContentHTML: f.sanitizer.RenderMarkdown(c.Content),
			AuthorType:  c.AuthorType,
			IsInternal:  c.IsInternal,
			CreatedAt:   c.CreatedAt,
		}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for _, ep := range f.endpoints {
		if !ep.Wants(eventType) {
			continue
		}
		d, err := f.newDelivery(eventType, ep, data)
		if err != nil {
			f.logger.Error().Err(err).Str("event", eventType).Msg("webhook payload encoding failed")
			continue
		}
		select {
		case f.queue <- d:
		default:
			f.observer.ObserveWebhookDelivery(DeliveryDropped)
			f.logger.Warn().
				Str("event", eventType).
				Str("url", ep.URL).
				Int64("ticket_id", t.ID).
				Msg("webhook queue full, delivery dropped")
		}
	}
}

func (f *Forwarder) newDelivery(eventType string, ep Endpoint, data EventData) (*delivery, error) {
	id := uuid.NewString()
	body, err := json.Marshal(Payload{
		ID:        id,
		Event:     eventType,
		Timestamp: f.now().UTC(),
		Source:    Source{Name: "uxone-helpdesk", Version: version.Version},
		Data:      data,
	})
	if err != nil {
		return nil, err
	}
	return &delivery{id: id, event: eventType, endpoint: ep, body: body}, nil
}

func (f *Forwarder) worker() {
	defer f.wg.Done()
	for d := range f.queue {
		f.deliver(d)
	}
}

func (f *Forwarder) deliver(d *delivery) {
	log := f.logger.With().
		Str("delivery", d.id).
		Str("event", d.event).
		Str("url", d.endpoint.URL).
		Logger()

	var err error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		var retry bool
		retry, err = f.post(d)
		if err == nil {
			f.observer.ObserveWebhookDelivery(DeliverySuccess)
			log.Debug().Int("attempt", attempt).Msg("webhook delivered")
			return
		}
		if !retry || attempt == f.attempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("webhook delivery failed, retrying")
		select {
		case <-time.After(f.retryDelay * time.Duration(attempt)):
		case <-f.ctx.Done():
			err = f.ctx.Err()
			attempt = f.attempts
		}
	}
	f.observer.ObserveWebhookDelivery(DeliveryFailed)
	log.Error().Err(err).Msg("webhook delivery abandoned")
}

// post performs one attempt and reports whether a failure is worth retrying.
func (f *Forwarder) post(d *delivery) (bool, error) {
	req, err := http.NewRequestWithContext(f.ctx, http.MethodPost, d.endpoint.URL, bytes.NewReader(d.body))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "uxone-webhook/"+version.Version)
	req.Header.Set(HeaderEvent, d.event)
	req.Header.Set(HeaderDelivery, d.id)
	if d.endpoint.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(d.body, d.endpoint.Secret))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout
	return retry, fmt.Errorf("endpoint answered %s", resp.Status)
}

// Sign returns the X-Webhook-Signature value for body: "sha256=" followed
// by the hex HMAC-SHA256 of body keyed with secret.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature produced by Sign in constant time.
func Verify(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}

type nopObserver struct{}

func (nopObserver) ObserveWebhookDelivery(string) {}
