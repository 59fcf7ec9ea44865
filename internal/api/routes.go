// Package api exposes the email ingestion endpoints, the realtime
// notification stream and the operational endpoints over gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TIPA-VN/uxone-sub003/internal/auth"
	"github.com/TIPA-VN/uxone-sub003/internal/database"
	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/parser"
	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/postmaster"
	"github.com/TIPA-VN/uxone-sub003/internal/metrics"
	"github.com/TIPA-VN/uxone-sub003/internal/notifications"
	"github.com/TIPA-VN/uxone-sub003/internal/services/scheduler"
	"github.com/TIPA-VN/uxone-sub003/internal/version"
)

// Route paths.
const (
	PathEmailWebhook       = "/api/webhooks/email-to-ticket"
	PathEmailWebhookRaw    = "/api/webhooks/email-to-ticket/raw"
	PathNotificationStream = "/api/notifications/stream"
	PathHealth             = "/health"
	PathMetrics            = "/metrics"
)

// Pinger is satisfied by *sqlx.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// TokenValidator authenticates realtime stream subscribers.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// MailboxStatus reports the mailbox poller state for /health.
type MailboxStatus interface {
	Status() []scheduler.MailboxStatus
}

type Router struct {
	engine    *gin.Engine
	pipeline  postmaster.Processor
	parser    postmaster.MessageParser
	db        Pinger
	tokens    TokenValidator
	registry  *notifications.Registry
	mailboxes MailboxStatus
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	logger    zerolog.Logger
	service   string
	secret    string
	bodyLimit int64
	upgrader  websocket.Upgrader
}

// Option configures a Router.
type Option func(*Router)

// WithParser sets the MIME parser used by the raw endpoint.
func WithParser(p postmaster.MessageParser) Option {
	return func(r *Router) {
		if p != nil {
			r.parser = p
		}
	}
}

// WithDatabase enables the database check in /health.
func WithDatabase(db Pinger) Option {
	return func(r *Router) { r.db = db }
}

// WithStream enables the realtime notification stream.
func WithStream(tokens TokenValidator, registry *notifications.Registry) Option {
	return func(r *Router) {
		r.tokens = tokens
		r.registry = registry
	}
}

// WithMailboxes adds the poller state to /health.
func WithMailboxes(m MailboxStatus) Option {
	return func(r *Router) { r.mailboxes = m }
}

// WithMetrics instruments every route and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(r *Router) {
		r.metrics = m
		r.gatherer = gatherer
	}
}

// WithLogger sets the request and handler logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithInboundSecret requires "Authorization: Bearer <secret>" on the email
// endpoints. An empty secret disables the check.
func WithInboundSecret(secret string) Option {
	return func(r *Router) { r.secret = secret }
}

// WithBodyLimit caps request bodies on the email endpoints.
func WithBodyLimit(n int64) Option {
	return func(r *Router) {
		if n > 0 {
			r.bodyLimit = n
		}
	}
}

// WithServiceName sets the name reported by /health.
func WithServiceName(name string) Option {
	return func(r *Router) {
		if name != "" {
			r.service = name
		}
	}
}

// NewRouter builds the gin engine around pipeline and registers every route.
func NewRouter(pipeline postmaster.Processor, opts ...Option) *Router {
	r := &Router{
		pipeline:  pipeline,
		logger:    zerolog.Nop(),
		service:   "uxone-helpdesk",
		bodyLimit: parser.DefaultBodyLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.parser == nil {
		r.parser = parser.New(r.bodyLimit)
	}

	r.engine = gin.New()
	r.engine.Use(gin.Recovery(), requestID(), requestLogger(r.logger))
	if r.metrics != nil {
		r.engine.Use(r.metrics.GinMiddleware())
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.engine.GET(PathHealth, r.healthCheck)
	if r.gatherer != nil {
		r.engine.GET(PathMetrics, gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	r.engine.GET(PathEmailWebhook, r.emailWebhookInfo)
	r.engine.POST(PathEmailWebhook, r.handleEmailWebhook)
	r.engine.POST(PathEmailWebhookRaw, r.handleRawEmail)

	if r.registry != nil && r.tokens != nil {
		r.engine.GET(PathNotificationStream, r.handleNotificationStream)
	}
}

// Handler returns the engine as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

func (r *Router) healthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": r.service,
		"version": version.GetInfo(),
	}
	if r.mailboxes != nil {
		body["mailboxes"] = r.mailboxes.Status()
	}
	if r.registry != nil {
		body["streamSubscribers"] = r.registry.Subscribers()
	}

	if r.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := r.db.PingContext(ctx); err != nil {
			r.logger.Error().Err(err).Bool("connection_error", database.IsConnectionError(err)).Msg("health check: database ping failed")
			body["status"] = "unhealthy"
			body["database"] = "unreachable"
			body["error"] = "Database connection failed"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	c.JSON(http.StatusOK, body)
}
