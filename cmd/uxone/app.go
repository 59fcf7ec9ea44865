package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/TIPA-VN/uxone-sub003/internal/config"
	"github.com/TIPA-VN/uxone-sub003/internal/database"
	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/classifier"
	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/parser"
	"github.com/TIPA-VN/uxone-sub003/internal/email/inbound/postmaster"
	"github.com/TIPA-VN/uxone-sub003/internal/logger"
	"github.com/TIPA-VN/uxone-sub003/internal/metrics"
	"github.com/TIPA-VN/uxone-sub003/internal/notifications"
	"github.com/TIPA-VN/uxone-sub003/internal/repository"
	"github.com/TIPA-VN/uxone-sub003/internal/services/scheduler"
	"github.com/TIPA-VN/uxone-sub003/internal/ticketnumber"
	"github.com/TIPA-VN/uxone-sub003/internal/webhook"
)

// app holds the wired components shared by the serve and poll commands.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	db        *sqlx.DB
	redis     *redis.Client
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	realtime  *notifications.Registry
	forwarder *webhook.Forwarder
	pipeline  *postmaster.Pipeline
	parser    *parser.Parser
	scheduler *scheduler.Service
}

// loadConfig reads the config file and builds the root logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.New(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}).
		With().Str("app", cfg.App.Name).Logger()

	v := config.NewValidator(cfg)
	if err := v.Validate(); err != nil {
		return nil, log, err
	}
	for _, w := range v.Warnings() {
		log.Warn().Msg(w)
	}
	return cfg, log, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	a.db, err = database.Open(ctx, cfg.Database, logger.Component(log, "database"))
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if _, err := database.Migrate(ctx, a.db, logger.Component(log, "migrate")); err != nil {
			a.close(ctx)
			return nil, err
		}
	}

	if err := a.wire(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	backends := ticketnumber.Backends{DB: a.db, RedisKeyPrefix: cfg.Redis.KeyPrefix}
	if cfg.Ticket.CounterStore == ticketnumber.StoreRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.Redis.GetRedisAddr(), err)
		}
		backends.Redis = a.redis
	}

	tickets := repository.NewTicketRepository(a.db)
	users := repository.NewUserRepository(a.db)

	numbers, err := ticketnumber.SetupFromConfig(cfg, backends,
		ticketnumber.SeedFromMaxNumber(tickets.MaxTicketNumber), logger.Component(log, "ticketnumber"))
	if err != nil {
		return err
	}

	cls := classifier.Default()
	if cfg.Classifier.RulesFile != "" {
		cls, err = classifier.LoadRulesFile(cfg.Classifier.RulesFile)
		if err != nil {
			return err
		}
		log.Info().Str("rules_file", cfg.Classifier.RulesFile).Msg("classifier rules loaded")
	}

	a.realtime = notifications.NewRegistry()
	notifier := notifications.NewNotifier(users, repository.NewNotificationRepository(a.db),
		notifications.WithRealtime(a.realtime),
		notifications.WithObserver(a.metrics),
		notifications.WithLogger(logger.Component(log, "notifier")),
	)

	a.forwarder = webhook.NewForwarder(cfg.Webhook.Outbound,
		webhook.WithObserver(a.metrics),
		webhook.WithLogger(logger.Component(log, "webhook")),
	)

	writer := repository.NewTicketWriter(tickets, users, repository.WithSystemUserID(cfg.Ticket.SystemUserID))
	resolver := postmaster.NewThreadResolver(tickets, cfg.Ticket.ThreadWindow, logger.Component(log, "thread"))

	opts := []postmaster.PipelineOption{
		postmaster.WithClassifier(cls),
		postmaster.WithNotifier(notifier),
		postmaster.WithObserver(a.metrics),
		postmaster.WithLogger(logger.Component(log, "postmaster")),
	}
	if cfg.Webhook.Outbound.Enabled {
		a.forwarder.Start()
		opts = append(opts, postmaster.WithEventPublisher(a.forwarder))
	}
	a.pipeline = postmaster.NewPipeline(resolver, numbers, writer, opts...)
	a.parser = parser.New(cfg.Ticket.BodyLimit)

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}
	a.scheduler, err = scheduler.NewService(cfg.Mailboxes,
		postmaster.Service{Parser: a.parser, Handler: a.pipeline, Logger: logger.Component(log, "mailbox"), Observer: a.metrics},
		scheduler.WithLogger(logger.Component(log, "scheduler")),
		scheduler.WithLocation(loc),
		scheduler.WithObserver(a.metrics),
	)
	return err
}

func (a *app) close(ctx context.Context) {
	if a.forwarder != nil {
		if err := a.forwarder.Stop(ctx); err != nil && !errors.Is(err, webhook.ErrStopped) {
			a.log.Warn().Err(err).Msg("webhook forwarder did not drain")
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing database")
		}
	}
}
