package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/TIPA-VN/uxone-sub003/internal/api"
	"github.com/TIPA-VN/uxone-sub003/internal/auth"
	"github.com/TIPA-VN/uxone-sub003/internal/logger"
	"github.com/TIPA-VN/uxone-sub003/internal/version"
)

var noPolling bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and mailbox poller",
	Long: `Serve starts the email-to-ticket webhook, the realtime notification
stream, /health and /metrics, and polls the enabled mailboxes on their
cron schedules until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noPolling, "no-polling", false, "serve HTTP only, without polling mailboxes")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	cfg := a.cfg

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	opts := []api.Option{
		api.WithLogger(logger.Component(a.log, "http")),
		api.WithServiceName(cfg.App.Name),
		api.WithInboundSecret(cfg.Webhook.InboundSecret),
		api.WithBodyLimit(cfg.Ticket.BodyLimit),
		api.WithParser(a.parser),
		api.WithDatabase(a.db),
		api.WithMetrics(a.metrics, a.registry),
		api.WithMailboxes(a.scheduler),
	}
	if cfg.Auth.JWTSecret != "" {
		opts = append(opts, api.WithStream(auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0), a.realtime))
	} else {
		a.log.Warn().Msg("auth.jwt_secret is empty, notification stream disabled")
	}
	router := api.NewRouter(a.pipeline, opts...)

	srv := &http.Server{
		Addr:              cfg.Server.GetServerAddr(),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("version", version.String()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if !noPolling {
		go func() {
			if err := a.scheduler.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	case err = <-errCh:
		a.log.Error().Err(err).Msg("server failed")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		a.log.Warn().Err(serr).Msg("http shutdown")
	}
	a.close(shutdownCtx)
	return err
}
