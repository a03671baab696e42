package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xavierca1/leadsync/internal/app"
	"github.com/xavierca1/leadsync/internal/config"
	"github.com/xavierca1/leadsync/internal/infra/http/handlers"
	"github.com/xavierca1/leadsync/internal/infra/http/middleware"
	"github.com/xavierca1/leadsync/internal/infra/http/router"
	"github.com/xavierca1/leadsync/internal/infra/queue"
	"github.com/xavierca1/leadsync/internal/infra/worker"
)

var version = "dev"

func main() {
	log := app.NewLogger()
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("leadsync stopped", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.RabbitMQ != nil {
		w := queue.NewWorker(a.RabbitMQ.Ch, a.Orchestrator, log)
		go func() {
			if err := w.Start(ctx, queue.QueueName); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("command worker stopped", "error", err)
			}
		}()
	} else {
		log.Warn("RABBITMQ_URL not set, follow-up commands run in process")
	}

	go worker.NewRecoveryWorker(a.Orchestrator, cfg.RecoveryInterval, log).Start(ctx)

	validator := middleware.NewJWTValidator(cfg.JWTSecret, cfg.JWTIssuer)
	if validator == nil && !cfg.AuthDisabled {
		log.Warn("JWT_SECRET not set, every authenticated route will answer 401")
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(router.Options{
			Leads:          handlers.NewLeadHandler(a.Orchestrator, handlers.NewRateLimiter(cfg.IntakeRateLimit), log),
			Health:         handlers.NewHealthHandler(version, healthDeps(a)),
			Validator:      validator,
			AuthDisabled:   cfg.AuthDisabled,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("leadsync listening", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthDeps(a *app.App) map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{
		"database": handlers.PingFunc(a.Store.Ping),
		"rabbitmq": nil,
		"redis":    nil,
	}
	if a.RabbitMQ != nil {
		deps["rabbitmq"] = handlers.PingFunc(func(context.Context) error {
			if !a.RabbitMQ.Healthy() {
				return fmt.Errorf("connection closed")
			}
			return nil
		})
	}
	if a.Redis != nil {
		deps["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}
	return deps
}
