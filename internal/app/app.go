package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/xavierca1/leadsync/internal/config"
	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/infra/database"
	"github.com/xavierca1/leadsync/internal/infra/http/middleware"
	"github.com/xavierca1/leadsync/internal/infra/integration"
	"github.com/xavierca1/leadsync/internal/infra/integration/directory"
	"github.com/xavierca1/leadsync/internal/infra/integration/kommo"
	"github.com/xavierca1/leadsync/internal/infra/integration/numberintel"
	"github.com/xavierca1/leadsync/internal/infra/integration/summary"
	"github.com/xavierca1/leadsync/internal/infra/integration/whatsapp"
	"github.com/xavierca1/leadsync/internal/infra/lock"
	"github.com/xavierca1/leadsync/internal/infra/mail"
	"github.com/xavierca1/leadsync/internal/infra/queue"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// App holds every long-lived dependency of the service.
type App struct {
	Config       *config.Config
	Log          *slog.Logger
	Store        *database.Store
	Redis        *redis.Client
	RabbitMQ     *queue.RabbitMQ
	Orchestrator *usecase.LeadOrchestrator
}

func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// New wires the orchestrator from cfg. withQueue controls whether follow-up
// commands go through RabbitMQ (when configured) or run in process.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, withQueue bool) (*App, error) {
	a := &App{Config: cfg, Log: log}

	store, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = store

	var locker usecase.Locker = lock.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		a.Redis = lock.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		locker = lock.NewRedisLocker(a.Redis, cfg.LockTTL, log)
	}

	dir := directory.NewClient(cfg.Directory.URL, cfg.Directory.APIKey)
	numbers := numberintel.NewClient(cfg.NumberIntel.URL, cfg.NumberIntel.APIKey)
	checks := usecase.DefaultChecks(dir, dir, numbers, cfg.DisallowedLineTypes)
	pipeline := usecase.NewValidationPipeline(map[entity.LeadType][]usecase.Check{
		entity.LeadTypeMessage:  checks,
		entity.LeadTypeCallback: checks,
	})

	a.Orchestrator = usecase.NewLeadOrchestrator(usecase.Dependencies{
		Leads:    store.Leads,
		States:   store.States,
		Journal:  store.Journal,
		Locker:   locker,
		Pipeline: pipeline,
		Registry: buildRegistry(cfg, dir, log),
		Recorder: middleware.PrometheusRecorder{},
		Retry: usecase.RetryPolicy{
			MaxAttempts:     cfg.StepMaxAttempts,
			InitialInterval: cfg.StepInitialBackoff,
		},
		BulkLimit: cfg.BulkConcurrency,
		Logger:    log,
	})

	if withQueue && cfg.RabbitMQURL != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.RabbitMQ = rabbit
		a.Orchestrator.SetDispatcher(queue.NewProducer(rabbit.Ch))
	}

	return a, nil
}

func buildRegistry(cfg *config.Config, dir *directory.Client, log *slog.Logger) entity.AdapterRegistry {
	adapters := integration.Adapters{
		Directory: directory.NewAdapter(dir),
	}
	if cfg.WhatsApp.AccessToken != "" {
		adapters.WhatsApp = whatsapp.NewAdapter(
			whatsapp.NewClient(whatsapp.Config{
				BaseURL:     cfg.WhatsApp.URL,
				AccessToken: cfg.WhatsApp.AccessToken,
				PhoneID:     cfg.WhatsApp.PhoneID,
				Language:    cfg.WhatsApp.Language,
			}),
			whatsapp.Templates{Intake: cfg.WhatsApp.IntakeTemplate, Closing: cfg.WhatsApp.ClosingTemplate},
		)
	}
	if cfg.Kommo.URL != "" {
		adapters.Kommo = kommo.NewAdapter(kommo.NewClient(kommo.Config{
			BaseURL:        cfg.Kommo.URL,
			APIToken:       cfg.Kommo.APIToken,
			PipelineID:     cfg.Kommo.PipelineID,
			StatusID:       cfg.Kommo.StatusID,
			ClosedStatusID: cfg.Kommo.ClosedStatusID,
		}))
	}
	if cfg.Summary.URL != "" {
		adapters.Summary = summary.NewAdapter(summary.NewClient(cfg.Summary.URL, cfg.Summary.ClientID, cfg.Summary.ClientSecret))
	}
	if cfg.Mail.Host != "" {
		sender := mail.NewEmailSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
		adapters.Email = mail.NewAdapter(sender, dir)
	}

	registry := integration.NewRegistry(adapters)
	for leadType, list := range registry {
		names := make([]string, 0, len(list))
		for _, a := range list {
			names = append(names, a.Name())
		}
		log.Info("integrations registered", "lead_type", leadType, "adapters", names)
	}
	return registry
}

func (a *App) Close() {
	if a.RabbitMQ != nil {
		_ = a.RabbitMQ.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
