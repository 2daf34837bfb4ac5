package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/teleconsult/internal/adapters/cache"
	"github.com/zatekoja/teleconsult/internal/adapters/database"
	"github.com/zatekoja/teleconsult/internal/adapters/events"
	"github.com/zatekoja/teleconsult/internal/adapters/memory"
	"github.com/zatekoja/teleconsult/internal/adapters/providers/meeting"
	"github.com/zatekoja/teleconsult/internal/api/handlers"
	"github.com/zatekoja/teleconsult/internal/api/middleware"
	"github.com/zatekoja/teleconsult/internal/api/routes"
	"github.com/zatekoja/teleconsult/internal/application/services"
	"github.com/zatekoja/teleconsult/internal/domain/providers"
	"github.com/zatekoja/teleconsult/internal/domain/repositories"
	"github.com/zatekoja/teleconsult/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/teleconsult/internal/infrastructure/clients/redis"
	"github.com/zatekoja/teleconsult/internal/infrastructure/notifications"
	"github.com/zatekoja/teleconsult/internal/infrastructure/observability"
	"github.com/zatekoja/teleconsult/migrations"
	"github.com/zatekoja/teleconsult/pkg/auth"
	"github.com/zatekoja/teleconsult/pkg/config"
	"github.com/zatekoja/teleconsult/pkg/retry"
	"github.com/zatekoja/teleconsult/pkg/secrets"
)

// storage bundles the repositories of the selected backend
type storage struct {
	appointments    repositories.AppointmentRepository
	directory       repositories.DirectoryRepository
	consultations   repositories.ConsultationRepository
	notificationLog repositories.NotificationLogRepository
	close           func()
}

func main() {
	// Pull secrets from Vault first so config.Load sees them
	vaultResult, vaultErr := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Env)

	if vaultErr != nil {
		log.Fatal().Err(vaultErr).Str("path", vaultResult.Path).Msg("failed to load secrets from Vault")
	}
	if vaultResult.Enabled {
		log.Info().Str("path", vaultResult.Path).Int("loaded", vaultResult.Loaded).Int("skipped", vaultResult.Skipped).Msg("loaded secrets from Vault")
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Initialize Redis client
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			// Continue without Redis: cache and events fall back to in-process implementations
			log.Warn().Err(err).Msg("failed to initialize Redis client")
		} else {
			defer redisClient.Close()
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
		}
	}

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	} else {
		cacheProvider = cache.NewMemoryAdapter()
		eventBus = events.NewMemoryEventBus()
		log.Warn().Msg("using in-process cache and event bus; streams only see events from this replica")
	}
	defer eventBus.Close()

	store, err := openStorage(cfg, cacheProvider, metrics)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialize storage")
	}
	defer store.close()

	// Notifications
	renderer, err := notifications.NewTemplateRenderer(cfg.Notification.Location())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load notification templates")
	}

	sender, err := newEmailSender(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize email sender")
	}

	notificationService := services.NewNotificationService(renderer, sender, store.notificationLog, services.NotificationServiceConfig{
		Workers:     cfg.Notification.Workers,
		QueueSize:   cfg.Notification.QueueSize,
		Retry:       retry.DeliveryConfig(),
		SendTimeout: 10 * time.Second,
	})
	notificationService.SetMetrics(metrics)
	notificationService.Start()

	// Services
	meetings := meeting.NewJitsiProvider(meeting.JitsiConfig{
		BaseURL: cfg.Meeting.BaseURL,
		Prefix:  cfg.Meeting.Prefix,
	})

	schedulerService := services.NewSchedulerService(store.appointments, store.directory, meetings, notificationService)
	schedulerService.SetEventPublisher(eventBus)
	schedulerService.SetMetrics(metrics)

	consultationService := services.NewConsultationService(store.consultations, store.appointments, store.directory)
	consultationService.SetEventPublisher(eventBus)

	// HTTP
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go rateLimiter.Run(ctx, time.Minute, 10*time.Minute)

	router := routes.NewRouter(
		handlers.NewAppointmentHandler(schedulerService),
		handlers.NewConsultationHandler(consultationService),
		handlers.NewStreamHandler(eventBus, store.directory),
		tokens,
		rateLimiter,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset so SSE streams are not cut off
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Str("storage", cfg.Storage.Driver).Msg("starting tele-consult API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := notificationService.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("notification queue not drained")
	}

	log.Info().Msg("server exited")
}

func openStorage(cfg *config.Config, cacheProvider providers.CacheProvider, metrics *observability.Metrics) (*storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		store := memory.NewStore()
		if cfg.IsDevelopment() {
			store.SeedDemo()
			log.Info().Msg("seeded in-memory directory with demo doctors and patients")
		}
		return &storage{
			appointments:    store.Appointments(),
			directory:       store.Directory(),
			consultations:   store.Consultations(),
			notificationLog: store.NotificationLog(),
			close:           func() {},
		}, nil

	case "postgres":
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			return nil, err
		}
		log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Database).Msg("PostgreSQL client initialized")

		if cfg.Storage.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := pgClient.Migrate(ctx, migrations.Files)
			cancel()
			if err != nil {
				pgClient.Close()
				return nil, err
			}
		}

		return &storage{
			appointments:    database.NewAppointmentAdapter(pgClient, metrics),
			directory:       database.NewCachedDirectoryAdapter(database.NewDirectoryAdapter(pgClient), cacheProvider, cfg.Cache.DirectoryTTL, metrics),
			consultations:   database.NewConsultationAdapter(pgClient),
			notificationLog: database.NewNotificationLogAdapter(pgClient),
			close: func() {
				if err := pgClient.Close(); err != nil {
					log.Error().Err(err).Msg("error closing PostgreSQL client")
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

func newEmailSender(cfg *config.Config) (providers.EmailSender, error) {
	switch cfg.Notification.Sender {
	case "http":
		return notifications.NewHTTPMailSender(notifications.HTTPMailSenderConfig{
			URL:     cfg.Notification.MailAPIURL,
			APIKey:  cfg.Notification.MailAPIKey,
			From:    cfg.Notification.FromAddress,
			Timeout: 10 * time.Second,
		})
	default:
		return notifications.NewLogSender(), nil
	}
}
