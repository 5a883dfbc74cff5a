package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fawwazmw/travelease-api/internal/auth"
	"github.com/fawwazmw/travelease-api/internal/config"
	"github.com/fawwazmw/travelease-api/internal/event"
	handler "github.com/fawwazmw/travelease-api/internal/handler/http"
	"github.com/fawwazmw/travelease-api/internal/notification"
	"github.com/fawwazmw/travelease-api/internal/repository/postgres"
	redisrepo "github.com/fawwazmw/travelease-api/internal/repository/redis"
	"github.com/fawwazmw/travelease-api/internal/service"
	"github.com/fawwazmw/travelease-api/migrations"
	"github.com/fawwazmw/travelease-api/pkg/database"
	"github.com/fawwazmw/travelease-api/pkg/health"
	pkgkafka "github.com/fawwazmw/travelease-api/pkg/kafka"
	"github.com/fawwazmw/travelease-api/pkg/middleware"
	"github.com/fawwazmw/travelease-api/pkg/tracing"
)

// App wires together all dependencies and runs the TravelEase API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	paymentOK      *pkgkafka.Consumer
	paymentFailed  *pkgkafka.Consumer
	bookingService *service.BookingService
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "travelease-api",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "travelease")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis backs the destination read cache. The API serves from PostgreSQL
	// without it, so a missing Redis only degrades.
	var (
		redisClient      *redis.Client
		destinationCache service.DestinationCache
	)
	redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable, destination cache disabled",
			slog.String("error", err.Error()),
		)
		redisClient = nil
	} else {
		destinationCache = redisrepo.NewDestinationCache(redisClient, time.Duration(cfg.CacheTTL)*time.Second)
		logger.Info("connected to Redis",
			slog.String("host", cfg.RedisHost),
			slog.Int("port", cfg.RedisPort),
		)
	}

	// Initialize Kafka producer with connection validation and retry.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	categoryRepo := postgres.NewCategoryRepository(pool)
	destinationRepo := postgres.NewDestinationRepository(pool)
	slotRepo := postgres.NewSlotRepository(pool)
	bookingRepo := postgres.NewBookingRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)

	eventProducer := event.NewProducer(producer, logger)

	var notifier service.Notifier
	if cfg.WebhookURL != "" {
		notifier = notification.NewWebhookNotifier(
			cfg.WebhookURL,
			time.Duration(cfg.WebhookTimeoutMs)*time.Millisecond,
			logger,
		)
		logger.Info("booking status webhook enabled", slog.String("url", cfg.WebhookURL))
	}

	catalogService := service.NewCatalogService(categoryRepo, destinationRepo, destinationCache, logger)
	slotService := service.NewSlotService(slotRepo, destinationRepo, logger)
	bookingService := service.NewBookingService(bookingRepo, destinationRepo, eventProducer, notifier, logger)
	reviewService := service.NewReviewService(reviewRepo, bookingRepo, destinationRepo, eventProducer, destinationCache, logger)

	// Kafka consumers confirm or cancel bookings on payment outcomes.
	eventConsumer := event.NewConsumer(bookingService, logger)
	idempotencyStore := pkgkafka.NewMemoryIdempotencyStore(24 * time.Hour)

	paymentCompletedConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:   cfg.KafkaBrokers,
		GroupID:   "travelease-api-payment-completed",
		Topic:     event.TopicPaymentCompleted,
		MinBytes:  1,
		MaxBytes:  10e6,
		EnableDLQ: true,
	}, pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.HandlePaymentCompleted, logger), logger)

	paymentFailedConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:   cfg.KafkaBrokers,
		GroupID:   "travelease-api-payment-failed",
		Topic:     event.TopicPaymentFailed,
		MinBytes:  1,
		MaxBytes:  10e6,
		EnableDLQ: true,
	}, pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.HandlePaymentFailed, logger), logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(handler.RouterConfig{
		Catalog:            catalogService,
		Slots:              slotService,
		Bookings:           bookingService,
		Reviews:            reviewService,
		Verifier:           auth.NewVerifier(cfg.JWTSecret),
		HealthHandler:      healthHandler,
		Logger:             logger,
		CORS:               corsCfg,
		PprofCIDRs:         cfg.PprofAllowedCIDRs,
		CatalogCacheMaxAge: cfg.CatalogCacheMaxAge,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		httpServer:     httpServer,
		paymentOK:      paymentCompletedConsumer,
		paymentFailed:  paymentFailedConsumer,
		bookingService: bookingService,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server, Kafka consumers, and the expiry sweep, then
// blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 3)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start Kafka consumers.
	go func() {
		if err := a.paymentOK.Start(ctx); err != nil {
			errCh <- fmt.Errorf("payment completed consumer: %w", err)
		}
	}()

	go func() {
		if err := a.paymentFailed.Start(ctx); err != nil {
			errCh <- fmt.Errorf("payment failed consumer: %w", err)
		}
	}()

	// Start the background booking expiry sweep.
	go a.runExpirySweep(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runExpirySweep periodically expires pending bookings older than the booking
// TTL, releasing their held slot capacity.
func (a *App) runExpirySweep(ctx context.Context) {
	interval := time.Duration(a.cfg.ExpirySweepInterval) * time.Second
	ttl := time.Duration(a.cfg.BookingTTL) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := a.bookingService.ExpireStaleBookings(ctx, ttl)
			if err != nil {
				a.logger.Error("booking expiry sweep error", slog.String("error", err.Error()))
			} else if expired > 0 {
				a.logger.Info("stale bookings expired", slog.Int("expired", expired))
			}
		}
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumers
// 4. Kafka producer
// 5. Redis client
// 6. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka consumers.
	if err := a.paymentOK.Close(); err != nil {
		a.logger.Error("payment completed consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.paymentFailed.Close(); err != nil {
		a.logger.Error("payment failed consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close Redis client.
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 6. Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := producer.Ping(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
