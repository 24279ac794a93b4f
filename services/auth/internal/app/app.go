package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ncsyvn/microservices-go/pkg/database"
	"github.com/ncsyvn/microservices-go/pkg/health"
	pkgkafka "github.com/ncsyvn/microservices-go/pkg/kafka"
	"github.com/ncsyvn/microservices-go/pkg/middleware"
	"github.com/ncsyvn/microservices-go/pkg/tracing"
	"github.com/ncsyvn/microservices-go/services/auth/internal/auth"
	"github.com/ncsyvn/microservices-go/services/auth/internal/config"
	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
	"github.com/ncsyvn/microservices-go/services/auth/internal/event"
	handler "github.com/ncsyvn/microservices-go/services/auth/internal/handler/http"
	"github.com/ncsyvn/microservices-go/services/auth/internal/repository"
	"github.com/ncsyvn/microservices-go/services/auth/internal/repository/memory"
	"github.com/ncsyvn/microservices-go/services/auth/internal/repository/postgres"
	redisrepo "github.com/ncsyvn/microservices-go/services/auth/internal/repository/redis"
	"github.com/ncsyvn/microservices-go/services/auth/internal/service"
	"github.com/ncsyvn/microservices-go/services/auth/migrations"
)

const idempotencyPrefix = "auth:events:seen:"

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	publisher      pkgkafka.Publisher
	consumer       *pkgkafka.Consumer
	dlq            *pkgkafka.DLQProducer
	pruner         *auth.Pruner
	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	// cancel stops the rate limiter cleanup and background workers.
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracingCfg := cfg.Tracing
	tracingCfg.ServiceName = "auth"
	tracingCfg.Environment = cfg.Environment
	tracerShutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	store, err := a.openStore(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Redis backs the OTP cooldown; without it OTPs are not throttled.
	var cooldown service.OTPCooldown
	var seen pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis.Addr()))
		cooldown = redisrepo.NewOTPCooldown(client, cfg.OTPCooldown)
		seen = pkgkafka.NewRedisIdempotencyStore(client, idempotencyPrefix, cfg.IdempotencyTTL)
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	// Events and OTP delivery.
	dispatcher := event.NewOTPDispatcher(store.Users(), event.LogSender{Logger: logger}, logger)
	if cfg.Kafka.Enabled() {
		producer := pkgkafka.NewProducer(cfg.Kafka, logger)
		a.publisher = producer
		a.dlq = pkgkafka.NewDLQProducer(cfg.Kafka.Brokers, logger)
		a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:      cfg.Kafka.Brokers,
			GroupID:      event.OTPDispatcherGroup,
			Topic:        event.TopicOTPRequested,
			MinBytes:     1,
			MaxBytes:     1 << 20,
			MaxRetries:   3,
			RetryBackoff: 500 * time.Millisecond,
		}, dispatcher.Handle, logger,
			pkgkafka.WithDeadLetter(a.dlq),
			pkgkafka.WithIdempotency(seen),
		)
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.Kafka.Brokers))
	} else {
		loopback := event.NewLoopback(logger)
		loopback.Handle(event.TopicOTPRequested, dispatcher.Handle)
		a.publisher = loopback
		logger.Warn("kafka disabled, events are handled in-process")
	}

	// Build the dependency graph.
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	ledger := auth.NewLedger(store.Tokens())
	eventProducer := event.NewProducer(a.publisher, logger)
	authService := service.NewAuthService(store, issuer, ledger, cooldown, eventProducer, cfg.OTPTTL, logger)
	gate := middleware.NewGate(issuer, ledger, logger)
	a.pruner = auth.NewPruner(ledger, cfg.TokenPruneInterval, logger)

	// HTTP router. Its rate limiter lives until Shutdown.
	runCtx, runCancel := context.WithCancel(context.Background())
	a.cancel = runCancel
	router := handler.NewRouter(runCtx, authService, gate, healthHandler, logger, handler.RouterConfig{
		CORS:      cfg.CORS,
		Debug:     cfg.Debug,
		RateLimit: cfg.RateLimit,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// openStore connects the configured storage driver and registers its
// readiness check.
func (a *App) openStore(ctx context.Context, healthHandler *health.Handler) (repository.Store, error) {
	if a.cfg.StorageDriver == config.StorageMemory {
		store := memory.NewStore()
		for groupID, perms := range domain.SeedPermissions {
			store.SetPermissions(groupID, perms...)
		}
		a.logger.Warn("using in-process storage, data is lost on restart")
		return store, nil
	}

	pool, err := database.NewPostgresPool(ctx, &a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.Postgres.Host),
		slog.Int("port", a.cfg.Postgres.Port),
		slog.String("database", a.cfg.Postgres.DBName),
	)
	database.RegisterPoolMetrics(pool, "auth")

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if a.cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(a.cfg.SlowQueryThreshold, a.logger)
	}

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	return postgres.NewStore(pool), nil
}

// Run starts the HTTP server, the token pruner and the OTP consumer, and
// blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pruner.Run(workerCtx)
	}()

	if a.consumer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.consumer.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("otp consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	workerCancel()
	a.wg.Wait()

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer and dead-letter writer
// 4. Redis client and PostgreSQL pool
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
	if a.cancel != nil {
		a.cancel()
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

	// 3. Close Kafka writers.
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close storage.
	a.closeResources()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
