package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ncsyvn/microservices-go/pkg/database"
	"github.com/ncsyvn/microservices-go/pkg/health"
	"github.com/ncsyvn/microservices-go/pkg/httpclient"
	pkgkafka "github.com/ncsyvn/microservices-go/pkg/kafka"
	"github.com/ncsyvn/microservices-go/pkg/middleware"
	"github.com/ncsyvn/microservices-go/pkg/tracing"
	"github.com/ncsyvn/microservices-go/services/video/internal/authclient"
	"github.com/ncsyvn/microservices-go/services/video/internal/config"
	"github.com/ncsyvn/microservices-go/services/video/internal/event"
	handler "github.com/ncsyvn/microservices-go/services/video/internal/handler/http"
	"github.com/ncsyvn/microservices-go/services/video/internal/repository"
	"github.com/ncsyvn/microservices-go/services/video/internal/repository/memory"
	"github.com/ncsyvn/microservices-go/services/video/internal/repository/postgres"
	"github.com/ncsyvn/microservices-go/services/video/internal/service"
	"github.com/ncsyvn/microservices-go/services/video/migrations"
)

// App wires together all dependencies and runs the video service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	publisher      pkgkafka.Publisher
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracingCfg := cfg.Tracing
	tracingCfg.ServiceName = "video"
	tracingCfg.Environment = cfg.Environment
	tracerShutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	repo, err := a.openRepository(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	if cfg.Kafka.Enabled() {
		producer := pkgkafka.NewProducer(cfg.Kafka, logger)
		a.publisher = producer
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.Kafka.Brokers))
	} else {
		a.publisher = pkgkafka.Discard{Logger: logger}
		logger.Warn("kafka disabled, video events are dropped")
	}

	// Tokens are validated by the auth service; it also checks revocation.
	authHTTP := httpclient.NewCircuitBreakerClient(httpclient.New(cfg.AuthClient), cfg.AuthBreaker, logger)
	verifier := authclient.NewVerifier(cfg.AuthServiceURL, authHTTP, logger)
	gate := middleware.NewGate(verifier, nil, logger)

	videoService := service.NewVideoService(repo, event.NewProducer(a.publisher, logger), logger)
	router := handler.NewRouter(videoService, gate, healthHandler, logger, handler.RouterConfig{
		CORS:        cfg.CORS,
		Debug:       cfg.Debug,
		CacheMaxAge: cfg.CacheMaxAge,
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

func (a *App) openRepository(ctx context.Context, healthHandler *health.Handler) (repository.VideoRepository, error) {
	if a.cfg.StorageDriver == config.StorageMemory {
		a.logger.Warn("using in-process storage, data is lost on restart")
		return memory.NewVideoRepository(), nil
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
	database.RegisterPoolMetrics(pool, "video")

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if a.cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(a.cfg.SlowQueryThreshold, a.logger)
	}

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	return postgres.NewVideoRepository(pool), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
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

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown drains HTTP, flushes spans, then closes the producer and the pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.closeResources()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
