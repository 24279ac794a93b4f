package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/ncsyvn/microservices-go/pkg/config"
	"github.com/ncsyvn/microservices-go/pkg/database"
	pkgkafka "github.com/ncsyvn/microservices-go/pkg/kafka"
	"github.com/ncsyvn/microservices-go/pkg/middleware"
	"github.com/ncsyvn/microservices-go/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"AUTH_HTTP_PORT" envDefault:"8001"`

	// StorageDriver selects PostgreSQL or the in-process store.
	StorageDriver string `env:"AUTH_STORAGE_DRIVER" envDefault:"postgres"`

	Postgres           database.PostgresConfig `envPrefix:"AUTH_POSTGRES_"`
	SlowQueryThreshold time.Duration           `env:"AUTH_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis backs the OTP cooldown and consumer idempotency.
	RedisEnabled bool                 `env:"REDIS_ENABLED" envDefault:"false"`
	Redis        database.RedisConfig `envPrefix:"REDIS_"`

	// Kafka is disabled when KAFKA_BROKERS is empty.
	Kafka          pkgkafka.ProducerConfig `envPrefix:"KAFKA_"`
	IdempotencyTTL time.Duration           `env:"KAFKA_IDEMPOTENCY_TTL" envDefault:"24h"`

	Tracing tracing.Config         `envPrefix:"OTEL_"`
	CORS    middleware.CORSConfig  `envPrefix:"CORS_"`
	Debug   middleware.DebugConfig `envPrefix:"AUTH_PPROF_"`

	// JWT
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"24h"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"120h"`

	// TokenPruneInterval is how often expired ledger rows are deleted; 0 disables the pruner.
	TokenPruneInterval time.Duration `env:"TOKEN_PRUNE_INTERVAL" envDefault:"1h"`

	// OTP
	OTPTTL      time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPCooldown time.Duration `env:"OTP_COOLDOWN" envDefault:"60s"`

	// Per-client limits on login and send_otp.
	RateLimit middleware.RateLimitConfig `envPrefix:"AUTH_RATE_LIMIT_"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.StorageDriver != StoragePostgres && c.StorageDriver != StorageMemory {
		return fmt.Errorf("AUTH_STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageDriver)
	}
	if c.JWTAccessExpiry <= 0 || c.JWTRefreshExpiry <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive, got %s", c.OTPTTL)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("invalid rate limit %v/%d", c.RateLimit.RPS, c.RateLimit.Burst)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
		if c.StorageDriver == StorageMemory {
			return fmt.Errorf("the memory storage driver is only allowed in development")
		}
	}
	return nil
}
