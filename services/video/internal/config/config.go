package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/ncsyvn/microservices-go/pkg/config"
	"github.com/ncsyvn/microservices-go/pkg/database"
	"github.com/ncsyvn/microservices-go/pkg/httpclient"
	pkgkafka "github.com/ncsyvn/microservices-go/pkg/kafka"
	"github.com/ncsyvn/microservices-go/pkg/middleware"
	"github.com/ncsyvn/microservices-go/pkg/tracing"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for the video service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPPort int `env:"VIDEO_HTTP_PORT" envDefault:"8002"`

	StorageDriver      string                  `env:"VIDEO_STORAGE_DRIVER" envDefault:"postgres"`
	Postgres           database.PostgresConfig `envPrefix:"VIDEO_POSTGRES_"`
	SlowQueryThreshold time.Duration           `env:"VIDEO_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// AuthServiceURL is the base URL of the auth service used to validate tokens.
	AuthServiceURL string                          `env:"AUTH_SERVICE_URL" envDefault:"http://localhost:8001"`
	AuthClient     httpclient.Config               `envPrefix:"AUTH_CLIENT_"`
	AuthBreaker    httpclient.CircuitBreakerConfig `envPrefix:"AUTH_BREAKER_"`

	// CacheMaxAge is the Cache-Control max-age of public reads.
	CacheMaxAge time.Duration `env:"VIDEO_CACHE_MAX_AGE" envDefault:"30s"`

	Kafka   pkgkafka.ProducerConfig `envPrefix:"KAFKA_"`
	Tracing tracing.Config          `envPrefix:"OTEL_"`
	CORS    middleware.CORSConfig   `envPrefix:"CORS_"`
	Debug   middleware.DebugConfig  `envPrefix:"VIDEO_PPROF_"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load video config: %w", err)
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
		return fmt.Errorf("VIDEO_STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageDriver)
	}
	u, err := url.Parse(c.AuthServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("AUTH_SERVICE_URL must be an absolute http(s) URL, got %q", c.AuthServiceURL)
	}
	if c.AuthClient.Timeout <= 0 {
		return fmt.Errorf("AUTH_CLIENT_TIMEOUT must be positive")
	}
	if c.Environment != "development" && c.StorageDriver == StorageMemory {
		return fmt.Errorf("the memory storage driver is only allowed in development")
	}
	return nil
}
