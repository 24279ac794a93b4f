package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8002, cfg.HTTPPort)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, "http://localhost:8001", cfg.AuthServiceURL)
	assert.Equal(t, 5*time.Second, cfg.AuthClient.Timeout)
	assert.Equal(t, "downstream", cfg.AuthBreaker.Name)
	assert.Equal(t, 30*time.Second, cfg.AuthBreaker.Timeout)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_PrefixedSections(t *testing.T) {
	t.Setenv("VIDEO_POSTGRES_HOST", "videodb")
	t.Setenv("AUTH_SERVICE_URL", "https://auth.internal")
	t.Setenv("AUTH_CLIENT_MAX_RETRIES", "0")
	t.Setenv("AUTH_BREAKER_NAME", "auth")
	t.Setenv("KAFKA_BROKERS", "k1:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "videodb", cfg.Postgres.Host)
	assert.Equal(t, "https://auth.internal", cfg.AuthServiceURL)
	assert.Equal(t, 0, cfg.AuthClient.MaxRetries)
	assert.Equal(t, "auth", cfg.AuthBreaker.Name)
	assert.True(t, cfg.Kafka.Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
		want string
	}{
		{"port", map[string]string{"VIDEO_HTTP_PORT": "70000"}, "invalid HTTP port"},
		{"driver", map[string]string{"VIDEO_STORAGE_DRIVER": "sqlite"}, "VIDEO_STORAGE_DRIVER"},
		{"auth url", map[string]string{"AUTH_SERVICE_URL": "auth:8001"}, "AUTH_SERVICE_URL"},
		{"memory in production", map[string]string{
			"ENVIRONMENT":          "production",
			"VIDEO_STORAGE_DRIVER": "memory",
		}, "memory storage driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envs {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
