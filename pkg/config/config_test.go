package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upstream struct {
	URL     string        `env:"URL" envDefault:"http://localhost:8001"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

type serviceConfig struct {
	Port     int      `env:"CFGTEST_PORT" envDefault:"8002"`
	Env      string   `env:"CFGTEST_ENV" envDefault:"development"`
	Verbose  bool     `env:"CFGTEST_VERBOSE"`
	Upstream upstream `envPrefix:"CFGTEST_AUTH_"`
}

type secretConfig struct {
	Secret string `env:"CFGTEST_SECRET,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg serviceConfig
		require.NoError(t, Load(&cfg))
		assert.Equal(t, serviceConfig{
			Port:     8002,
			Env:      "development",
			Upstream: upstream{URL: "http://localhost:8001", Timeout: 5 * time.Second},
		}, cfg)
	})

	t.Run("environment and nested prefix", func(t *testing.T) {
		t.Setenv("CFGTEST_PORT", "9100")
		t.Setenv("CFGTEST_VERBOSE", "true")
		t.Setenv("CFGTEST_AUTH_URL", "http://auth:8001")
		t.Setenv("CFGTEST_AUTH_TIMEOUT", "750ms")

		var cfg serviceConfig
		require.NoError(t, Load(&cfg))
		assert.Equal(t, 9100, cfg.Port)
		assert.True(t, cfg.Verbose)
		assert.Equal(t, "http://auth:8001", cfg.Upstream.URL)
		assert.Equal(t, 750*time.Millisecond, cfg.Upstream.Timeout)
	})

	t.Run("bad value", func(t *testing.T) {
		t.Setenv("CFGTEST_AUTH_TIMEOUT", "soon")
		var cfg serviceConfig
		err := Load(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})

	t.Run("required missing", func(t *testing.T) {
		var cfg secretConfig
		assert.ErrorContains(t, Load(&cfg), "CFGTEST_SECRET")
	})

	t.Run("required present", func(t *testing.T) {
		t.Setenv("CFGTEST_SECRET", "s3cret")
		var cfg secretConfig
		require.NoError(t, Load(&cfg))
		assert.Equal(t, "s3cret", cfg.Secret)
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, "service.env")
	require.NoError(t, os.WriteFile(path, []byte("CFGTEST_ENV=staging\nCFGTEST_FROM_FILE=1\n"), 0o600))
	t.Setenv("CFGTEST_ENV", "production")
	t.Cleanup(func() { _ = os.Unsetenv("CFGTEST_FROM_FILE") })

	require.NoError(t, LoadDotEnv(path))

	var cfg serviceConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "production", cfg.Env, "process environment wins over the file")
	assert.Equal(t, "1", os.Getenv("CFGTEST_FROM_FILE"))
}
