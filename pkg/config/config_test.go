package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
service_name = "pricing-test"

[http]
port = 9090

[engine]
lattice_steps = 300
normal_method = "polar"
antithetic = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pricing-test", cfg.ServiceName)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 50051, cfg.GRPC.Port)
	assert.Equal(t, 300, cfg.Engine.LatticeSteps)
	assert.Equal(t, "polar", cfg.Engine.NormalMethod)
	assert.True(t, cfg.Engine.Antithetic)
	assert.Equal(t, 10000, cfg.Engine.MCScenarios)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "pricing", cfg.ServiceName)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 500, cfg.Engine.LatticeSteps)
	assert.Equal(t, 252, cfg.Engine.MCSteps)
	assert.InDelta(t, 1e-4, cfg.Engine.IVTolerance, 1e-12)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Engine.Workers)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("APP_ENGINE_SHOCK", "0.01")
	t.Setenv("APP_HTTP_PORT", "8181")

	cfg, err := LoadWithDefaults("")
	require.NoError(t, err)
	assert.InDelta(t, 0.01, cfg.Engine.Shock, 1e-12)
	assert.Equal(t, 8181, cfg.HTTP.Port)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := LoadWithDefaults("")
		require.NoError(t, err)
		return *cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"bad http port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"bad grpc port", func(c *Config) { c.GRPC.Port = 0 }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
		{"rate limit without qps", func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.QPS = 0 }},
		{"zero lattice steps", func(c *Config) { c.Engine.LatticeSteps = 0 }},
		{"shock too large", func(c *Config) { c.Engine.Shock = 0.5 }},
		{"unknown normal method", func(c *Config) { c.Engine.NormalMethod = "ziggurat" }},
		{"zero iv tolerance", func(c *Config) { c.Engine.IVTolerance = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())
}

func TestGetEnv(t *testing.T) {
	t.Setenv("QUANTPRICING_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("QUANTPRICING_TEST_KEY", "default"))
	assert.Equal(t, "default", GetEnv("QUANTPRICING_TEST_MISSING", "default"))
}
