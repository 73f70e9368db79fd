package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "prenos", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "prenos.sqlite3", cfg.Database.DSN)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "prenos.transfers", cfg.Kafka.Topic)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PRENOS_DATABASE_DRIVER", "postgres")
	t.Setenv("PRENOS_DATABASE_DSN", "postgres://prenos@localhost/prenos")
	t.Setenv("PRENOS_HTTP_ADDR", ":9000")
	t.Setenv("PRENOS_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PRENOS_DATABASE_LOCK_TIMEOUT", "250ms")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://prenos@localhost/prenos", cfg.Database.DSN)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.LockTimeout)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prenos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":7000"
  rate_limit: 0
redis:
  addr: "localhost:6379"
  cache_ttl: 1m
log:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Zero(t, cfg.HTTP.RateLimit)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_FileFoundInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prenos.yaml"), []byte("app:\n  env: staging\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.App.Env)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTP:      HTTPConfig{RateLimit: 10, RateBurst: 20},
			Database:  DatabaseConfig{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 4, MaxIdleConns: 2},
			Auth:      AuthConfig{TokenTTL: time.Hour},
			Telemetry: TelemetryConfig{SamplingRatio: 0.5},
			Kafka:     KafkaConfig{Topic: "t"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"zero pool", func(c *Config) { c.Database.MaxOpenConns = 0 }},
		{"idle exceeds open", func(c *Config) { c.Database.MaxIdleConns = 5 }},
		{"negative lock timeout", func(c *Config) { c.Database.LockTimeout = -time.Second }},
		{"negative rate", func(c *Config) { c.HTTP.RateLimit = -1 }},
		{"rate without burst", func(c *Config) { c.HTTP.RateBurst = 0 }},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"sampling above one", func(c *Config) { c.Telemetry.SamplingRatio = 1.5 }},
		{"brokers without topic", func(c *Config) { c.Kafka = KafkaConfig{Brokers: []string{"k:9092"}} }},
		{"short production secret", func(c *Config) { c.App.Env = "production"; c.Auth.JWTSecret = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDBOptions(t *testing.T) {
	opts := DatabaseConfig{MaxOpenConns: 3, MaxIdleConns: 1, LockTimeout: time.Second}.DBOptions()
	assert.Equal(t, 3, opts.MaxOpenConns)
	assert.Equal(t, 1, opts.MaxIdleConns)
	assert.Equal(t, time.Second, opts.LockTimeout)
}
