package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, 24, cfg.Tokens.Length)

	require.Equal(t, 512, cfg.Codes.PixelWidth)
	require.Equal(t, 0, cfg.Codes.MarginModules)
	require.Equal(t, "high", cfg.Codes.RecoveryLevel)

	require.Equal(t, 350*time.Millisecond, cfg.Scanner.Cooldown)
	require.Equal(t, 32, cfg.Scanner.FrameBuffer)
	require.Equal(t, 2*time.Second, cfg.CheckIn.Timeout)

	require.False(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@hourly", cfg.Maintenance.Schedule)
	require.Equal(t, 48*time.Hour, cfg.Maintenance.EventRetention)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)
	require.True(t, cfg.Monitoring.Health.Enabled, "defaults apply to untouched sections")
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 16, cfg.Tokens.Length)
	require.Equal(t, 200*time.Millisecond, cfg.Scanner.Cooldown)
	require.Equal(t, 5*time.Second, cfg.CheckIn.Timeout)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestDatabaseSettingsMapping(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	dbCfg := cfg.DatabaseSettings()
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.example.com", dbCfg.Host)
	require.Equal(t, "gatepass", dbCfg.Name)
	require.Equal(t, "secret", dbCfg.Password)
}

func TestEncodeOptionsMapping(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	opts := cfg.EncodeOptions()
	require.Equal(t, 512, opts.TargetPixelWidth)
	require.Equal(t, 0, opts.MarginModules)
	require.Equal(t, "high", opts.RecoveryLevel)
}
