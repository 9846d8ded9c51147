package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "Kolkata,IN", cfg.Weather.Location)
	assert.Equal(t, "mqtt", cfg.Moisture.Source)
	assert.Equal(t, "mqtt", cfg.Control.Transport)
	assert.Equal(t, "none", cfg.Journal.Driver)
	assert.Equal(t, uint64(42), cfg.Model.Seed)
	assert.Equal(t, 100, cfg.Model.Samples)
	assert.Equal(t, 100, cfg.Model.Estimators)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.SourceTimeout())
	assert.Equal(t, 3*time.Second, cfg.Pipeline.ControlTimeout())
	assert.Equal(t, 15*time.Minute, cfg.Moisture.MaxAge())
	assert.Equal(t, 10*time.Second, cfg.Sensor.Interval())
	assert.Equal(t, time.Minute, cfg.Feed.AggregateEvery())
	assert.Equal(t, "sensor/data/#", cfg.Feed.RawTopic)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
moisture:
  source: influx
control:
  transport: grpc
  grpc_addr: device:50051
pipeline:
  source_timeout_ms: 750
journal:
  driver: sqlite
  path: /tmp/journal.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "influx", cfg.Moisture.Source)
	assert.Equal(t, "grpc", cfg.Control.Transport)
	assert.Equal(t, "device:50051", cfg.Control.GRPCAddr)
	assert.Equal(t, 750*time.Millisecond, cfg.Pipeline.SourceTimeout())
	assert.Equal(t, "sqlite", cfg.Journal.Driver)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Path)
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("IRRIGATION_WEATHER_LOCATION", "Pune,IN")
	t.Setenv("IRRIGATION_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Pune,IN", cfg.Weather.Location)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadRejectsUnknownDrivers(t *testing.T) {
	chdirTemp(t)
	t.Setenv("IRRIGATION_CONTROL_TRANSPORT", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control.transport")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "console"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))
	assert.True(t, zap.L().Core().Enabled(zap.WarnLevel))

	require.Error(t, InitLogger(LogConfig{Level: "chatty", Format: "json"}))
}
