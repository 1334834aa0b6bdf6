package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: sqlite
  path: /tmp/cordid.db
monitor:
  poll_timeout: 250ms
  error_backoff: 2s
logging:
  level: debug
  format: json
mqtt:
  enabled: true
  host: broker.lan
  port: 8883
  qos: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/cordid.db", cfg.Storage.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.PollTimeout)
	assert.Equal(t, 2*time.Second, cfg.Monitor.ErrorBackoff)
	assert.Equal(t, "/sys", cfg.Monitor.SysfsRoot, "unset keys keep defaults")
	assert.True(t, cfg.Monitor.ScanExisting)
	assert.Equal(t, "broker.lan", cfg.MQTT.Host)
	assert.Equal(t, 2, cfg.MQTT.QoS)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Storage.Backend)
	assert.Equal(t, time.Second, cfg.Monitor.PollTimeout)
	assert.Equal(t, "history.json", filepath.Base(cfg.Storage.Path))
	assert.False(t, cfg.MQTT.Enabled)
	assert.False(t, cfg.InfluxDB.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CORDID_STORAGE_PATH", "/var/lib/cordid/history.json")
	t.Setenv("CORDID_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/cordid/history.json", cfg.Storage.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad backend", func(c *Config) { c.Storage.Backend = "csv" }, "storage.backend"},
		{"zero poll", func(c *Config) { c.Monitor.PollTimeout = 0 }, "monitor.poll_timeout"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"mqtt qos", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"influx org", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, defaultConfig().Validate())
}
