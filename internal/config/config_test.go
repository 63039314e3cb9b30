package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Boise, ID", cfg.Location)
	assert.True(t, cfg.UseRealWeather)
	assert.Equal(t, 168, cfg.HistorySize)
	assert.Equal(t, 6*time.Hour, cfg.AlertRetention.Std())
	assert.False(t, cfg.MirrorEnabled())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
agent_id: weather-go-1
location: "Seattle, WA"
use_real_weather: false
sim_poll_interval: 30s
history_size: 48
kafka:
  brokers: ["localhost:9092"]
  topic: broadcasts
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "weather-go-1", cfg.AgentID)
	assert.Equal(t, "Seattle, WA", cfg.Location)
	assert.False(t, cfg.UseRealWeather)
	assert.Equal(t, 30*time.Second, cfg.SimPollInterval.Std())
	assert.Equal(t, 48, cfg.HistorySize)

	// Fields not present keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.LivePollInterval.Std())
	assert.Equal(t, 6*time.Hour, cfg.AlertRetention.Std())

	assert.True(t, cfg.MirrorEnabled())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "broadcasts", cfg.Kafka.Topic)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, ok: true},
		{name: "zero history", mutate: func(c *Config) { c.HistorySize = 0 }, ok: false},
		{name: "zero poll interval", mutate: func(c *Config) { c.SimPollInterval = 0 }, ok: false},
		{name: "zero retention", mutate: func(c *Config) { c.AlertRetention = 0 }, ok: false},
		{
			name: "brokers without topic",
			mutate: func(c *Config) {
				c.Kafka.Brokers = []string{"localhost:9092"}
				c.Kafka.Topic = ""
			},
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
