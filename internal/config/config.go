package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts YAML values like "30s" or "5m".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds runtime configuration for the weather agent.
type Config struct {
	// AgentID is the unique identifier assigned by the host runtime.
	AgentID string `yaml:"agent_id"`

	// Location is the monitored place as "City, ST".
	Location string `yaml:"location"`

	// UseRealWeather selects the live NOAA provider; when false the agent
	// runs purely on the simulator.
	UseRealWeather bool `yaml:"use_real_weather"`

	// NOAAUserAgent identifies this agent to the NOAA API.
	NOAAUserAgent string `yaml:"noaa_user_agent"`

	// LivePollInterval is the monitoring cadence when live data is in use.
	LivePollInterval Duration `yaml:"live_poll_interval"`

	// SimPollInterval is the monitoring cadence in simulation mode
	// (one tick per simulated hour).
	SimPollInterval Duration `yaml:"sim_poll_interval"`

	// HistorySize bounds the reading history (hourly readings).
	HistorySize int `yaml:"history_size"`

	// AlertRetention is how long a fired alert stays active.
	AlertRetention Duration `yaml:"alert_retention"`

	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string `yaml:"metrics_addr"`

	// Kafka configures the optional broadcast mirror. Disabled when no
	// brokers are listed.
	Kafka KafkaConfig `yaml:"kafka"`

	// LogLevel is the zerolog level name.
	LogLevel string `yaml:"log_level"`
}

// KafkaConfig configures the broadcast mirror producer.
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	MaxRetries   int      `yaml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff"`
	WriteTimeout Duration `yaml:"write_timeout"`
	BufferSize   int      `yaml:"buffer_size"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		Location:         "Boise, ID",
		UseRealWeather:   true,
		NOAAUserAgent:    "skywatch/1.0 (weather-monitoring@community.org)",
		LivePollInterval: Duration(5 * time.Minute),
		SimPollInterval:  Duration(time.Minute),
		HistorySize:      168, // 7 days of hourly readings
		AlertRetention:   Duration(6 * time.Hour),
		LogLevel:         "info",
		Kafka: KafkaConfig{
			Topic:        "agent-broadcasts",
			MaxRetries:   3,
			RetryBackoff: Duration(100 * time.Millisecond),
			WriteTimeout: Duration(10 * time.Second),
			BufferSize:   256,
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for values the agent cannot run with.
func (c *Config) Validate() error {
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive, got %d", c.HistorySize)
	}
	if c.LivePollInterval <= 0 || c.SimPollInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.AlertRetention <= 0 {
		return fmt.Errorf("alert_retention must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are configured")
	}
	return nil
}

// MirrorEnabled reports whether the Kafka broadcast mirror is configured.
func (c *Config) MirrorEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
