// Package config loads banwatch configuration from file and
// environment. The engine packages never read ambient process state;
// everything flows through the Config struct built here.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the banwatch service.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Report    ReportConfig    `mapstructure:"report"`
	Collector CollectorConfig `mapstructure:"collector"`
	Store     StoreConfig     `mapstructure:"store"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Resend    ResendConfig    `mapstructure:"resend"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// LogConfig locates the scanned intrusion-prevention log.
type LogConfig struct {
	Path string `mapstructure:"path"`
}

// ReportConfig controls report windows and content.
type ReportConfig struct {
	// Interval is the report period in (<h>h)?(<m>m)?(<s>s)? form,
	// validated by the interval parser at startup.
	Interval      string `mapstructure:"interval"`
	TopN          int    `mapstructure:"top_n"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// CollectorConfig controls the incremental event collector.
type CollectorConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	Retention      time.Duration `mapstructure:"retention"`
	FirstRunWindow time.Duration `mapstructure:"first_run_window"`
}

// StoreConfig selects and locates the event store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// DeliveryConfig selects the report delivery provider.
type DeliveryConfig struct {
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SMTPConfig holds SMTP delivery settings.
type SMTPConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	StartTLS bool     `mapstructure:"starttls"`
}

// ResendConfig holds Resend API delivery settings.
type ResendConfig struct {
	APIKey string   `mapstructure:"api_key"`
	From   string   `mapstructure:"from"`
	To     []string `mapstructure:"to"`
}

// WebhookConfig holds webhook delivery settings.
type WebhookConfig struct {
	URL string `mapstructure:"url"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig holds structured-logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log.path", "/var/log/fail2ban.log")

	v.SetDefault("report.interval", "1h")
	v.SetDefault("report.top_n", 5)
	v.SetDefault("report.subject_prefix", "[Fail2Ban]")

	v.SetDefault("collector.enabled", false)
	v.SetDefault("collector.interval", "10m")
	v.SetDefault("collector.retention", "24h")
	v.SetDefault("collector.first_run_window", "1h")

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", "/var/lib/banwatch/events.json")

	v.SetDefault("delivery.provider", "log")
	v.SetDefault("delivery.timeout", "20s")

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.starttls", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9215)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read from config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override file config
	v.SetEnvPrefix("BANWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
