package config

import (
	"time"

	redisclient "trending-service/internal/infra/redis"
	"trending-service/internal/infra/source"
	"trending-service/internal/infra/storage/postgres"
	"trending-service/internal/notify"
	"trending-service/internal/report"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Schedule ScheduleConfig     `yaml:"schedule"`
	Retry    RetryConfig        `yaml:"retry"`
	HTTP     source.HTTPConfig  `yaml:"http"`
	Sources  []source.Config    `yaml:"sources"`
	Report   report.Config      `yaml:"report"`
	Redis    redisclient.Config `yaml:"redis"`
	NATS     notify.Config      `yaml:"nats"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ScheduleConfig holds the daily task times and the loop cadence.
// Times are hour/minute pairs in server local time; there is no cron
// expression syntax.
type ScheduleConfig struct {
	FetchHour     int           `yaml:"fetch_hour"`
	FetchMinute   int           `yaml:"fetch_minute"`
	CleanupHour   int           `yaml:"cleanup_hour"`
	CleanupMinute int           `yaml:"cleanup_minute"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	RetentionDays int           `yaml:"retention_days"`
}

// RetryConfig holds the backoff policy for failing sources.
type RetryConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	BackoffBase float64       `yaml:"backoff_base"`
	MaxRetries  int           `yaml:"max_retries"`
}
