package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Schedule.FetchHour == 0 && cfg.Schedule.FetchMinute == 0 {
		cfg.Schedule.FetchHour = 8
	}
	if cfg.Schedule.CleanupHour == 0 && cfg.Schedule.CleanupMinute == 0 {
		cfg.Schedule.CleanupHour = 3
	}
	if cfg.Schedule.PollInterval <= 0 {
		cfg.Schedule.PollInterval = time.Minute
	}
	if cfg.Schedule.RetentionDays <= 0 {
		cfg.Schedule.RetentionDays = 30
	}
	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = 30 * time.Second
	}

	return &cfg, nil
}
