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

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Stream.Topic == "" {
		cfg.Stream.Topic = "orders"
	}
	if cfg.Stream.Partitions == 0 {
		cfg.Stream.Partitions = 3
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = 1 * time.Second
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 5.0
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 4
	}
	if cfg.Processor.MaxPrice == 0 {
		cfg.Processor.MaxPrice = 10000
	}
	if cfg.Processor.CheckTimeout == 0 {
		cfg.Processor.CheckTimeout = 2 * time.Second
	}
	if cfg.Aggregation.WindowSize == 0 {
		cfg.Aggregation.WindowSize = 10 * time.Second
	}
	if cfg.Aggregation.Retention == 0 {
		cfg.Aggregation.Retention = 5 * time.Minute
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Stream.Partitions < 1 {
		return fmt.Errorf("stream.partitions must be >= 1, got %d", cfg.Stream.Partitions)
	}
	if cfg.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1, got %v", cfg.Retry.Multiplier)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Aggregation.Retention <= cfg.Aggregation.WindowSize {
		return fmt.Errorf(
			"aggregation.retention (%v) must exceed window_size (%v)",
			cfg.Aggregation.Retention,
			cfg.Aggregation.WindowSize,
		)
	}
	return nil
}
