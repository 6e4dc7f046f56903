package config

import (
	"time"

	redisclient "github.com/vietddude/orderflow/internal/infra/redis"
	"github.com/vietddude/orderflow/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Database    postgres.Config    `yaml:"database"`
	Redis       redisclient.Config `yaml:"redis"`
	Stream      StreamConfig       `yaml:"stream"`
	Retry       RetryConfig        `yaml:"retry"`
	Processor   ProcessorConfig    `yaml:"processor"`
	Aggregation AggregationConfig  `yaml:"aggregation"`
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

// StreamConfig holds settings for the order stream.
type StreamConfig struct {
	Topic      string `yaml:"topic"`
	Partitions int    `yaml:"partitions"`
}

// RetryConfig holds the backoff policy for temporary failures.
type RetryConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// ProcessorConfig holds order validation settings.
type ProcessorConfig struct {
	MaxPrice     float32       `yaml:"max_price"`
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// AggregationConfig holds windowed aggregation settings. Retention must
// exceed the window size or windows are evicted before they can be queried.
type AggregationConfig struct {
	WindowSize time.Duration `yaml:"window_size"`
	Retention  time.Duration `yaml:"retention"`
}
