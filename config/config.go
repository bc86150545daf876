// Package config loads engine settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type KafkaConfig struct {
	Enabled           bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers           []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	FillsTopic        string        `env:"KAFKA_FILLS_TOPIC" envDefault:"lob.fills"`
	TelemetryTopic    string        `env:"KAFKA_TELEMETRY_TOPIC" envDefault:"lob.telemetry"`
	BroadcastInterval time.Duration `env:"KAFKA_BROADCAST_INTERVAL" envDefault:"500ms"`
	TelemetryInterval time.Duration `env:"KAFKA_TELEMETRY_INTERVAL" envDefault:"5s"`
}

type Config struct {
	Symbol             string        `env:"SYMBOL" envDefault:"btcusdt"`
	JournalDir         string        `env:"JOURNAL_DIR" envDefault:"data/journal"`
	JournalSegmentSize int64         `env:"JOURNAL_SEGMENT_SIZE" envDefault:"67108864"`
	OutboxDir          string        `env:"OUTBOX_DIR" envDefault:"data/outbox"`
	RenderInterval     time.Duration `env:"RENDER_INTERVAL" envDefault:"250ms"`
	EpochInterval      time.Duration `env:"EPOCH_INTERVAL" envDefault:"100ms"`
	DepthLevels        int           `env:"DEPTH_LEVELS" envDefault:"10"`
	Debug              bool          `env:"DEBUG" envDefault:"false"`

	Kafka KafkaConfig
}

// Load reads .env if present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.JournalSegmentSize <= 0 {
		return Config{}, fmt.Errorf("config: journal segment size must be positive")
	}
	return cfg, nil
}

func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
