package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	CatalogBaseURL    string        `env:"CATALOG_BASE_URL" envDefault:"http://localhost:8081"`
	CatalogTimeout    time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`
	CatalogFormat     string        `env:"CATALOG_FORMAT" envDefault:"envelope"`
	CatalogMaxRetries int           `env:"CATALOG_MAX_RETRIES" envDefault:"3"`

	FeedPageSize     int           `env:"FEED_PAGE_SIZE" envDefault:"10"`
	FeedScrollMargin float64       `env:"FEED_SCROLL_MARGIN" envDefault:"100"`
	FeedFetchTimeout time.Duration `env:"FEED_FETCH_TIMEOUT" envDefault:"30s"`
	FeedMaxSessions  int           `env:"FEED_MAX_SESSIONS" envDefault:"1000"`
	FeedIdleTTL      time.Duration `env:"FEED_IDLE_TTL" envDefault:"15m"`

	MirrorWorkers int `env:"MIRROR_WORKERS" envDefault:"4"`

	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://mongodb:27017"`
	MongoDBName string `env:"MONGO_DB_NAME" envDefault:"storefront"`
	MongoColl   string `env:"MONGO_COLLECTION" envDefault:"products"`

	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"kafka:29092" envSeparator:","`
	KafkaTopic    string   `env:"KAFKA_TOPIC" envDefault:"feed_page_events"`
	KafkaDLQTopic string   `env:"KAFKA_DLQ_TOPIC" envDefault:"feed_page_events_dlq"`
	KafkaGroupID  string   `env:"KAFKA_GROUP_ID" envDefault:"impression-sync-group"`

	SessionCookie string `env:"SESSION_COOKIE" envDefault:"accessToken"`
}

// Load reads the configuration from the environment, after loading a .env
// file if one exists.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.KafkaBrokers = trimAll(cfg.KafkaBrokers)
	return cfg, nil
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
