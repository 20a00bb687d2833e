package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/quakewatch/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream feed and cache.
	FeedBaseURL  string
	FetchTimeout time.Duration
	CacheTTL     time.Duration

	// Relay loop.
	RelayInterval time.Duration
	RelayWindows  []domain.TimeWindow
	RelaySeenSize int

	// Kafka publishing of newly seen earthquakes.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaTopic         string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	relayInterval, err := parsePositiveDuration("RELAY_INTERVAL", "1m")
	if err != nil {
		return nil, err
	}

	relayWindows, err := parseWindows(sharedcfg.EnvOrDefault("RELAY_WINDOWS", "hour"))
	if err != nil {
		return nil, err
	}

	seenSize, err := parsePositiveInt("RELAY_SEEN_SIZE", 5000)
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid KAFKA_ENABLED: must be true or false")
		}
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FeedBaseURL:  strings.TrimRight(sharedcfg.EnvOrDefault("FEED_BASE_URL", domain.DefaultFeedBaseURL), "/"),
		FetchTimeout: fetchTimeout,
		CacheTTL:     cacheTTL,

		RelayInterval: relayInterval,
		RelayWindows:  relayWindows,
		RelaySeenSize: seenSize,

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         sharedcfg.EnvOrDefault("KAFKA_TOPIC", "earthquake-events"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if !strings.HasPrefix(cfg.FeedBaseURL, "http://") && !strings.HasPrefix(cfg.FeedBaseURL, "https://") {
		return nil, errors.New("invalid FEED_BASE_URL: must be an http(s) URL")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

// parseWindows splits a comma-separated window list, dropping duplicates.
func parseWindows(value string) ([]domain.TimeWindow, error) {
	var windows []domain.TimeWindow
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		w, err := domain.ParseTimeWindow(part)
		if err != nil {
			return nil, fmt.Errorf("invalid RELAY_WINDOWS: %w", err)
		}
		if !slices.Contains(windows, w) {
			windows = append(windows, w)
		}
	}
	if len(windows) == 0 {
		return nil, errors.New("invalid RELAY_WINDOWS: at least one window is required")
	}
	return windows, nil
}
