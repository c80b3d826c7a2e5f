// Package config loads service settings from environment variables and the
// optional YAML sources file (feed list, watchlist, scoring weights).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/osint-monitor/internal/domain"
)

// Config holds all service settings, populated from environment variables
// plus the sources file.
type Config struct {
	DBPath       string
	GeoIndexPath string
	HTTPAddr     string
	LogLevel     string
	LogFormat    string

	ShutdownTimeout time.Duration
	FeedLimit       int
	FeedTimeout     time.Duration

	// Scorer selects the ingest scoring heuristic: "keyword" or "watchlist".
	Scorer string

	// Kafka sink; disabled when no brokers are configured.
	KafkaBrokers   []string
	KafkaSinkTopic string

	// Ingestion surface from the sources file (or compiled-in defaults).
	Sources   []domain.SourceFeed
	Watchlist []string
	Weights   domain.Weights
}

// sourcesFile is the YAML shape of the optional SOURCES_FILE.
type sourcesFile struct {
	Sources   []domain.SourceFeed `yaml:"sources"`
	Watchlist []string            `yaml:"watchlist"`
	Weights   *domain.Weights     `yaml:"weights"`
}

// Load reads configuration from environment variables, applying defaults
// where unset, and merges in the sources file when SOURCES_FILE points at
// one.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	feedTimeout, err := parseDurationEnv("FEED_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	feedLimit, err := parseIntEnv("FEED_LIMIT", 35)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBPath:          envOrDefault("DB_PATH", "events.db"),
		GeoIndexPath:    envOrDefault("GEO_INDEX_PATH", "data/geo_index.csv"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		FeedLimit:       feedLimit,
		FeedTimeout:     feedTimeout,
		Scorer:          envOrDefault("SCORER", "keyword"),
		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic:  envOrDefault("KAFKA_SINK_TOPIC", "osint-events"),
		Sources:         defaultSources(),
		Watchlist:       defaultWatchlist(),
		Weights:         domain.DefaultWeights(),
	}

	if path := os.Getenv("SOURCES_FILE"); path != "" {
		if err := cfg.loadSourcesFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_SINK_TOPIC is empty")
	}
	if cfg.FeedLimit <= 0 {
		return nil, errors.New("FEED_LIMIT must be positive")
	}
	if cfg.Scorer != "keyword" && cfg.Scorer != "watchlist" {
		return nil, fmt.Errorf("SCORER must be keyword or watchlist, got %q", cfg.Scorer)
	}
	for _, s := range cfg.Sources {
		if s.Name == "" || s.URL == "" {
			return nil, fmt.Errorf("source entry missing name or url: %+v", s)
		}
	}

	return cfg, nil
}

// SinkEnabled reports whether the Kafka sink should be wired.
func (c *Config) SinkEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) loadSourcesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sources file: %w", err)
	}
	var sf sourcesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse sources file %s: %w", path, err)
	}
	if len(sf.Sources) > 0 {
		c.Sources = sf.Sources
	}
	if len(sf.Watchlist) > 0 {
		c.Watchlist = sf.Watchlist
	}
	if sf.Weights != nil {
		c.Weights = *sf.Weights
	}
	return nil
}

// defaultSources mirrors the stock feed list shipped with the service.
func defaultSources() []domain.SourceFeed {
	return []domain.SourceFeed{
		{Name: "BBC World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml", Domain: "geopolitics"},
		{Name: "Al Jazeera", URL: "https://www.aljazeera.com/xml/rss/all.xml", Domain: "geopolitics"},
		{Name: "The Hacker News", URL: "https://thehackernews.com/feeds/posts/default?alt=rss", Domain: "cti"},
		{Name: "KrebsOnSecurity", URL: "https://krebsonsecurity.com/feed/", Domain: "cti"},
	}
}

func defaultWatchlist() []string {
	return []string{
		"ransomware", "phishing", "deepfake",
		"iran", "china", "russia", "argentina",
		"election", "sanction", "ceasefire", "apt", "cve",
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
