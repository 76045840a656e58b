// Package config loads pipeline configuration from a YAML file with
// environment variable overrides and optional .env files.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/flori92/FloDrama-sub001/internal/logger"
)

// Config is the process-wide configuration. It is constructed once at
// startup and passed explicitly to every component; no package-level
// client singletons.
type Config struct {
	Logging  logger.Config  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Search   SearchConfig   `yaml:"search"`
	NLP      NLPConfig      `yaml:"nlp"`
	Personal PersonalConfig `yaml:"personalization"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Crawl     CrawlConfig     `yaml:"crawl"`

	// SourcesFile points at the source registry definition.
	SourcesFile string `env:"SOURCES_FILE" yaml:"sources_file"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `env:"DB_HOST"     yaml:"host"`
	Port     string `env:"DB_PORT"     yaml:"port"`
	User     string `env:"DB_USER"     yaml:"user"`
	Password string `env:"DB_PASSWORD" yaml:"password"`
	DBName   string `env:"DB_NAME"     yaml:"dbname"`
	SSLMode  string `env:"DB_SSLMODE"  yaml:"sslmode"`
}

// RedisConfig holds the settings for the task queue and last-update cache.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// SearchConfig holds the Elasticsearch settings.
type SearchConfig struct {
	URL         string `env:"ELASTICSEARCH_URL"      yaml:"url"`
	Username    string `env:"ELASTICSEARCH_USER"     yaml:"username"`
	Password    string `env:"ELASTICSEARCH_PASSWORD" yaml:"password"`
	IndexPrefix string `env:"ELASTICSEARCH_PREFIX"   yaml:"index_prefix"`
	MaxRetries  int    `yaml:"max_retries"`
}

// NLPConfig holds the sentiment/entity extraction service settings.
type NLPConfig struct {
	Endpoint          string        `env:"NLP_ENDPOINT" yaml:"endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	EntityConfidence  float64       `yaml:"entity_confidence"`
	QualityThreshold  float64       `yaml:"quality_threshold"`
	PopularityMaxAge  time.Duration `yaml:"popularity_max_age"`
	SimilarResultSize int           `yaml:"similar_result_size"`
}

// PersonalConfig holds the best-effort personalization push target.
type PersonalConfig struct {
	Endpoint string `env:"PERSONALIZATION_ENDPOINT" yaml:"endpoint"`
}

// SchedulerConfig controls the scheduling loop.
type SchedulerConfig struct {
	CycleInterval   time.Duration `yaml:"cycle_interval"`
	CycleBackoff    time.Duration `yaml:"cycle_backoff"`
	RefreshAfter    time.Duration `yaml:"refresh_after"`
	BacklogWarnSize int64         `yaml:"backlog_warn_size"`
}

// CrawlConfig controls crawl runs.
type CrawlConfig struct {
	MinItems       int           `env:"MIN_ITEMS_PER_SOURCE" yaml:"min_items"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestDelay   time.Duration `yaml:"request_delay"`
	DiscoverLimit  int           `yaml:"discover_limit"`
	LeaseTimeout   time.Duration `yaml:"lease_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

// SetDefaults applies defaults for anything the file left unset.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()

	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Search.URL == "" {
		c.Search.URL = "http://localhost:9200"
	}
	if c.Search.IndexPrefix == "" {
		c.Search.IndexPrefix = "flodrama"
	}
	if c.Search.MaxRetries <= 0 {
		c.Search.MaxRetries = 3
	}
	if c.NLP.Timeout <= 0 {
		c.NLP.Timeout = 15 * time.Second
	}
	if c.NLP.EntityConfidence <= 0 {
		c.NLP.EntityConfidence = 0.8
	}
	if c.NLP.QualityThreshold <= 0 {
		c.NLP.QualityThreshold = 70
	}
	if c.NLP.PopularityMaxAge <= 0 {
		c.NLP.PopularityMaxAge = 6 * time.Hour
	}
	if c.NLP.SimilarResultSize <= 0 {
		c.NLP.SimilarResultSize = 5
	}
	if c.Scheduler.CycleInterval <= 0 {
		c.Scheduler.CycleInterval = 5 * time.Minute
	}
	if c.Scheduler.CycleBackoff <= 0 {
		c.Scheduler.CycleBackoff = time.Minute
	}
	if c.Scheduler.RefreshAfter <= 0 {
		c.Scheduler.RefreshAfter = 7 * 24 * time.Hour
	}
	if c.Scheduler.BacklogWarnSize <= 0 {
		c.Scheduler.BacklogWarnSize = 1000
	}
	if c.Crawl.MinItems <= 0 {
		c.Crawl.MinItems = 200
	}
	if c.Crawl.RequestTimeout <= 0 {
		c.Crawl.RequestTimeout = 10 * time.Second
	}
	if c.Crawl.MaxRetries <= 0 {
		c.Crawl.MaxRetries = 3
	}
	if c.Crawl.RequestDelay <= 0 {
		c.Crawl.RequestDelay = 500 * time.Millisecond
	}
	if c.Crawl.DiscoverLimit <= 0 {
		c.Crawl.DiscoverLimit = 300
	}
	if c.Crawl.LeaseTimeout <= 0 {
		c.Crawl.LeaseTimeout = 10 * time.Minute
	}
	if c.Crawl.PollInterval <= 0 {
		c.Crawl.PollInterval = 2 * time.Second
	}
	if c.SourcesFile == "" {
		c.SourcesFile = "sources.yml"
	}
}

// Validate checks settings that have no sensible fallback.
func (c *Config) Validate() error {
	if c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database user and dbname are required")
	}
	if c.NLP.EntityConfidence < 0 || c.NLP.EntityConfidence > 1 {
		return fmt.Errorf("entity_confidence must be in [0,1], got %v", c.NLP.EntityConfidence)
	}
	return nil
}
