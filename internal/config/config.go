// Package config loads service configuration from an optional YAML file and
// the environment via viper. Environment variables use the ENGINE_ prefix
// with underscores, e.g. ENGINE_DATABASE_DSN.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Spider    SpiderConfig    `mapstructure:"spider"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Producers ProducersConfig `mapstructure:"producers"`
}

// ProducersConfig lists the seed URLs each generation job type works from.
type ProducersConfig struct {
	NewsSeeds       []string `mapstructure:"news_seeds"`
	CalendarSeeds   []string `mapstructure:"calendar_seeds"`
	ComplianceSeeds []string `mapstructure:"compliance_seeds"`
	LawChangeSeeds  []string `mapstructure:"law_change_seeds"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SpiderConfig drives the remote scrape API strategy. With an empty APIKey
// the fetcher falls back to plain HTTP as the primary strategy.
type SpiderConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type BrowserConfig struct {
	RemoteURL      string        `mapstructure:"remote_url"`
	ConnectRetries int           `mapstructure:"connect_retries"`
	BackoffStep    time.Duration `mapstructure:"backoff_step"`
	BackoffCap     time.Duration `mapstructure:"backoff_cap"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout"`
	LocalFallback  bool          `mapstructure:"local_fallback"`
}

type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

type EmbeddingConfig struct {
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	Collection string `mapstructure:"collection"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type IngestConfig struct {
	ChunkSize      int    `mapstructure:"chunk_size"`
	ChunkOverlap   int    `mapstructure:"chunk_overlap"`
	CrawlNamespace string `mapstructure:"crawl_namespace"`
}

type SchedulerConfig struct {
	QueueDrainInterval time.Duration `mapstructure:"queue_drain_interval"`
	CrawlSweepInterval time.Duration `mapstructure:"crawl_sweep_interval"`
	URLSweepInterval   time.Duration `mapstructure:"url_sweep_interval"`
}

type WorkerConfig struct {
	PoolSize     int `mapstructure:"pool_size"`
	CrawlWorkers int `mapstructure:"crawl_workers"`
}

// CrawlConfig throttles and filters the frontier. RPS <= 0 disables the
// per-host rate limit; skip patterns extend the built-in binary-asset list.
type CrawlConfig struct {
	RPS          float64  `mapstructure:"rps"`
	Burst        int      `mapstructure:"burst"`
	SkipPatterns []string `mapstructure:"skip_patterns"`
}

type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
}

type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// Load reads configuration from path (optional) and the environment,
// applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("logging.development", false)

	v.SetDefault("spider.endpoint", "https://api.spider.cloud/crawl")
	v.SetDefault("spider.timeout", 60*time.Second)

	v.SetDefault("browser.connect_retries", 3)
	v.SetDefault("browser.backoff_step", 5*time.Second)
	v.SetDefault("browser.backoff_cap", 20*time.Second)
	v.SetDefault("browser.nav_timeout", 30*time.Second)
	v.SetDefault("browser.local_fallback", false)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "knowledge")

	v.SetDefault("ingest.chunk_size", 20000)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("ingest.crawl_namespace", "knowledge")

	v.SetDefault("scheduler.queue_drain_interval", 10*time.Second)
	v.SetDefault("scheduler.crawl_sweep_interval", 10*time.Second)
	v.SetDefault("scheduler.url_sweep_interval", 10*time.Second)

	v.SetDefault("worker.pool_size", 10)
	v.SetDefault("worker.crawl_workers", 5)

	v.SetDefault("crawl.rps", 2.0)
	v.SetDefault("crawl.burst", 4)

	v.SetDefault("archive.provider", "noop")
	v.SetDefault("publisher.provider", "noop")
}

// Validate fails fast on configuration the process cannot run without.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.LLM.APIKey == "" && c.LLM.Provider == "openai" {
		return fmt.Errorf("llm.api_key is required for provider %q", c.LLM.Provider)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	}
	if c.Worker.PoolSize <= 0 {
		return fmt.Errorf("worker.pool_size must be positive, got %d", c.Worker.PoolSize)
	}
	if c.Browser.ConnectRetries <= 0 {
		return fmt.Errorf("browser.connect_retries must be positive, got %d", c.Browser.ConnectRetries)
	}
	if c.Archive.Provider == "gcs" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.provider is 'gcs' but archive.bucket is not set")
	}
	if c.Publisher.Provider == "pubsub" && (c.Publisher.ProjectID == "" || c.Publisher.TopicID == "") {
		return fmt.Errorf("publisher.provider is 'pubsub' but project_id or topic_id is not set")
	}
	return nil
}
