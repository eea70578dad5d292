// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Database, Ranking, Source, Redis, Kafka, Server, Chart, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Source   SourceConfig   `yaml:"source"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Chart    ChartConfig    `yaml:"chart"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for rankserver.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DatabaseConfig selects the Store backend. Driver "sqlite" opens Path as a
// single database file; driver "postgres" uses the Postgres section.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RankingConfig controls a single ingestion invocation.
type RankingConfig struct {
	// Source is "html" or "api".
	Source         string        `yaml:"source"`
	MaxRank        int           `yaml:"maxRank"`
	MyURL          string        `yaml:"myUrl"`
	PolitenessWait time.Duration `yaml:"politenessWait"`
	// SnapshotFirst prefetches every page and writes the JSON snapshot before
	// anything is written to the database.
	SnapshotFirst bool   `yaml:"snapshotFirst"`
	ArchiveHTML   bool   `yaml:"archiveHtml"`
	ArchiveDir    string `yaml:"archiveDir"`
}

// SourceConfig holds the ResultSource settings for both strategies.
type SourceConfig struct {
	HTML HTMLSourceConfig `yaml:"html"`
	API  APISourceConfig  `yaml:"api"`
}

// HTMLSourceConfig describes how to fetch and scrape a result page.
type HTMLSourceConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	SearchPath     string        `yaml:"searchPath"`
	ResultSelector string        `yaml:"resultSelector"`
	NextPageLabel  string        `yaml:"nextPageLabel"`
	UserAgent      string        `yaml:"userAgent"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxBytes       int64         `yaml:"maxBytes"`
}

// APISourceConfig describes the Custom Search JSON API.
type APISourceConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"apiKey"`
	EngineID  string        `yaml:"engineId"`
	Language  string        `yaml:"language"`
	PageSize  int           `yaml:"pageSize"`
	PageLimit int           `yaml:"pageLimit"`
	Timeout   time.Duration `yaml:"timeout"`
}

// KafkaConfig holds Kafka broker and topic settings. Publishing is skipped
// entirely when Enabled is false.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RunCompleted string `yaml:"runCompleted"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// ChartConfig controls where rendered charts are written.
type ChartConfig struct {
	OutputDir string `yaml:"outputDir"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), loads a .env file from the
// working directory when one exists, and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  15 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "ranking.sqlite3",
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				Database:        "ranktracker",
				User:            "ranktracker",
				Password:        "localdev",
				SSLMode:         "disable",
				MaxOpenConns:    5,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Ranking: RankingConfig{
			Source:         "html",
			MaxRank:        20,
			PolitenessWait: time.Second,
			ArchiveDir:     ".",
		},
		Source: SourceConfig{
			HTML: HTMLSourceConfig{
				BaseURL:        "https://www.google.co.jp",
				SearchPath:     "/search",
				ResultSelector: "ZINbbc xpd O9g5cc uUPGi",
				NextPageLabel:  "次のページ",
				UserAgent:      "rank-tracker/1.0",
				MaxBytes:       10 * 1024 * 1024,
			},
			API: APISourceConfig{
				Endpoint:  "https://www.googleapis.com/customsearch/v1",
				Language:  "lang_ja",
				PageSize:  10,
				PageLimit: 10,
			},
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "ranktracker-group",
			Topics: KafkaTopics{
				RunCompleted: "ranking.run-completed",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Chart: ChartConfig{
			OutputDir: "Plots",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// applyEnvOverrides reads RT_* environment variables, plus the legacy
// GCP_CUSTOM_SEARCH_* credentials, and overrides the corresponding fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RT_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("RT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RT_POSTGRES_HOST"); v != "" {
		cfg.Database.Postgres.Host = v
	}
	if v := os.Getenv("RT_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Postgres.Port = port
		}
	}
	if v := os.Getenv("RT_POSTGRES_DATABASE"); v != "" {
		cfg.Database.Postgres.Database = v
	}
	if v := os.Getenv("RT_POSTGRES_USER"); v != "" {
		cfg.Database.Postgres.User = v
	}
	if v := os.Getenv("RT_POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Postgres.Password = v
	}
	if v := os.Getenv("RT_RANKING_MY_URL"); v != "" {
		cfg.Ranking.MyURL = v
	}
	if v := os.Getenv("RT_RANKING_ARCHIVE_DIR"); v != "" {
		cfg.Ranking.ArchiveDir = v
	}
	if v := os.Getenv("GCP_CUSTOM_SEARCH_API_KEY"); v != "" {
		cfg.Source.API.APIKey = v
	}
	if v := os.Getenv("GCP_CUSTOM_SEARCH_ENGINE_ID"); v != "" {
		cfg.Source.API.EngineID = v
	}
	if v := os.Getenv("RT_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("RT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("RT_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RT_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RT_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
