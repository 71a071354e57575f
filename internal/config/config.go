// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
	"github.com/JakeFAU/cidades-pipeline/internal/extract"
)

// Backend names accepted by the queue, enrichment and storage sections.
const (
	BackendMemory = "memory"
	BackendPubSub = "pubsub"
	BackendLocal  = "local"
	BackendGCS    = "gcs"

	ExporterNone = "none"
	ExporterGCP  = "gcp"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Source     SourceConfig     `mapstructure:"source"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Chunk      ChunkConfig      `mapstructure:"chunk"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// SourceConfig points at the tourism directory site.
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	DirectoryPath  string `mapstructure:"directory_path"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`

	// RequestsPerSecond paces fetches per host; 0 disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	RespectRobots     bool    `mapstructure:"respect_robots"`
}

// QueueConfig selects the transport carrying stubs to the detail stage.
type QueueConfig struct {
	Backend        string `mapstructure:"backend"`
	ProjectID      string `mapstructure:"project_id"`
	Topic          string `mapstructure:"topic"`
	Subscription   string `mapstructure:"subscription"`
	MaxOutstanding int    `mapstructure:"max_outstanding"`
	Capacity       int    `mapstructure:"capacity"`
}

// EnrichmentConfig selects the topic receiving one message per listing link.
type EnrichmentConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
	Subject   string `mapstructure:"subject"`
}

// StorageConfig selects where detail records are written.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Bucket  string             `mapstructure:"bucket"`
	Local   LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig configures the filesystem backend.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// DatabaseConfig enables the optional Postgres city index when DSN is set.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DispatchConfig controls stub dispatch failure handling.
type DispatchConfig struct {
	Mode string `mapstructure:"mode"`
}

// ChunkConfig bounds description segment width.
type ChunkConfig struct {
	Width int `mapstructure:"width"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig selects where finished spans are exported.
type TelemetryConfig struct {
	Exporter  string `mapstructure:"exporter"`
	ProjectID string `mapstructure:"project_id"`
}

// Load builds a Config from disk/environment. Environment variables use the
// CIDADES_ prefix with dots replaced by underscores, e.g. CIDADES_QUEUE_TOPIC.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CIDADES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "https://www.guiadoturismobrasil.com")
	v.SetDefault("source.directory_path", "/cidades")
	v.SetDefault("source.user_agent", "GuiaTurUserAgent")
	v.SetDefault("source.timeout_seconds", 10)
	v.SetDefault("source.requests_per_second", 0)
	v.SetDefault("source.burst", 1)
	v.SetDefault("source.respect_robots", false)
	v.SetDefault("queue.backend", BackendMemory)
	v.SetDefault("queue.project_id", "")
	v.SetDefault("queue.topic", "")
	v.SetDefault("queue.subscription", "")
	v.SetDefault("queue.max_outstanding", 4)
	v.SetDefault("queue.capacity", 64)
	v.SetDefault("enrichment.backend", BackendMemory)
	v.SetDefault("enrichment.project_id", "")
	v.SetDefault("enrichment.topic", "")
	v.SetDefault("enrichment.subject", "Dados da Cidade")
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.local.base_dir", "./data")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "cidades_index")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("dispatch.mode", "abort")
	v.SetDefault("chunk.width", 80)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("telemetry.exporter", ExporterNone)
	v.SetDefault("telemetry.project_id", "")
}

// Validate enforces required values. Every problem is reported at once and
// wrapped in crawler.ErrInvalidInput.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if u, err := url.Parse(c.Source.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("source.base_url must be an absolute URL, got %q", c.Source.BaseURL)
	}
	if c.Source.TimeoutSeconds <= 0 {
		add("source.timeout_seconds must be > 0")
	}
	if c.Source.RequestsPerSecond < 0 {
		add("source.requests_per_second must be >= 0")
	}

	switch c.Queue.Backend {
	case BackendMemory:
		// One directory fetch enqueues up to MaxCities stubs before any
		// consumer runs.
		if c.Queue.Capacity < extract.MaxCities {
			add("queue.capacity must be >= %d for the memory backend, got %d", extract.MaxCities, c.Queue.Capacity)
		}
	case BackendPubSub:
		if c.Queue.ProjectID == "" {
			add("queue.project_id is required for the pubsub backend")
		}
		if c.Queue.Topic == "" {
			add("queue.topic is required for the pubsub backend")
		}
	default:
		add("queue.backend must be memory or pubsub, got %q", c.Queue.Backend)
	}

	switch c.Enrichment.Backend {
	case BackendMemory:
	case BackendPubSub:
		if c.EnrichmentProject() == "" {
			add("enrichment.project_id is required for the pubsub backend")
		}
		if c.Enrichment.Topic == "" {
			add("enrichment.topic is required for the pubsub backend")
		}
	default:
		add("enrichment.backend must be memory or pubsub, got %q", c.Enrichment.Backend)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if strings.TrimSpace(c.Storage.Local.BaseDir) == "" {
			add("storage.local.base_dir is required for the local backend")
		}
	case BackendGCS:
		if c.Storage.Bucket == "" {
			add("storage.bucket is required for the gcs backend")
		}
	default:
		add("storage.backend must be memory, local or gcs, got %q", c.Storage.Backend)
	}

	switch strings.ToLower(c.Dispatch.Mode) {
	case "", "abort", "partial":
	default:
		add("dispatch.mode must be abort or partial, got %q", c.Dispatch.Mode)
	}
	if c.Server.Port <= 0 {
		add("server.port must be > 0")
	}

	switch c.Telemetry.Exporter {
	case "", ExporterNone:
	case ExporterGCP:
		if c.TelemetryProject() == "" {
			add("telemetry.project_id is required for the gcp exporter")
		}
	default:
		add("telemetry.exporter must be none or gcp, got %q", c.Telemetry.Exporter)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", crawler.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// RequireSubscription reports whether pull consumption is configured.
func (c Config) RequireSubscription() error {
	if c.Queue.Backend == BackendPubSub && c.Queue.Subscription == "" {
		return fmt.Errorf("%w: queue.subscription is required to run the worker", crawler.ErrInvalidInput)
	}
	return nil
}

// DirectoryURL is the absolute URL of the city directory page.
func (c Config) DirectoryURL() string {
	return strings.TrimRight(c.Source.BaseURL, "/") + "/" + strings.TrimLeft(c.Source.DirectoryPath, "/")
}

// FetchTimeout converts source.timeout_seconds into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// EnrichmentProject falls back to the queue project when the enrichment
// section does not name one.
func (c Config) EnrichmentProject() string {
	if c.Enrichment.ProjectID != "" {
		return c.Enrichment.ProjectID
	}
	return c.Queue.ProjectID
}

// TelemetryProject falls back to the queue project when the telemetry
// section does not name one.
func (c Config) TelemetryProject() string {
	if c.Telemetry.ProjectID != "" {
		return c.Telemetry.ProjectID
	}
	return c.Queue.ProjectID
}
