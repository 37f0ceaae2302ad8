// Package config provides unified configuration loading for the hybrid
// store: defaults, an optional YAML file, and environment overrides, in
// that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the hybrid store.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	KV            KVConfig            `yaml:"kv"`
	VectorIndex   VectorIndexConfig   `yaml:"vector_index"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Cache         CacheConfig         `yaml:"cache"`
	Ingestion     IngestionConfig     `yaml:"ingestion"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds listen settings for the out-of-scope HTTP/RPC
// boundary (REST/Connect-RPC controllers); the core itself never binds a
// socket, but cmd/ binaries read this section to do so.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// KVConfig holds key-value store settings. The btree-backed MemoryStore
// has no connection settings of its own; CompactOnBoot asks the engine
// to run Compact after the id allocator's boot scan.
type KVConfig struct {
	CompactOnBoot bool `yaml:"compact_on_boot"`
}

// VectorIndexConfig holds vector collection settings.
type VectorIndexConfig struct {
	CollectionName string  `yaml:"collection_name"`
	VectorSize     int     `yaml:"vector_size"`
	Distance       string  `yaml:"distance"` // cosine or dot
	ScoreThreshold float32 `yaml:"score_threshold"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider      string        `yaml:"provider"` // http or mock
	EmbeddingType string        `yaml:"embedding_type"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Dimension     int           `yaml:"dimension"`
	Timeout       time.Duration `yaml:"timeout"`
}

// CacheConfig holds cache-core settings plus the optional Redis-backed
// response cache that sits in front of search.
type CacheConfig struct {
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	StatsInterval time.Duration `yaml:"stats_interval"`

	ResponseCacheEnabled bool          `yaml:"response_cache_enabled"`
	RedisAddr            string        `yaml:"redis_addr"`
	RedisPassword        string        `yaml:"redis_password"`
	RedisDB              int           `yaml:"redis_db"`
	ResponseCacheTTL     time.Duration `yaml:"response_cache_ttl"`
}

// IngestionConfig holds ingestion pipeline settings.
type IngestionConfig struct {
	MinParagraphLength int  `yaml:"min_paragraph_length"`
	MaxParagraphLength int  `yaml:"max_paragraph_length"`
	JSONMaxDepth       int  `yaml:"json_max_depth"`
	JSONIncludeArrays  bool `yaml:"json_include_arrays"`
}

// AuditConfig holds the reconciliation/inconsistency audit sink's
// connection settings.
type AuditConfig struct {
	Driver      string `yaml:"driver"` // sqlite or postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	BufferSize  int    `yaml:"buffer_size"`
	FlushBatch  int    `yaml:"flush_batch"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment
// overrides. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for
// development: a 1536-dimension cosine collection, 50/2000 paragraph
// thresholds, JSON depth 10, and a local SQLite audit sink.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8085,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		KV: KVConfig{
			CompactOnBoot: false,
		},
		VectorIndex: VectorIndexConfig{
			CollectionName: "points",
			VectorSize:     1536,
			Distance:       "cosine",
			ScoreThreshold: 0.0,
		},
		Embedding: EmbeddingConfig{
			Provider:      "mock",
			EmbeddingType: "text",
			Model:         "google/gemini-embedding-001",
			BaseURL:       "https://openrouter.ai/api/v1",
			Dimension:     1536,
			Timeout:       30 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL:           5 * time.Minute,
			StatsInterval:        1 * time.Second,
			ResponseCacheEnabled: false,
			RedisAddr:            "localhost:6379",
			RedisDB:              0,
			ResponseCacheTTL:     5 * time.Minute,
		},
		Ingestion: IngestionConfig{
			MinParagraphLength: 50,
			MaxParagraphLength: 2000,
			JSONMaxDepth:       10,
			JSONIncludeArrays:  true,
		},
		Audit: AuditConfig{
			Driver:     "sqlite",
			SQLitePath: "/tmp/hybridstore-audit.db",
			BufferSize: 256,
			FlushBatch: 32,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.VectorIndex.Distance != "cosine" && c.VectorIndex.Distance != "dot" {
		return fmt.Errorf("invalid vector distance: %s", c.VectorIndex.Distance)
	}
	if c.VectorIndex.VectorSize <= 0 {
		return fmt.Errorf("vector_size must be positive")
	}
	if c.Embedding.Provider != "http" && c.Embedding.Provider != "mock" {
		return fmt.Errorf("invalid embedding provider: %s", c.Embedding.Provider)
	}
	if c.Audit.Driver != "sqlite" && c.Audit.Driver != "postgres" {
		return fmt.Errorf("invalid audit driver: %s", c.Audit.Driver)
	}
	if c.Ingestion.MinParagraphLength <= 0 || c.Ingestion.MaxParagraphLength <= c.Ingestion.MinParagraphLength {
		return fmt.Errorf("invalid paragraph length bounds")
	}
	return nil
}

// AuditDSN returns the appropriate audit sink connection string.
func (c *Config) AuditDSN() string {
	if c.Audit.Driver == "sqlite" {
		return c.Audit.SQLitePath
	}
	return c.Audit.PostgresDSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("VECTOR_DISTANCE"); v != "" {
		cfg.VectorIndex.Distance = v
	}
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("AUDIT_DRIVER"); v != "" {
		cfg.Audit.Driver = v
	}
	if v := os.Getenv("AUDIT_POSTGRES_DSN"); v != "" {
		cfg.Audit.PostgresDSN = v
		cfg.Audit.Driver = "postgres"
	}
	if v := os.Getenv("AUDIT_SQLITE_PATH"); v != "" {
		cfg.Audit.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v, ok := os.LookupEnv("VECTOR_SIZE"); ok {
		var size int
		if _, err := fmt.Sscanf(v, "%d", &size); err == nil {
			cfg.VectorIndex.VectorSize = size
		}
	}
}

// ResolveRelativePath resolves a path relative to the config file
// location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
