package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	LLM        LLMConfig        `yaml:"llm"`
	Auth       AuthConfig       `yaml:"auth"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Valkey     ValkeyConfig     `yaml:"valkey"`
	Blob       BlobConfig       `yaml:"blob"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Cache      CacheConfig      `yaml:"cache"`
	Chat       ChatConfig       `yaml:"chat"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig contains ChatGPT/OpenAI-compatible settings shared by the
// embedder, chat, and reranker adapters.
// TODO: support routing different features to different providers/models.
type LLMConfig struct {
	APIKey         string  `yaml:"apiKey"`
	BaseURL        string  `yaml:"baseUrl"`
	ChatModel      string  `yaml:"chatModel"`
	RerankModel    string  `yaml:"rerankModel"`
	Temperature    float32 `yaml:"temperature"`
	Deterministic  bool    `yaml:"deterministic"` // use the offline embedder, for local dev/tests
}

// AuthConfig controls API-key bearer authentication settings.
type AuthConfig struct {
	KeyPepper     string   `yaml:"keyPepper"`
	KeyPrefixLen  int      `yaml:"keyPrefixLen"`
	DefaultScopes []string `yaml:"defaultScopes"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ValkeyConfig contains connection information for the cache/queue broker.
type ValkeyConfig struct {
	Addr      string `yaml:"addr"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// BlobConfig configures the S3-compatible content-addressed blob store.
type BlobConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// IngestionConfig controls C3's upload limits and worker pool.
type IngestionConfig struct {
	MaxFileMB       int `yaml:"maxFileMb"`
	WorkerCount     int `yaml:"workerCount"`
	MaxAttempts     int `yaml:"maxAttempts"`
	BaseBackoffSec  int `yaml:"baseBackoffSec"`
}

// RetrievalConfig controls C4's fanout, fusion, and hierarchical defaults.
type RetrievalConfig struct {
	DefaultTopK      int `yaml:"defaultTopK"`
	FanoutMultiplier int `yaml:"fanoutMultiplier"`
	HierarchicalDocs int `yaml:"hierarchicalDocs"`
}

// CacheConfig controls C5's TTLs.
type CacheConfig struct {
	SearchTTL    time.Duration `yaml:"searchTtl"`
	EmbeddingTTL time.Duration `yaml:"embeddingTtl"`
}

// ChatConfig controls C6's defaults.
type ChatConfig struct {
	DefaultTopK int `yaml:"defaultTopK"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_READ_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_WRITE_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_CHAT_MODEL"); v != "" {
		cfg.LLM.ChatModel = v
	}
	if v := os.Getenv("LLM_RERANK_MODEL"); v != "" {
		cfg.LLM.RerankModel = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("LLM_DETERMINISTIC"); v != "" {
		cfg.LLM.Deterministic = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("AUTH_KEY_PEPPER"); v != "" {
		cfg.Auth.KeyPepper = v
	}
	if v := os.Getenv("AUTH_KEY_PREFIX_LEN"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Auth.KeyPrefixLen = parsed
		}
	}
	if v := os.Getenv("AUTH_DEFAULT_SCOPES"); v != "" {
		cfg.Auth.DefaultScopes = splitAndTrim(v)
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.Valkey.Addr = v
	}
	if v := os.Getenv("VALKEY_KEY_PREFIX"); v != "" {
		cfg.Valkey.KeyPrefix = v
	}
	if v := os.Getenv("BLOB_ENDPOINT"); v != "" {
		cfg.Blob.Endpoint = v
	}
	if v := os.Getenv("BLOB_ACCESS_KEY"); v != "" {
		cfg.Blob.AccessKey = v
	}
	if v := os.Getenv("BLOB_SECRET_KEY"); v != "" {
		cfg.Blob.SecretKey = v
	}
	if v := os.Getenv("BLOB_BUCKET"); v != "" {
		cfg.Blob.Bucket = v
	}
	if v := os.Getenv("BLOB_REGION"); v != "" {
		cfg.Blob.Region = v
	}
	if v := os.Getenv("INGESTION_MAX_FILE_MB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.MaxFileMB = parsed
		}
	}
	if v := os.Getenv("INGESTION_WORKER_COUNT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.WorkerCount = parsed
		}
	}
	if v := os.Getenv("INGESTION_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("INGESTION_BASE_BACKOFF_SEC"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.BaseBackoffSec = parsed
		}
	}
	if v := os.Getenv("RETRIEVAL_DEFAULT_TOPK"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.DefaultTopK = parsed
		}
	}
	if v := os.Getenv("RETRIEVAL_FANOUT_MULTIPLIER"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.FanoutMultiplier = parsed
		}
	}
	if v := os.Getenv("RETRIEVAL_HIERARCHICAL_DOCS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.HierarchicalDocs = parsed
		}
	}
	if v := os.Getenv("CACHE_SEARCH_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Cache.SearchTTL = parsed
		}
	}
	if v := os.Getenv("CACHE_EMBEDDING_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Cache.EmbeddingTTL = parsed
		}
	}
	if v := os.Getenv("CHAT_DEFAULT_TOPK"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chat.DefaultTopK = parsed
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8080",
			AllowedOrigins: []string{"*"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/chat",
					"/api/v1/documents",
				},
			},
		},
		LLM: LLMConfig{
			ChatModel:   "gpt-4o-mini",
			RerankModel: "gpt-4o-mini",
			Temperature: 0.2,
		},
		Auth: AuthConfig{
			KeyPrefixLen:  12,
			DefaultScopes: []string{"documents:write", "documents:read", "retrievals:read", "chat:write"},
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
			MinConns: 2,
		},
		Valkey: ValkeyConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "mnemosyne",
		},
		Ingestion: IngestionConfig{
			MaxFileMB:      50,
			WorkerCount:    8,
			MaxAttempts:    3,
			BaseBackoffSec: 60,
		},
		Retrieval: RetrievalConfig{
			DefaultTopK:      5,
			FanoutMultiplier: 2,
			HierarchicalDocs: 20,
		},
		Cache: CacheConfig{
			SearchTTL:    15 * time.Minute,
			EmbeddingTTL: 24 * time.Hour,
		},
		Chat: ChatConfig{
			DefaultTopK: 5,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if !c.LLM.Deterministic && strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.apiKey cannot be empty unless llm.deterministic is set")
	}
	if strings.TrimSpace(c.LLM.ChatModel) == "" {
		return errors.New("llm.chatModel cannot be empty")
	}
	if strings.TrimSpace(c.Auth.KeyPepper) == "" {
		return errors.New("auth.keyPepper cannot be empty")
	}
	if c.Auth.KeyPrefixLen <= 0 {
		return errors.New("auth.keyPrefixLen must be positive")
	}
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		return errors.New("postgres.dsn cannot be empty")
	}
	if strings.TrimSpace(c.Valkey.Addr) == "" {
		return errors.New("valkey.addr cannot be empty")
	}
	if c.Ingestion.MaxFileMB <= 0 {
		return errors.New("ingestion.maxFileMb must be positive")
	}
	if c.Ingestion.WorkerCount <= 0 {
		return errors.New("ingestion.workerCount must be positive")
	}
	if c.Ingestion.MaxAttempts <= 0 {
		return errors.New("ingestion.maxAttempts must be positive")
	}
	if c.Retrieval.DefaultTopK <= 0 {
		return errors.New("retrieval.defaultTopK must be positive")
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var result []string
	for _, part := range parts {
		val := strings.TrimSpace(part)
		if val != "" {
			result = append(result, val)
		}
	}
	return result
}
