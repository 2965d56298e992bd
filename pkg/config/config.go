package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for askdb-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Relational store (the dataset being queried)
	Database DatabaseConfig `yaml:"database"`

	// Vector store (schema index + semantic cache)
	Redis RedisConfig `yaml:"redis"`

	// Language model endpoints
	AI AIConfig `yaml:"ai"`

	// Query pipeline policy knobs
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// DatabaseConfig holds PostgreSQL configuration for the queried dataset.
// Credentials may alternatively be resolved through a secret identifier
// (see SecretID) instead of being set directly.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"askdb"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"postgres"`
	Schema         string `yaml:"schema" env:"PGSCHEMA" env-default:"public"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`

	// SecretID names a secret holding host/port/user/password. When set, the
	// secret resolver output overrides the fields above at startup.
	SecretID string `yaml:"secret_id" env:"DB_SECRET_ID" env-default:""`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds configuration for the vector store.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// AIConfig holds language model endpoints and model identifiers.
// Chat (generation/summarization) and embeddings may point at different
// endpoints; embeddings are always served over the OpenAI-compatible API.
type AIConfig struct {
	// Provider selects the chat backend: "openai" (any OpenAI-compatible
	// endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`

	LLMBaseURL string `yaml:"llm_base_url" env:"AI_LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	LLMModel   string `yaml:"llm_model" env:"AI_LLM_MODEL" env-default:"gpt-4o"`
	LLMAPIKey  string `yaml:"-" env:"AI_LLM_API_KEY"` // Secret - not in YAML

	EmbeddingBaseURL string `yaml:"embedding_base_url" env:"AI_EMBEDDING_BASE_URL" env-default:""`
	EmbeddingModel   string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	EmbeddingAPIKey  string `yaml:"-" env:"AI_EMBEDDING_API_KEY"` // Secret - not in YAML

	// EmbeddingDimension is the fixed vector dimension D. Schema fragments
	// and cached questions share this vector space.
	EmbeddingDimension int `yaml:"embedding_dimension" env:"AI_EMBEDDING_DIMENSION" env-default:"1536"`

	// RequestTimeout bounds every model call.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"AI_REQUEST_TIMEOUT" env-default:"30s"`
}

// EffectiveEmbeddingBaseURL falls back to the LLM endpoint when no dedicated
// embedding endpoint is configured.
func (c *AIConfig) EffectiveEmbeddingBaseURL() string {
	if c.EmbeddingBaseURL != "" {
		return c.EmbeddingBaseURL
	}
	return c.LLMBaseURL
}

// EffectiveEmbeddingAPIKey falls back to the LLM key.
func (c *AIConfig) EffectiveEmbeddingAPIKey() string {
	if c.EmbeddingAPIKey != "" {
		return c.EmbeddingAPIKey
	}
	return c.LLMAPIKey
}

// PipelineConfig exposes the pipeline policy knobs. There is no single
// correct value for the similarity threshold, TTL, or capacity; the defaults
// here favor correctness and conservative resource use over hit rate.
type PipelineConfig struct {
	// TopK is the number of schema fragments retrieved as generation context.
	TopK int `yaml:"top_k" env:"PIPELINE_TOP_K" env-default:"5"`

	// CacheThreshold is the maximum cosine distance between a question and a
	// cached question for the cache entry to count as a hit.
	CacheThreshold float64 `yaml:"cache_threshold" env:"PIPELINE_CACHE_THRESHOLD" env-default:"0.15"`

	// SchemaMaxDistance filters schema fragments that are too far from the
	// question to be useful context.
	SchemaMaxDistance float64 `yaml:"schema_max_distance" env:"PIPELINE_SCHEMA_MAX_DISTANCE" env-default:"0.9"`

	// CacheTTL is how long a cache entry stays visible.
	CacheTTL time.Duration `yaml:"cache_ttl" env:"PIPELINE_CACHE_TTL" env-default:"24h"`

	// CacheCapacity caps entries per namespace; oldest-by-last-hit entries
	// are evicted on overflow.
	CacheCapacity int `yaml:"cache_capacity" env:"PIPELINE_CACHE_CAPACITY" env-default:"10000"`

	// ReexecuteOnHit re-runs the cached SQL on a cache hit instead of
	// returning the stored result snapshot. Costs latency, avoids staleness.
	ReexecuteOnHit bool `yaml:"reexecute_on_hit" env:"PIPELINE_REEXECUTE_ON_HIT" env-default:"true"`

	// RowLimit caps result sets; results at the cap are marked truncated.
	RowLimit int `yaml:"row_limit" env:"PIPELINE_ROW_LIMIT" env-default:"1000"`

	// ExecutionTimeout bounds a single SQL execution.
	ExecutionTimeout time.Duration `yaml:"execution_timeout" env:"PIPELINE_EXECUTION_TIMEOUT" env-default:"5s"`

	// SampleValues is the maximum distinct values sampled per column during
	// schema indexing.
	SampleValues int `yaml:"sample_values" env:"PIPELINE_SAMPLE_VALUES" env-default:"20"`

	// MaxSQLLength and MaxNestingDepth guard against runaway generation.
	MaxSQLLength    int `yaml:"max_sql_length" env:"PIPELINE_MAX_SQL_LENGTH" env-default:"5000"`
	MaxNestingDepth int `yaml:"max_nesting_depth" env:"PIPELINE_MAX_NESTING_DEPTH" env-default:"5"`

	// MaxContextLength caps the schema context rendered into generation
	// prompts, in bytes.
	MaxContextLength int `yaml:"max_context_length" env:"PIPELINE_MAX_CONTEXT_LENGTH" env-default:"8000"`

	// MaxRegenerations bounds feedback-augmented regeneration cycles after an
	// execution failure. The validation retry inside generation is separate
	// and always bounded to one.
	MaxRegenerations int `yaml:"max_regenerations" env:"PIPELINE_MAX_REGENERATIONS" env-default:"1"`

	// HistoryRetention is how long query history rows are kept.
	HistoryRetention time.Duration `yaml:"history_retention" env:"PIPELINE_HISTORY_RETENTION" env-default:"720h"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv reads configuration from environment variables only.
// Used by tests and deployments without a config file.
func LoadFromEnv(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("pipeline.top_k must be positive, got %d", c.Pipeline.TopK)
	}
	if c.Pipeline.CacheThreshold < 0 || c.Pipeline.CacheThreshold > 2 {
		return fmt.Errorf("pipeline.cache_threshold must be a cosine distance in [0, 2], got %g", c.Pipeline.CacheThreshold)
	}
	if c.Pipeline.RowLimit <= 0 {
		return fmt.Errorf("pipeline.row_limit must be positive, got %d", c.Pipeline.RowLimit)
	}
	if c.AI.EmbeddingDimension <= 0 {
		return fmt.Errorf("ai.embedding_dimension must be positive, got %d", c.AI.EmbeddingDimension)
	}
	switch c.AI.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("ai.provider must be 'openai' or 'anthropic', got %q", c.AI.Provider)
	}
	return nil
}
