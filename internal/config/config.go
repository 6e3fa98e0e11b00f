package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"lingualign"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"lingualign"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	EmbedModel   string `envconfig:"EMBED_MODEL" default:"gemini-embedding-001"`

	// Alignment engine
	SimilarityThreshold   float32 `envconfig:"SIMILARITY_THRESHOLD" default:"0.35"`
	MaxEmbeddingBatchSize int     `envconfig:"MAX_EMBEDDING_BATCH_SIZE" default:"50"`
	MaxConcurrentRequests int     `envconfig:"MAX_CONCURRENT_REQUESTS" default:"3"`
	MinContentLength      int     `envconfig:"MIN_CONTENT_LENGTH" default:"3"`
	MaxContentLength      int     `envconfig:"MAX_CONTENT_LENGTH" default:"8000"`
	EmbedTimeoutSeconds   int     `envconfig:"EMBED_TIMEOUT_SECONDS" default:"60"`
	EmbedRetryAttempts    int     `envconfig:"EMBED_RETRY_ATTEMPTS" default:"3"`

	// Preprocessing
	StripMarkup             bool `envconfig:"STRIP_MARKUP" default:"true"`
	NormalizeWhitespace     bool `envconfig:"NORMALIZE_WHITESPACE" default:"true"`
	RemoveSpecialCharacters bool `envconfig:"REMOVE_SPECIAL_CHARACTERS" default:"true"`

	// Output
	ExportUnmatchedAsPlaceholder bool   `envconfig:"EXPORT_UNMATCHED_AS_PLACEHOLDER" default:"true"`
	PlaceholderText              string `envconfig:"PLACEHOLDER_TEXT" default:"[UNMATCHED]"`

	// Review
	ReviewCandidates int `envconfig:"REVIEW_CANDIDATES" default:"3"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may come from the shell; a missing .env is not an error.
	_ = godotenv.Load(".env")
	if cwd, err := os.Getwd(); err == nil {
		_ = godotenv.Load(filepath.Join(cwd, "../.env"))
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast before any processing begins.
func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: SIMILARITY_THRESHOLD must be in [0,1], got %v", ErrInvalid, c.SimilarityThreshold)
	}
	if c.MaxEmbeddingBatchSize <= 0 {
		return fmt.Errorf("%w: MAX_EMBEDDING_BATCH_SIZE must be positive", ErrInvalid)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("%w: MAX_CONCURRENT_REQUESTS must be positive", ErrInvalid)
	}
	if c.MinContentLength < 0 {
		return fmt.Errorf("%w: MIN_CONTENT_LENGTH must not be negative", ErrInvalid)
	}
	if c.MaxContentLength <= c.MinContentLength {
		return fmt.Errorf("%w: MAX_CONTENT_LENGTH must be greater than MIN_CONTENT_LENGTH", ErrInvalid)
	}
	return nil
}
