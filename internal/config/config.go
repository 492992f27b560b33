// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Record store backends.
const (
	StoreDynamo   = "dynamodb"
	StorePostgres = "postgres"
	StoreDataAPI  = "dataapi"
)

// Config is every setting the transcription service reads.
type Config struct {
	Gemini   GeminiConfig
	Analysis AnalysisConfig
	Store    StoreConfig

	MediaBucket   string `env:"MEDIA_BUCKET_NAME" env-required:"true"`
	EventBusName  string `env:"EVENT_BUS_NAME"`
	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`
	Port          int    `env:"PORT" env-default:"8080"`
}

// GeminiConfig selects the Gemini models and how the API key is found. An
// explicit APIKey wins; otherwise the key is read from the SSM parameter
// APIKeyParam. Recordings up to InlineLimitBytes are sent inline, larger
// ones through the Files API.
type GeminiConfig struct {
	APIKey             string        `env:"GEMINI_API_KEY"`
	APIKeyParam        string        `env:"SSM_API_KEY_PARAM" env-default:"/meeting-transcriber/prod/gemini-api-key"`
	TranscriptionModel string        `env:"GEMINI_TRANSCRIPTION_MODEL" env-default:"gemini-2.0-flash"`
	AnalysisModel      string        `env:"GEMINI_ANALYSIS_MODEL" env-default:"gemini-2.0-flash"`
	BaseURL            string        `env:"GEMINI_BASE_URL"`
	HTTPTimeout        time.Duration `env:"PROVIDER_HTTP_TIMEOUT" env-default:"5m"`
	InlineLimitBytes   int64         `env:"INLINE_MEDIA_LIMIT_BYTES" env-default:"14680064"`
}

// AnalysisConfig bounds the analysis call: the retry budget for rate-limited
// attempts, the first backoff delay (doubled per retry) and the reply size.
type AnalysisConfig struct {
	MaxAttempts     int           `env:"ANALYSIS_MAX_ATTEMPTS" env-default:"3"`
	RetryDelay      time.Duration `env:"ANALYSIS_RETRY_DELAY" env-default:"1s"`
	MaxOutputTokens int           `env:"ANALYSIS_MAX_OUTPUT_TOKENS" env-default:"1024"`
}

// StoreConfig picks the meeting record backend. Backend is one of
// "dynamodb", "postgres" or "dataapi"; only the settings of the chosen
// backend are required.
type StoreConfig struct {
	Backend        string `env:"RECORD_STORE" env-default:"dynamodb"`
	DynamoTable    string `env:"DYNAMO_TABLE_NAME"`
	DatabaseURL    string `env:"DATABASE_URL"`
	DataAPICluster string `env:"DATA_API_CLUSTER_ARN"`
	DataAPISecret  string `env:"DATA_API_SECRET_ARN"`
	DataAPIDB      string `env:"DATA_API_DATABASE"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the selected record store needs and the
// numeric bounds. The provider key is not checked here.
func (c *Config) Validate() error {
	var errs []error
	if c.MediaBucket == "" {
		errs = append(errs, errors.New("MEDIA_BUCKET_NAME is required"))
	}
	switch c.Store.Backend {
	case StoreDynamo:
		if c.Store.DynamoTable == "" {
			errs = append(errs, errors.New("DYNAMO_TABLE_NAME is required for the dynamodb record store"))
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres record store"))
		}
	case StoreDataAPI:
		if c.Store.DataAPICluster == "" || c.Store.DataAPISecret == "" || c.Store.DataAPIDB == "" {
			errs = append(errs, errors.New("DATA_API_CLUSTER_ARN, DATA_API_SECRET_ARN and DATA_API_DATABASE are required for the dataapi record store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RECORD_STORE %q", c.Store.Backend))
	}
	if c.Analysis.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("ANALYSIS_MAX_ATTEMPTS must be at least 1, got %d", c.Analysis.MaxAttempts))
	}
	if c.Gemini.InlineLimitBytes < 0 {
		errs = append(errs, fmt.Errorf("INLINE_MEDIA_LIMIT_BYTES must not be negative, got %d", c.Gemini.InlineLimitBytes))
	}
	return errors.Join(errs...)
}
