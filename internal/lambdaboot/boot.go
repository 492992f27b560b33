// Package lambdaboot assembles the transcription service at process start.
//
// Both binaries (the Lambda handler and the local server) need the same
// things: AWS config, the Gemini key from env or SSM, a record store chosen
// by RECORD_STORE, and the pipeline wired to S3 and Gemini. Each main is a
// short composition of these helpers.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/meeting-transcriber/internal/chat"
	"github.com/fpang/meeting-transcriber/internal/config"
	"github.com/fpang/meeting-transcriber/internal/events"
	"github.com/fpang/meeting-transcriber/internal/logging"
	"github.com/fpang/meeting-transcriber/internal/pipeline"
	"github.com/fpang/meeting-transcriber/internal/retry"
	"github.com/fpang/meeting-transcriber/internal/s3util"
	"github.com/fpang/meeting-transcriber/internal/store"
)

// SSMAPI is the part of the SSM client used to read the provider key.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// InitAWS loads the default AWS config. Fatal on error.
func InitAWS(ctx context.Context) aws.Config {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg
}

// LoadGeminiKey returns GEMINI_API_KEY when set, otherwise reads the
// encrypted SSM parameter. An empty key with a nil error means neither
// source is configured.
func LoadGeminiKey(ctx context.Context, cfg config.GeminiConfig, client SSMAPI) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if client == nil || cfg.APIKeyParam == "" {
		return "", nil
	}
	start := time.Now()
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(cfg.APIKeyParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read SSM parameter %s: %w", cfg.APIKeyParam, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", nil
	}
	log.Debug().Str("param", cfg.APIKeyParam).Dur("elapsed", time.Since(start)).Msg("Gemini API key loaded from SSM")
	return *out.Parameter.Value, nil
}

// NewStore builds the record store selected by cfg.Backend. The returned
// close func releases any connection pool and is never nil.
func NewStore(ctx context.Context, cfg config.StoreConfig, awsCfg aws.Config) (store.MeetingStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.StoreDynamo:
		return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable), noop, nil
	case config.StorePostgres:
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return pg, pg.Close, nil
	case config.StoreDataAPI:
		return store.NewDataAPIStore(rdsdata.NewFromConfig(awsCfg), cfg.DataAPICluster, cfg.DataAPISecret, cfg.DataAPIDB), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown record store %q", cfg.Backend)
	}
}

// Service is the assembled transcription service.
type Service struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Store    store.MeetingStore
	Close    func() error
}

// Build wires the service from cfg. Missing provider credentials are not an
// error: the pipeline then answers every request with a configuration error.
func Build(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (*Service, error) {
	meetings, closeStore, err := NewStore(ctx, cfg.Store, awsCfg)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Fetcher: s3util.NewFetcher(s3.NewFromConfig(awsCfg), cfg.MediaBucket),
		Store:   meetings,
	}
	if cfg.EventBusName != "" {
		deps.Audit = events.NewPublisher(eventbridge.NewFromConfig(awsCfg), cfg.EventBusName)
	}

	key, err := LoadGeminiKey(ctx, cfg.Gemini, ssm.NewFromConfig(awsCfg))
	if err != nil {
		log.Warn().Err(err).Msg("Gemini API key unavailable, transcription disabled")
	}
	if key != "" {
		client, err := chat.NewClient(ctx, chat.ClientOptions{
			APIKey:  key,
			BaseURL: cfg.Gemini.BaseURL,
			Timeout: cfg.Gemini.HTTPTimeout,
		})
		if err != nil {
			closeStore()
			return nil, err
		}
		deps.Transcriber = chat.NewTranscriber(client.Models, chat.GeminiFiles(client), cfg.Gemini.TranscriptionModel, int(cfg.Gemini.InlineLimitBytes))
		deps.Analyzer = chat.NewAnalyzer(client.Models, cfg.Gemini.AnalysisModel, cfg.Analysis.MaxOutputTokens, AnalysisPolicy(cfg.Analysis))
	} else {
		log.Warn().Msg("Gemini API key not configured")
	}

	return &Service{
		Config:   cfg,
		Pipeline: pipeline.New(deps),
		Store:    meetings,
		Close:    closeStore,
	}, nil
}

// AnalysisPolicy is the rate-limit retry policy with the configured
// attempts and initial delay.
func AnalysisPolicy(cfg config.AnalysisConfig) retry.Policy {
	p := chat.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.RetryDelay > 0 {
		p.InitialDelay = cfg.RetryDelay
	}
	return p
}

// StartupLog describes the assembled service. Call Log() on the result.
func StartupLog(name string, initStart time.Time, svc *Service) *logging.StartupLogger {
	cfg := svc.Config
	sl := logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		S3Bucket("media", cfg.MediaBucket).
		Model("transcription", cfg.Gemini.TranscriptionModel).
		Model("analysis", cfg.Gemini.AnalysisModel).
		Config("recordStore", cfg.Store.Backend).
		Config("inlineLimitBytes", fmt.Sprint(cfg.Gemini.InlineLimitBytes)).
		Config("analysisMaxAttempts", fmt.Sprint(cfg.Analysis.MaxAttempts)).
		Feature("geminiKey", svc.Pipeline.Ready() == nil).
		Feature("bearerAuth", cfg.AuthJWTSecret != "").
		Feature("auditEvents", cfg.EventBusName != "")
	if cfg.Gemini.APIKey == "" {
		sl.SSMParam("geminiApiKey", cfg.Gemini.APIKeyParam)
	}
	switch cfg.Store.Backend {
	case config.StoreDynamo:
		sl.Table(cfg.Store.Backend, cfg.Store.DynamoTable)
	case config.StorePostgres:
		sl.Table(cfg.Store.Backend, "meetings")
	case config.StoreDataAPI:
		sl.Table(cfg.Store.Backend, cfg.Store.DataAPIDB+".meetings")
	}
	if cfg.EventBusName != "" {
		sl.EventBus("audit", cfg.EventBusName)
	}
	return sl
}
