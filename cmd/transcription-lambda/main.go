// Package main provides the Lambda entry point for meeting transcription.
//
// API Gateway (HTTP API, payload v2) invokes it for every route of the
// httpapi router. Each invocation runs the whole pipeline synchronously:
// download from S3, transcribe and analyse with Gemini, record the outcome.
//
// Memory: 1 GB (recordings are held in memory)
// Timeout: 5 minutes
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/meeting-transcriber/internal/auth"
	"github.com/fpang/meeting-transcriber/internal/config"
	"github.com/fpang/meeting-transcriber/internal/httpapi"
	"github.com/fpang/meeting-transcriber/internal/lambdaboot"
	"github.com/fpang/meeting-transcriber/internal/logging"
)

var adapter *httpadapter.HandlerAdapterV2

func init() {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	ctx := context.Background()
	svc, err := lambdaboot.Build(ctx, cfg, lambdaboot.InitAWS(ctx))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise transcription service")
	}

	adapter = httpadapter.NewV2(httpapi.NewRouter(httpapi.Options{
		Pipeline: svc.Pipeline,
		Store:    svc.Store,
		Auth:     auth.NewVerifier(cfg.AuthJWTSecret),
	}))

	lambdaboot.StartupLog("transcription-lambda", initStart, svc).Log()
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
