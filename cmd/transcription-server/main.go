// Package main runs the transcription API as a local HTTP server.
//
// It serves the same router as the Lambda, against real S3 and Gemini, so
// the browser client can be pointed at localhost during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/meeting-transcriber/internal/auth"
	"github.com/fpang/meeting-transcriber/internal/config"
	"github.com/fpang/meeting-transcriber/internal/httpapi"
	"github.com/fpang/meeting-transcriber/internal/lambdaboot"
	"github.com/fpang/meeting-transcriber/internal/logging"
)

// CLI flags
var (
	portFlag  int
	modelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "transcription-server",
	Short: "Local HTTP server for meeting transcription",
	Long: `Transcription Server serves the meeting transcription API on localhost.
Configuration comes from the environment (MEDIA_BUCKET_NAME, RECORD_STORE,
GEMINI_API_KEY, ...); flags override the port and the Gemini model.

Examples:
  transcription-server
  transcription-server --port 9090
  transcription-server --model gemini-2.5-flash`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default $PORT or 8080)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model for both transcription and analysis")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}
	if modelFlag != "" {
		cfg.Gemini.TranscriptionModel = modelFlag
		cfg.Gemini.AnalysisModel = modelFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := lambdaboot.Build(ctx, cfg, lambdaboot.InitAWS(ctx))
	if err != nil {
		return err
	}
	defer svc.Close()

	handler := httpapi.NewRouter(httpapi.Options{
		Pipeline: svc.Pipeline,
		Store:    svc.Store,
		Auth:     auth.NewVerifier(cfg.AuthJWTSecret),
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Transcription runs inside the request.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Graceful shutdown incomplete")
		}
	}()

	lambdaboot.StartupLog("transcription-server", initStart, svc).
		Config("port", fmt.Sprint(cfg.Port)).
		Log()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
