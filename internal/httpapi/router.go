// Package httpapi exposes the transcription pipeline over HTTP.
//
// Endpoints:
//
//	POST /api/generate-transcription          run the pipeline for one recording
//	POST /functions/v1/generate-transcription same, for existing browser clients
//	GET  /api/meetings/{meetingID}/status     poll a meeting's processing state
//	GET  /api/health                          health check (no auth)
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fpang/meeting-transcriber/internal/auth"
	"github.com/fpang/meeting-transcriber/internal/pipeline"
	"github.com/fpang/meeting-transcriber/internal/store"
)

// maxBodyBytes bounds the JSON request envelope. Media never travels
// through this API.
const maxBodyBytes = 1 << 20

// Runner executes one transcription request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Options are the router's collaborators. Auth may be nil.
type Options struct {
	Pipeline Runner
	Store    store.MeetingStore
	Auth     *auth.Verifier
}

type server struct {
	pipeline Runner
	store    store.MeetingStore
	auth     *auth.Verifier
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	s := &server{pipeline: opts.Pipeline, store: opts.Store, auth: opts.Auth}

	r := chi.NewRouter()
	r.Use(withCORS)
	r.Use(withInvocationLogger)
	r.Use(middleware.Recoverer)
	r.Use(withMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/api/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.HandleFunc("/api/generate-transcription", s.handleTranscription)
		r.HandleFunc("/functions/v1/generate-transcription", s.handleTranscription)
		r.Get("/api/meetings/{meetingID}/status", s.handleStatus)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
