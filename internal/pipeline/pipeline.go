// Package pipeline runs the four transcription stages for one request:
// fetch the recording, transcribe it, analyse the transcript, and record
// the outcome on the meeting.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/meeting-transcriber/internal/chat"
	"github.com/fpang/meeting-transcriber/internal/events"
	"github.com/fpang/meeting-transcriber/internal/jobutil"
	"github.com/fpang/meeting-transcriber/internal/meeting"
	"github.com/fpang/meeting-transcriber/internal/metrics"
	"github.com/fpang/meeting-transcriber/internal/store"
)

// BlobFetcher downloads a stored recording.
type BlobFetcher interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// Transcriber turns media bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, fileName string) (string, error)
}

// Analyzer extracts structured insights from a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (chat.Analysis, error)
}

// AuditPublisher receives one event per finished run.
type AuditPublisher interface {
	Publish(ctx context.Context, ev events.TranscriptionEvent) error
}

// Deps are the collaborators of a Pipeline. Transcriber and Analyzer are
// nil when no provider key is configured; Audit is optional.
type Deps struct {
	Fetcher     BlobFetcher
	Transcriber Transcriber
	Analyzer    Analyzer
	Store       store.MeetingStore
	Audit       AuditPublisher
	Now         func() time.Time
}

// Pipeline executes transcription runs. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	fetcher     BlobFetcher
	transcriber Transcriber
	analyzer    Analyzer
	store       store.MeetingStore
	audit       AuditPublisher
	now         func() time.Time
}

// New creates a Pipeline from deps.
func New(deps Deps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		fetcher:     deps.Fetcher,
		transcriber: deps.Transcriber,
		analyzer:    deps.Analyzer,
		store:       deps.Store,
		audit:       deps.Audit,
		now:         now,
	}
}

// Ready reports whether the pipeline can process requests.
func (p *Pipeline) Ready() error {
	if p.transcriber == nil || p.analyzer == nil {
		return ErrProviderKeyMissing
	}
	if p.fetcher == nil {
		return &ConfigurationError{Message: "content store not configured"}
	}
	if p.store == nil {
		return &ConfigurationError{Message: "record store not configured"}
	}
	return nil
}

// Result is a successful run.
type Result struct {
	MeetingID     string
	Transcription string
	Insights      meeting.Insights
	// AnalysisDegraded is set when the analysis reply was unparseable and
	// the fallback insights were recorded.
	AnalysisDegraded bool
}

// Run validates req and executes every stage. On failure after validation
// the meeting (if any) is marked failed and the stage error is returned
// unchanged.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := p.Ready(); err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().
		Str("meetingId", req.MeetingID).
		Str("userId", req.UserID).
		Str("filePath", req.FilePath).
		Logger()
	ctx = logger.WithContext(ctx)
	start := p.now()

	logger.Info().Str("fileType", string(req.FileType)).Str("fileName", req.FileName).Msg("Transcription run started")

	if req.MeetingID != "" {
		// A failed processing write does not stop the run; the terminal
		// write reports any lasting store problem.
		if err := p.store.UpdateMeeting(ctx, req.MeetingID, store.Processing(p.now())); err != nil {
			logger.Warn().Err(err).Msg("Failed to mark meeting as processing")
		}
	}

	result, err := p.execute(ctx, req)
	elapsed := p.now().Sub(start)
	if err != nil {
		jobutil.RecordFailure(ctx, req.MeetingID, err.Error(), p.writeFailure)
		p.publish(ctx, req, nil, err, elapsed)
		return nil, err
	}

	logger.Info().
		Dur("duration", elapsed).
		Bool("analysisDegraded", result.AnalysisDegraded).
		Msg("Transcription run completed")
	p.publish(ctx, req, result, nil, elapsed)
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, req Request) (*Result, error) {
	data, err := timed(metrics.StageDownload, func() ([]byte, error) {
		return p.fetcher.Download(ctx, req.FilePath)
	})
	if err != nil {
		return nil, err
	}

	transcript, err := timed(metrics.StageTranscription, func() (string, error) {
		return p.transcriber.Transcribe(ctx, data, req.FileName)
	})
	if err != nil {
		return nil, err
	}
	data = nil // release the recording before the analysis call

	analysis, err := timed(metrics.StageAnalysis, func() (chat.Analysis, error) {
		return p.analyzer.Analyze(ctx, transcript)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordRetries(metrics.StageAnalysis, analysis.Attempts-1)
	if analysis.Degraded() {
		metrics.RecordFallback()
	}

	insights := analysis.Insights
	insights.Normalize()
	result := &Result{
		MeetingID:        req.MeetingID,
		Transcription:    transcript,
		Insights:         insights,
		AnalysisDegraded: analysis.Degraded(),
	}

	if req.MeetingID != "" {
		_, err := timed(metrics.StagePersist, func() (struct{}, error) {
			return struct{}{}, p.store.UpdateMeeting(ctx, req.MeetingID, store.Completed(transcript, insights, p.now()))
		})
		if err != nil {
			return nil, &store.PersistenceError{MeetingID: req.MeetingID, Status: meeting.StatusCompleted, Err: err}
		}
	}
	return result, nil
}

func (p *Pipeline) writeFailure(ctx context.Context, meetingID, msg string) error {
	if err := p.store.UpdateMeeting(ctx, meetingID, store.Failed(msg)); err != nil {
		return &store.PersistenceError{MeetingID: meetingID, Status: meeting.StatusFailed, Err: err}
	}
	return nil
}

// auditPublishTimeout bounds the audit publish once it is detached from the
// request context.
const auditPublishTimeout = 10 * time.Second

// publish sends the audit event on a context that survives cancellation of
// ctx, so a client hang-up still leaves an audit trail. Failures are logged
// only.
func (p *Pipeline) publish(ctx context.Context, req Request, result *Result, runErr error, elapsed time.Duration) {
	if p.audit == nil {
		return
	}
	ev := events.TranscriptionEvent{
		MeetingID:  req.MeetingID,
		UserID:     req.UserID,
		FilePath:   req.FilePath,
		FileType:   string(req.FileType),
		DurationMs: elapsed.Milliseconds(),
		OccurredAt: p.now().UTC(),
	}
	if runErr != nil {
		ev.Status = string(meeting.StatusFailed)
		ev.Error = runErr.Error()
	} else {
		ev.Status = string(meeting.StatusCompleted)
		ev.TranscriptLength = len(result.Transcription)
		ev.KeyPoints = len(result.Insights.KeyPoints)
		ev.ActionItems = len(result.Insights.ActionItems)
		ev.Participants = len(result.Insights.Participants)
		ev.AnalysisDegraded = result.AnalysisDegraded
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditPublishTimeout)
	defer cancel()
	if err := p.audit.Publish(pubCtx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to publish audit event")
	}
}

// timed runs fn and records its latency and outcome as a stage metric.
func timed[T any](stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	metrics.RecordStage(stage, time.Since(start), err)
	return v, err
}

// IsClientError reports whether err should be answered with 400.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfigurationError reports whether err is a deployment problem detected
// before any stage ran.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
