package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/fpang/meeting-transcriber/internal/assets"
	"github.com/fpang/meeting-transcriber/internal/jsonutil"
	"github.com/fpang/meeting-transcriber/internal/meeting"
	"github.com/fpang/meeting-transcriber/internal/retry"
)

// Fallback values used when the model's reply cannot be decoded.
const (
	FallbackSummary    = "Meeting analysis could not be parsed. Please review the transcript manually."
	FallbackKeyPoint   = "Analysis processing encountered an issue"
	FallbackActionItem = "Review meeting transcript for action items"

	// EmptySummary replaces a missing summary in an otherwise valid reply.
	EmptySummary = "No summary generated"
)

// DefaultMaxOutputTokens caps the analysis reply.
const DefaultMaxOutputTokens = 1024

// DefaultRetryPolicy retries rate-limited analysis calls three times in
// total, waiting 1s then 2s.
func DefaultRetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Retryable:    IsRateLimited,
	}
}

// Analysis is the outcome of Analyzer.Analyze. When the reply could not be
// parsed, Insights holds the fallback result and ParseErr explains why.
type Analysis struct {
	Insights meeting.Insights
	ParseErr *AnalysisParseError
	Attempts int
}

// Degraded reports whether the fallback result was used.
func (a Analysis) Degraded() bool { return a.ParseErr != nil }

// Analyzer extracts a summary, key points, action items and participants
// from a transcript.
type Analyzer struct {
	models          ContentGenerator
	model           string
	maxOutputTokens int32
	policy          retry.Policy
}

// NewAnalyzer creates an Analyzer. A zero policy.MaxAttempts selects
// DefaultRetryPolicy; a nil policy.Retryable is replaced with IsRateLimited.
func NewAnalyzer(models ContentGenerator, model string, maxOutputTokens int, policy retry.Policy) *Analyzer {
	if model == "" {
		model = DefaultAnalysisModel
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = DefaultMaxOutputTokens
	}
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}
	if policy.Retryable == nil {
		policy.Retryable = IsRateLimited
	}
	return &Analyzer{
		models:          models,
		model:           model,
		maxOutputTokens: int32(maxOutputTokens),
		policy:          policy,
	}
}

// Model returns the model name used for analysis.
func (a *Analyzer) Model() string { return a.model }

// Analyze sends transcript to the model and decodes its reply. Provider
// failures are returned as *AnalysisProviderError after rate-limit retries
// are exhausted. A reply that cannot be decoded is not an error.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (Analysis, error) {
	logger := zerolog.Ctx(ctx).With().Str("stage", "analysis").Logger()

	prompt := BuildAnalysisPrompt(transcript)
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.3),
		TopK:            genai.Ptr[float32](40),
		TopP:            genai.Ptr[float32](0.95),
		MaxOutputTokens: a.maxOutputTokens,
	}

	policy := a.policy
	userOnRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Gemini analysis rate limited, retrying")
		if userOnRetry != nil {
			userOnRetry(attempt, delay, err)
		}
	}

	logger.Info().
		Int("transcriptLength", len(transcript)).
		Str("model", a.model).
		Msg("Starting analysis")

	start := time.Now()
	text, attempts, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		resp, err := a.models.GenerateContent(ctx, a.model, contents, config)
		if err != nil {
			return "", newAnalysisError(err)
		}
		if resp == nil {
			return "", nil
		}
		return resp.Text(), nil
	})
	elapsed := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Int("attempts", attempts).Dur("duration", elapsed).Msg("Gemini analysis call failed")
		var ape *AnalysisProviderError
		if !errors.As(err, &ape) {
			err = newAnalysisError(err)
		}
		return Analysis{Attempts: attempts}, err
	}

	insights, perr := ParseAnalysis(text)
	result := Analysis{Insights: insights, ParseErr: perr, Attempts: attempts}
	if perr != nil {
		logger.Warn().Err(perr).Str("preview", perr.Preview).Msg("Analysis reply unparseable, using fallback")
	} else {
		logger.Info().
			Int("keyPoints", len(insights.KeyPoints)).
			Int("actionItems", len(insights.ActionItems)).
			Int("participants", len(insights.Participants)).
			Int("attempts", attempts).
			Dur("duration", elapsed).
			Msg("Analysis complete")
	}
	return result, nil
}

// BuildAnalysisPrompt embeds transcript in the instruction asking for the
// JSON reply shape ParseAnalysis understands.
func BuildAnalysisPrompt(transcript string) string {
	return assets.RenderAnalysisPrompt(transcript)
}

var errNullReply = errors.New("reply is JSON null")

// analysisReply mirrors the reply loosely; every field is checked before use.
type analysisReply struct {
	Summary      json.RawMessage `json:"summary"`
	KeyPoints    json.RawMessage `json:"keyPoints"`
	ActionItems  json.RawMessage `json:"actionItems"`
	Participants json.RawMessage `json:"participants"`
}

// FallbackInsights is the result recorded when a reply cannot be parsed.
func FallbackInsights() meeting.Insights {
	return meeting.Insights{
		Summary:      FallbackSummary,
		KeyPoints:    []string{FallbackKeyPoint},
		ActionItems:  []string{FallbackActionItem},
		Participants: []meeting.Participant{},
	}
}

// ParseAnalysis decodes a model reply, tolerating a markdown fence around
// the JSON object. Fields of the wrong type are coerced to empty values and
// participants without a name are dropped. Any other valid JSON value has
// no fields to read and yields an empty result. Invalid JSON and null yield
// the fallback result with a non-nil parse error.
func ParseAnalysis(raw string) (meeting.Insights, *AnalysisParseError) {
	cleaned := jsonutil.StripMarkdownFences(raw)

	if !strings.HasPrefix(cleaned, "{") {
		var v any
		if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
			return FallbackInsights(), &AnalysisParseError{Preview: jsonutil.Preview(cleaned, 200), Err: err}
		}
		if v == nil {
			return FallbackInsights(), &AnalysisParseError{Preview: jsonutil.Preview(cleaned, 200), Err: errNullReply}
		}
		insights := meeting.Insights{Summary: EmptySummary}
		insights.Normalize()
		return insights, nil
	}
	reply, err := jsonutil.ParseJSON[analysisReply](cleaned)
	if err != nil {
		return FallbackInsights(), &AnalysisParseError{Preview: jsonutil.Preview(cleaned, 200), Err: err}
	}

	insights := meeting.Insights{
		Summary:      stringOrEmpty(reply.Summary),
		KeyPoints:    stringList(reply.KeyPoints),
		ActionItems:  stringList(reply.ActionItems),
		Participants: participantList(reply.Participants),
	}
	if insights.Summary == "" {
		insights.Summary = EmptySummary
	}
	return insights, nil
}

func isJSONString(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '"'
}

func stringOrEmpty(raw json.RawMessage) string {
	var s string
	if !isJSONString(raw) || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// stringList keeps the string elements of a JSON array. Anything that is
// not an array yields an empty list.
func stringList(raw json.RawMessage) []string {
	out := []string{}
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return out
	}
	for _, item := range items {
		if !isJSONString(item) {
			continue
		}
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

func participantList(raw json.RawMessage) []meeting.Participant {
	out := []meeting.Participant{}
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return out
	}
	for _, item := range items {
		var p struct {
			Name  json.RawMessage `json:"name"`
			Email json.RawMessage `json:"email"`
		}
		if json.Unmarshal(item, &p) != nil {
			continue
		}
		name := strings.TrimSpace(stringOrEmpty(p.Name))
		if name == "" {
			continue
		}
		out = append(out, meeting.Participant{
			Name:  name,
			Email: strings.TrimSpace(stringOrEmpty(p.Email)),
		})
	}
	return out
}
