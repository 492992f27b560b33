package chat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// ErrEmptyTranscription is returned when the provider answers successfully
// but without any transcript text.
var ErrEmptyTranscription = errors.New("No transcription text received from Gemini API")

// TranscriptionProviderError is a failed call to the transcription provider.
type TranscriptionProviderError struct {
	StatusCode int // zero when the call never produced an HTTP response
	Message    string
	Err        error
}

func (e *TranscriptionProviderError) Error() string {
	return providerMessage("Gemini transcription error", e.StatusCode, e.Message)
}

func (e *TranscriptionProviderError) Unwrap() error { return e.Err }

// AnalysisProviderError is a failed call to the analysis model.
type AnalysisProviderError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AnalysisProviderError) Error() string {
	return providerMessage("Gemini analysis error", e.StatusCode, e.Message)
}

func (e *AnalysisProviderError) Unwrap() error { return e.Err }

// AnalysisParseError records that the model's reply could not be decoded.
// It never fails the pipeline: the analyzer substitutes a fallback result
// and reports this error alongside it.
type AnalysisParseError struct {
	Preview string
	Err     error
}

func (e *AnalysisParseError) Error() string {
	return "analysis response could not be parsed: " + e.Err.Error()
}

func (e *AnalysisParseError) Unwrap() error { return e.Err }

func providerMessage(prefix string, code int, msg string) string {
	if msg == "" {
		msg = "Unknown error"
	}
	if code == 0 {
		return prefix + ": " + msg
	}
	return fmt.Sprintf("%s (HTTP %d): %s", prefix, code, msg)
}

// apiError extracts the provider's status code and message. The SDK has
// returned APIError both by value and by pointer across releases.
func apiError(err error) (int, string, bool) {
	var byValue genai.APIError
	if errors.As(err, &byValue) {
		return byValue.Code, byValue.Message, true
	}
	var byPointer *genai.APIError
	if errors.As(err, &byPointer) && byPointer != nil {
		return byPointer.Code, byPointer.Message, true
	}
	return 0, "", false
}

// newTranscriptionError wraps a provider failure with its status code.
func newTranscriptionError(err error) *TranscriptionProviderError {
	code, msg, ok := apiError(err)
	if !ok {
		msg = err.Error()
	}
	return &TranscriptionProviderError{StatusCode: code, Message: msg, Err: err}
}

func newAnalysisError(err error) *AnalysisProviderError {
	code, msg, ok := apiError(err)
	if !ok {
		msg = err.Error()
	}
	return &AnalysisProviderError{StatusCode: code, Message: msg, Err: err}
}

// IsRateLimited reports whether err signals provider throttling: HTTP 429,
// or a message mentioning exhausted resources or quota.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if code, _, ok := apiError(err); ok && code == http.StatusTooManyRequests {
		return true
	}
	var ape *AnalysisProviderError
	if errors.As(err, &ape) && ape.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var tpe *TranscriptionProviderError
	if errors.As(err, &tpe) && tpe.StatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}
