package chat

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/fpang/meeting-transcriber/internal/assets"
)

// DefaultInlineLimit is the largest payload sent as inline base64 data.
// The Gemini request limit is 20 MB including the prompt and base64
// overhead, so larger media goes through the Files API.
const DefaultInlineLimit = 14 * 1024 * 1024

const (
	filePollInterval = 2 * time.Second
	filePollTimeout  = 5 * time.Minute
)

// Transcriber converts meeting audio or video into text with one Gemini call.
type Transcriber struct {
	models      ContentGenerator
	files       FileStore
	model       string
	inlineLimit int

	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewTranscriber creates a Transcriber. files may be nil, in which case every
// payload is sent inline regardless of size. inlineLimit <= 0 selects
// DefaultInlineLimit.
func NewTranscriber(models ContentGenerator, files FileStore, model string, inlineLimit int) *Transcriber {
	if model == "" {
		model = DefaultTranscriptionModel
	}
	if inlineLimit <= 0 {
		inlineLimit = DefaultInlineLimit
	}
	return &Transcriber{
		models:       models,
		files:        files,
		model:        model,
		inlineLimit:  inlineLimit,
		pollInterval: filePollInterval,
		pollTimeout:  filePollTimeout,
	}
}

// Model returns the model name used for transcription.
func (t *Transcriber) Model() string { return t.model }

// Transcribe returns the transcript of data verbatim. The MIME type comes
// from fileName's extension. Failures are *TranscriptionProviderError or
// ErrEmptyTranscription; neither is retried.
func (t *Transcriber) Transcribe(ctx context.Context, data []byte, fileName string) (string, error) {
	logger := zerolog.Ctx(ctx).With().Str("stage", "transcription").Logger()
	mimeType := MIMETypeFor(fileName)

	logger.Info().
		Str("fileName", fileName).
		Int("bytes", len(data)).
		Str("mimeType", mimeType).
		Str("model", t.model).
		Msg("Starting transcription")

	media, cleanup, err := t.mediaPart(ctx, data, mimeType)
	if err != nil {
		return "", err
	}
	defer cleanup()

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: assets.TranscriptionPrompt},
			media,
		},
	}}

	start := time.Now()
	resp, err := t.models.GenerateContent(ctx, t.model, contents, nil)
	elapsed := time.Since(start)
	if err != nil {
		terr := newTranscriptionError(err)
		logger.Error().Err(err).Int("statusCode", terr.StatusCode).Dur("duration", elapsed).Msg("Gemini transcription call failed")
		return "", terr
	}

	text := ""
	if resp != nil {
		text = resp.Text()
	}
	if text == "" {
		logger.Warn().Dur("duration", elapsed).Msg("Gemini returned no transcription text")
		return "", ErrEmptyTranscription
	}

	logger.Info().
		Int("textLength", len(text)).
		Dur("duration", elapsed).
		Msg("Transcription complete")
	return text, nil
}

// mediaPart builds the media part of the request: inline bytes for small
// payloads, a Files API reference otherwise. The returned cleanup deletes
// any uploaded file.
func (t *Transcriber) mediaPart(ctx context.Context, data []byte, mimeType string) (*genai.Part, func(), error) {
	noop := func() {}
	if len(data) <= t.inlineLimit || t.files == nil {
		return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}, noop, nil
	}

	logger := zerolog.Ctx(ctx)
	logger.Info().
		Int("bytes", len(data)).
		Int("inlineLimit", t.inlineLimit).
		Msg("Payload exceeds inline limit, uploading to Gemini Files API")

	file, err := t.upload(ctx, data, mimeType)
	if file != nil {
		name := file.Name
		cleanup := func() {
			// The request context may already be cancelled.
			delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if derr := t.files.Delete(delCtx, name); derr != nil {
				logger.Warn().Err(derr).Str("file", name).Msg("Failed to delete uploaded Gemini file")
			}
		}
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		return &genai.Part{FileData: &genai.FileData{MIMEType: mimeType, FileURI: file.URI}}, cleanup, nil
	}
	return nil, noop, err
}

// upload sends data to the Files API and waits until the file is ACTIVE.
// A non-nil file is returned whenever one was created, even on error, so
// the caller can delete it.
func (t *Transcriber) upload(ctx context.Context, data []byte, mimeType string) (*genai.File, error) {
	start := time.Now()
	file, err := t.files.Upload(ctx, bytes.NewReader(data), mimeType)
	if err != nil {
		return nil, newTranscriptionError(fmt.Errorf("upload media: %w", err))
	}

	deadline := time.Now().Add(t.pollTimeout)
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return file, &TranscriptionProviderError{Message: fmt.Sprintf("timed out after %v waiting for uploaded file %s", t.pollTimeout, file.Name)}
		}
		select {
		case <-ctx.Done():
			return file, newTranscriptionError(ctx.Err())
		case <-time.After(t.pollInterval):
		}
		next, gerr := t.files.Get(ctx, file.Name)
		if gerr != nil {
			return file, newTranscriptionError(fmt.Errorf("get file state: %w", gerr))
		}
		file = next
	}
	if file.State == genai.FileStateFailed {
		return file, &TranscriptionProviderError{Message: "uploaded file processing failed: " + file.Name}
	}

	zerolog.Ctx(ctx).Info().
		Str("file", file.Name).
		Str("uri", file.URI).
		Dur("duration", time.Since(start)).
		Msg("Media uploaded to Gemini Files API")
	return file, nil
}
