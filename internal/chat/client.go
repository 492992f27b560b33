package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// ContentGenerator is the part of the Gemini models API the pipeline uses.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// FileStore uploads media to the Gemini Files API for payloads too large to
// send inline.
type FileStore interface {
	Upload(ctx context.Context, r io.Reader, mimeType string) (*genai.File, error)
	Get(ctx context.Context, name string) (*genai.File, error)
	Delete(ctx context.Context, name string) error
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	APIKey string
	// BaseURL overrides the Gemini endpoint. Empty uses the SDK default.
	BaseURL string
	// Timeout bounds each HTTP exchange with the provider.
	Timeout time.Duration
}

// NewClient creates a Gemini Developer API client.
func NewClient(ctx context.Context, opts ClientOptions) (*genai.Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}

// GeminiFiles adapts a client's Files service to FileStore.
func GeminiFiles(client *genai.Client) FileStore {
	return geminiFiles{files: client.Files}
}

type geminiFiles struct {
	files *genai.Files
}

func (g geminiFiles) Upload(ctx context.Context, r io.Reader, mimeType string) (*genai.File, error) {
	return g.files.Upload(ctx, r, &genai.UploadFileConfig{MIMEType: mimeType})
}

func (g geminiFiles) Get(ctx context.Context, name string) (*genai.File, error) {
	return g.files.Get(ctx, name, nil)
}

func (g geminiFiles) Delete(ctx context.Context, name string) error {
	_, err := g.files.Delete(ctx, name, nil)
	return err
}
