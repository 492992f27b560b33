package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"google.golang.org/genai"
)

// fakeGenerator replays scripted replies and records each request.
type fakeGenerator struct {
	mu      sync.Mutex
	replies []fakeReply
	calls   []fakeCall
}

type fakeReply struct {
	text string
	err  error
}

type fakeCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{model: model, contents: contents, config: config})
	if len(f.replies) == 0 {
		return nil, fmt.Errorf("unexpected call %d", len(f.calls))
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return textResponse(r.text), nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

// fakeFiles is an in-memory Files API.
type fakeFiles struct {
	uploaded  [][]byte
	deleted   []string
	states    []genai.FileState // states returned by successive Get calls
	uploadErr error
}

func (f *fakeFiles) Upload(_ context.Context, r io.Reader, mimeType string) (*genai.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	var buf bytes.Buffer
	io.Copy(&buf, r)
	f.uploaded = append(f.uploaded, buf.Bytes())
	state := genai.FileStateActive
	if len(f.states) > 0 {
		state = genai.FileStateProcessing
	}
	return &genai.File{Name: "files/abc", URI: "https://example.test/files/abc", MIMEType: mimeType, State: state}, nil
}

func (f *fakeFiles) Get(_ context.Context, name string) (*genai.File, error) {
	state := genai.FileStateActive
	if len(f.states) > 0 {
		state = f.states[0]
		f.states = f.states[1:]
	}
	return &genai.File{Name: name, URI: "https://example.test/" + name, State: state}, nil
}

func (f *fakeFiles) Delete(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}
