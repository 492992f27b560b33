// Package assets provides the embedded prompt templates.
//
// Prompts are stored as text files under prompts/ and embedded at compile
// time so they can be edited without touching Go code.
package assets

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

//go:embed prompts/transcription.txt
var transcriptionPrompt string

// TranscriptionPrompt is sent alongside the media payload.
var TranscriptionPrompt = strings.TrimSpace(transcriptionPrompt)

//go:embed prompts/analysis.txt
var analysisTemplate string

var analysisPromptTmpl = template.Must(template.New("analysis").Parse(analysisTemplate))

// AnalysisPromptData holds the values injected into the analysis prompt.
type AnalysisPromptData struct {
	Transcript string
}

// RenderAnalysisPrompt embeds transcript in the analysis instruction.
func RenderAnalysisPrompt(transcript string) string {
	var buf bytes.Buffer
	// The template only interpolates a string; execution cannot fail.
	_ = analysisPromptTmpl.Execute(&buf, AnalysisPromptData{Transcript: transcript})
	return strings.TrimSpace(buf.String())
}
