// Package meeting holds the domain types shared by the pipeline stages and
// the record stores.
package meeting

// Participant is a person identified in a meeting transcript.
type Participant struct {
	Name  string `json:"name" dynamodbav:"name"`
	Email string `json:"email,omitempty" dynamodbav:"email,omitempty"`
}

// Insights is the structured analysis of a transcript.
type Insights struct {
	Summary      string        `json:"summary"`
	KeyPoints    []string      `json:"keyPoints"`
	ActionItems  []string      `json:"actionItems"`
	Participants []Participant `json:"participants"`
}

// Normalize replaces nil slices with empty ones so they encode as [] rather
// than null.
func (in *Insights) Normalize() {
	if in.KeyPoints == nil {
		in.KeyPoints = []string{}
	}
	if in.ActionItems == nil {
		in.ActionItems = []string{}
	}
	if in.Participants == nil {
		in.Participants = []Participant{}
	}
}

// Status is the processing state of a meeting record.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further automatic transition follows s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
