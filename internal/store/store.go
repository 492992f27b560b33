// Package store persists meeting processing state.
//
// A meeting record is created by the upload flow before transcription
// starts; this package only updates existing records and reads them back
// for status polling. Three backends share the MeetingStore interface:
// DynamoDB (single-table, PK=MEETING#{id}, SK=META), PostgreSQL through
// database/sql, and Aurora PostgreSQL through the RDS Data API.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fpang/meeting-transcriber/internal/meeting"
)

// ErrMeetingNotFound is returned when no record exists for a meeting ID.
var ErrMeetingNotFound = errors.New("meeting not found")

// MeetingStore reads and updates meeting records. Implementations are safe
// for concurrent use.
type MeetingStore interface {
	// UpdateMeeting applies u to the existing record id. It never creates a
	// record; a missing one yields ErrMeetingNotFound.
	UpdateMeeting(ctx context.Context, id string, u MeetingUpdate) error

	// GetMeeting returns the record id or ErrMeetingNotFound.
	GetMeeting(ctx context.Context, id string) (*Meeting, error)
}

// Meeting is a meeting record as seen by the pipeline.
type Meeting struct {
	ID           string
	UserID       string
	Status       meeting.Status
	Transcript   string
	Summary      string
	KeyPoints    []string
	ActionItems  []string
	Participants []meeting.Participant
	ErrorMessage string
	StartedAt    *time.Time
	ProcessedAt  *time.Time
}

// MeetingUpdate is a partial update. Build one with Processing, Completed
// or Failed; each writes exactly the fields its transition owns.
type MeetingUpdate struct {
	Status       meeting.Status
	StartedAt    *time.Time
	ProcessedAt  *time.Time
	Transcript   *string
	Insights     *meeting.Insights
	ErrorMessage *string
	// ClearError removes a stale error_message left by an earlier failed run.
	ClearError bool
}

// Processing marks the start of a run.
func Processing(now time.Time) MeetingUpdate {
	t := now.UTC()
	return MeetingUpdate{Status: meeting.StatusProcessing, StartedAt: &t}
}

// Completed records a successful run in a single write.
func Completed(transcript string, insights meeting.Insights, now time.Time) MeetingUpdate {
	t := now.UTC()
	insights.Normalize()
	return MeetingUpdate{
		Status:      meeting.StatusCompleted,
		Transcript:  &transcript,
		Insights:    &insights,
		ProcessedAt: &t,
		ClearError:  true,
	}
}

// Failed records a failed run. Results of earlier stages are not written.
func Failed(message string) MeetingUpdate {
	return MeetingUpdate{Status: meeting.StatusFailed, ErrorMessage: &message}
}

// PersistenceError is a failed write to the record store.
type PersistenceError struct {
	MeetingID string
	Status    meeting.Status
	Err       error
}

func (e *PersistenceError) Error() string {
	return "Database update failed: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// column is one assignment of an update, in the order backends apply them.
// A nil Value clears the column.
type column struct {
	Name  string
	Value any
}

// columns flattens u into column assignments using the relational column
// names (status, started_at, transcript, ...).
func (u MeetingUpdate) columns() []column {
	cols := []column{{Name: "status", Value: string(u.Status)}}
	if u.StartedAt != nil {
		cols = append(cols, column{Name: "started_at", Value: *u.StartedAt})
	}
	if u.Transcript != nil {
		cols = append(cols, column{Name: "transcript", Value: *u.Transcript})
	}
	if u.Insights != nil {
		cols = append(cols,
			column{Name: "summary", Value: u.Insights.Summary},
			column{Name: "key_points", Value: u.Insights.KeyPoints},
			column{Name: "action_items", Value: u.Insights.ActionItems},
			column{Name: "participants", Value: u.Insights.Participants},
		)
	}
	if u.ProcessedAt != nil {
		cols = append(cols, column{Name: "processed_at", Value: *u.ProcessedAt})
	}
	if u.ErrorMessage != nil {
		cols = append(cols, column{Name: "error_message", Value: *u.ErrorMessage})
	} else if u.ClearError {
		cols = append(cols, column{Name: "error_message", Value: nil})
	}
	return cols
}
