// Package events publishes transcription audit events to EventBridge.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Source is the EventBridge source of every event published here.
const Source = "meeting-transcriber"

// Detail types.
const (
	DetailTranscriptionCompleted = "MeetingTranscriptionCompleted"
	DetailTranscriptionFailed    = "MeetingTranscriptionFailed"
)

// TranscriptionEvent describes the outcome of one run. It carries the
// requesting user for auditing; the pipeline itself never reads userId.
type TranscriptionEvent struct {
	EventID          string    `json:"eventId"`
	MeetingID        string    `json:"meetingId,omitempty"`
	UserID           string    `json:"userId"`
	FilePath         string    `json:"filePath"`
	FileType         string    `json:"fileType"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	TranscriptLength int       `json:"transcriptLength,omitempty"`
	KeyPoints        int       `json:"keyPoints,omitempty"`
	ActionItems      int       `json:"actionItems,omitempty"`
	Participants     int       `json:"participants,omitempty"`
	AnalysisDegraded bool      `json:"analysisDegraded,omitempty"`
	DurationMs       int64     `json:"durationMs"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// API is the part of the EventBridge client used here.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends events to one bus.
type Publisher struct {
	client  API
	busName string
}

// NewPublisher creates a Publisher for busName.
func NewPublisher(client API, busName string) *Publisher {
	return &Publisher{client: client, busName: busName}
}

// Publish sends ev. The detail type follows ev.Status.
func (p *Publisher) Publish(ctx context.Context, ev TranscriptionEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	detail, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal TranscriptionEvent: %w", err)
	}
	detailType := DetailTranscriptionCompleted
	if ev.Status != "completed" {
		detailType = DetailTranscriptionFailed
	}

	logger := zerolog.Ctx(ctx)
	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(Source),
			DetailType:   aws.String(detailType),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(ev.OccurredAt),
		}},
	})
	if err != nil {
		logger.Error().Err(err).Str("meetingId", ev.MeetingID).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}

	logger.Debug().Str("meetingId", ev.MeetingID).Str("detailType", detailType).Msg("Audit event published")
	return nil
}
