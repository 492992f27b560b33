// Package jobutil records the outcome of a failed transcription run.
package jobutil

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// FailureWriter persists a failure message for a meeting.
type FailureWriter func(ctx context.Context, meetingID, errMsg string) error

// failureWriteTimeout bounds the failure write when the request context has
// already been cancelled or timed out.
const failureWriteTimeout = 10 * time.Second

// RecordFailure logs the failure and writes it through write. The write is
// best effort: its own error is logged and returned for inspection but must
// not replace the stage error that caused the failure.
func RecordFailure(ctx context.Context, meetingID, msg string, write FailureWriter) error {
	logger := zerolog.Ctx(ctx)
	logger.Error().
		Str("meetingId", meetingID).
		Str("error", msg).
		Msg("Transcription run failed")

	if meetingID == "" || write == nil {
		return nil
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if err := write(writeCtx, meetingID, msg); err != nil {
		logger.Error().Err(err).Str("meetingId", meetingID).Msg("Failed to record failure status")
		return err
	}
	return nil
}
