package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fpang/meeting-transcriber/internal/meeting"
	"github.com/fpang/meeting-transcriber/internal/pipeline"
	"github.com/fpang/meeting-transcriber/internal/store"
)

type transcriptionResponse struct {
	Success       bool                  `json:"success"`
	MeetingID     string                `json:"meetingId,omitempty"`
	Transcription string                `json:"transcription"`
	Summary       string                `json:"summary"`
	KeyPoints     []string              `json:"keyPoints"`
	ActionItems   []string              `json:"actionItems"`
	Participants  []meeting.Participant `json:"participants"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeRequest reads exactly one JSON value from body. A fileType of the
// wrong JSON type is kept as an unknown media kind so Validate reports it
// the same way as an unsupported string.
func decodeRequest(body io.Reader) (pipeline.Request, error) {
	var req pipeline.Request
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) || typeErr.Field != "fileType" {
			return req, err
		}
		req.FileType = pipeline.MediaKind("json " + typeErr.Value)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errTrailingData
		}
		return req, err
	}
	return req, nil
}

func (s *server) handleTranscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, r, http.StatusMethodNotAllowed, "Method not allowed. Use POST.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := decodeRequest(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		httpError(w, r, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if err := req.Validate(); err != nil {
		httpError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if sub := tokenSubject(r.Context()); sub != "" && sub != req.UserID {
		zerolog.Ctx(r.Context()).Warn().Str("subject", sub).Str("userId", req.UserID).Msg("Rejected request: token subject does not own userId")
		httpError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	result, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		if pipeline.IsClientError(err) {
			httpError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if pipeline.IsConfigurationError(err) {
			httpError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusInternalServerError, failureResponse{Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, transcriptionResponse{
		Success:       true,
		MeetingID:     result.MeetingID,
		Transcription: result.Transcription,
		Summary:       result.Insights.Summary,
		KeyPoints:     result.Insights.KeyPoints,
		ActionItems:   result.Insights.ActionItems,
		Participants:  result.Insights.Participants,
	})
}

type statusResponse struct {
	ID           string                `json:"id"`
	Status       meeting.Status        `json:"status"`
	Transcript   string                `json:"transcript,omitempty"`
	Summary      string                `json:"summary,omitempty"`
	KeyPoints    []string              `json:"keyPoints"`
	ActionItems  []string              `json:"actionItems"`
	Participants []meeting.Participant `json:"participants"`
	ErrorMessage string                `json:"errorMessage,omitempty"`
	StartedAt    *time.Time            `json:"startedAt,omitempty"`
	ProcessedAt  *time.Time            `json:"processedAt,omitempty"`
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "meetingID")
	m, err := s.store.GetMeeting(r.Context(), id)
	if errors.Is(err, store.ErrMeetingNotFound) {
		httpError(w, r, http.StatusNotFound, "meeting not found")
		return
	}
	if err != nil {
		httpError(w, r, http.StatusInternalServerError, "failed to read meeting", err.Error())
		return
	}
	if sub := tokenSubject(r.Context()); sub != "" && m.UserID != sub {
		zerolog.Ctx(r.Context()).Warn().Str("meetingId", id).Str("subject", sub).Msg("Rejected status read: token subject does not own meeting")
		httpError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	resp := statusResponse{
		ID:           m.ID,
		Status:       m.Status,
		Transcript:   m.Transcript,
		Summary:      m.Summary,
		KeyPoints:    m.KeyPoints,
		ActionItems:  m.ActionItems,
		Participants: m.Participants,
		ErrorMessage: m.ErrorMessage,
		StartedAt:    m.StartedAt,
		ProcessedAt:  m.ProcessedAt,
	}
	if resp.KeyPoints == nil {
		resp.KeyPoints = []string{}
	}
	if resp.ActionItems == nil {
		resp.ActionItems = []string{}
	}
	if resp.Participants == nil {
		resp.Participants = []meeting.Participant{}
	}
	respondJSON(w, http.StatusOK, resp)
}
