package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fpang/meeting-transcriber/internal/meeting"
)

// Relational schema (PostgreSQL):
//
//	CREATE TABLE meetings (
//	    id            uuid PRIMARY KEY,
//	    user_id       uuid NOT NULL,
//	    status        text NOT NULL DEFAULT 'uploaded',
//	    transcript    text,
//	    summary       text,
//	    key_points    text[],
//	    action_items  text[],
//	    participants  jsonb,
//	    error_message text,
//	    started_at    timestamptz,
//	    processed_at  timestamptz
//	);

// meetingsTable is the relational table holding meeting rows.
const meetingsTable = "meetings"

// sqlCasts holds the type casts applied to bound parameters.
var sqlCasts = map[string]string{
	"key_points":   "::text[]",
	"action_items": "::text[]",
	"participants": "::jsonb",
	"started_at":   "::timestamptz",
	"processed_at": "::timestamptz",
}

// buildUpdateSQL renders an UPDATE for cols. placeholder(i) returns the
// marker for the i-th bound value (0-based); the id is bound last.
func buildUpdateSQL(cols []column, placeholder func(i int) string) (string, int) {
	var sets []string
	n := 0
	for _, col := range cols {
		if col.Value == nil {
			sets = append(sets, col.Name+" = NULL")
			continue
		}
		sets = append(sets, col.Name+" = "+placeholder(n)+sqlCasts[col.Name])
		n++
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", meetingsTable, strings.Join(sets, ", "), placeholder(n))
	return sql, n
}

// selectMeetingSQL returns every column as text so both SQL backends decode
// rows the same way.
func selectMeetingSQL(idPlaceholder string) string {
	return `SELECT id::text, user_id::text, status::text, transcript, summary,
		to_json(key_points)::text, to_json(action_items)::text, participants::text,
		error_message, to_json(started_at)#>>'{}', to_json(processed_at)#>>'{}'
	FROM ` + meetingsTable + ` WHERE id = ` + idPlaceholder
}

// validMeetingID reports whether id can match the uuid primary key. Any
// other id cannot name a row, so the SQL backends report it as not found
// instead of sending a statement the database rejects with a cast error.
func validMeetingID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// meetingRow is a decoded SELECT row; nil means SQL NULL.
type meetingRow struct {
	ID, UserID, Status                   *string
	Transcript, Summary                  *string
	KeyPoints, ActionItems, Participants *string
	ErrorMessage, StartedAt, ProcessedAt *string
}

func (r meetingRow) meeting() (*Meeting, error) {
	m := &Meeting{
		ID:           deref(r.ID),
		UserID:       deref(r.UserID),
		Status:       meeting.Status(deref(r.Status)),
		Transcript:   deref(r.Transcript),
		Summary:      deref(r.Summary),
		ErrorMessage: deref(r.ErrorMessage),
		StartedAt:    parseSQLTime(deref(r.StartedAt)),
		ProcessedAt:  parseSQLTime(deref(r.ProcessedAt)),
	}
	if err := decodeJSONColumn(r.KeyPoints, &m.KeyPoints); err != nil {
		return nil, fmt.Errorf("key_points: %w", err)
	}
	if err := decodeJSONColumn(r.ActionItems, &m.ActionItems); err != nil {
		return nil, fmt.Errorf("action_items: %w", err)
	}
	if err := decodeJSONColumn(r.Participants, &m.Participants); err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}
	return m, nil
}

func decodeJSONColumn(s *string, out any) error {
	if s == nil || *s == "" || *s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(*s), out)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// parseSQLTime parses the ISO 8601 text produced by to_json(timestamptz).
func parseSQLTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// participantsJSON encodes participants for a jsonb column.
func participantsJSON(ps []meeting.Participant) (string, error) {
	if ps == nil {
		ps = []meeting.Participant{}
	}
	b, err := json.Marshal(ps)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
