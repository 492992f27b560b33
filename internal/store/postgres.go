package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/fpang/meeting-transcriber/internal/meeting"
)

// PostgresStore implements MeetingStore on a PostgreSQL meetings table.
type PostgresStore struct {
	db *sql.DB
}

var _ MeetingStore = (*PostgresStore)(nil)

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

func pgPlaceholder(i int) string { return "$" + strconv.Itoa(i+1) }

// postgresUpdate renders u as SQL and its positional arguments.
func postgresUpdate(id string, u MeetingUpdate) (string, []any, error) {
	cols := u.columns()
	query, _ := buildUpdateSQL(cols, pgPlaceholder)

	args := make([]any, 0, len(cols)+1)
	for _, col := range cols {
		switch v := col.Value.(type) {
		case nil:
			continue
		case []string:
			args = append(args, pq.Array(v))
		case []meeting.Participant:
			js, err := participantsJSON(v)
			if err != nil {
				return "", nil, fmt.Errorf("encode participants: %w", err)
			}
			args = append(args, js)
		default:
			args = append(args, v)
		}
	}
	args = append(args, id)
	return query, args, nil
}

// UpdateMeeting applies u in one UPDATE statement.
func (s *PostgresStore) UpdateMeeting(ctx context.Context, id string, u MeetingUpdate) error {
	if !validMeetingID(id) {
		return ErrMeetingNotFound
	}
	query, args, err := postgresUpdate(id, u)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update meeting %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrMeetingNotFound
	}

	zerolog.Ctx(ctx).Debug().Str("meetingId", id).Str("status", string(u.Status)).Msg("Meeting row updated")
	return nil
}

// GetMeeting selects the row for id.
func (s *PostgresStore) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	if !validMeetingID(id) {
		return nil, ErrMeetingNotFound
	}
	var r meetingRow
	err := s.db.QueryRowContext(ctx, selectMeetingSQL("$1"), id).Scan(
		&r.ID, &r.UserID, &r.Status, &r.Transcript, &r.Summary,
		&r.KeyPoints, &r.ActionItems, &r.Participants,
		&r.ErrorMessage, &r.StartedAt, &r.ProcessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select meeting %s: %w", id, err)
	}
	return r.meeting()
}
