package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	rdsdatatypes "github.com/aws/aws-sdk-go-v2/service/rdsdata/types"
	"github.com/rs/zerolog"

	"github.com/fpang/meeting-transcriber/internal/meeting"
)

// DataAPI is the part of the RDS Data API client the store uses.
type DataAPI interface {
	ExecuteStatement(ctx context.Context, params *rdsdata.ExecuteStatementInput, optFns ...func(*rdsdata.Options)) (*rdsdata.ExecuteStatementOutput, error)
}

// DataAPIStore implements MeetingStore on Aurora PostgreSQL through the
// RDS Data API, which needs no VPC connectivity from Lambda.
type DataAPIStore struct {
	client     DataAPI
	clusterARN string
	secretARN  string
	database   string
}

var _ MeetingStore = (*DataAPIStore)(nil)

// NewDataAPIStore creates a DataAPIStore.
func NewDataAPIStore(client DataAPI, clusterARN, secretARN, database string) *DataAPIStore {
	return &DataAPIStore{
		client:     client,
		clusterARN: clusterARN,
		secretARN:  secretARN,
		database:   database,
	}
}

func dataAPIPlaceholder(i int) string { return fmt.Sprintf(":p%d", i) }

// formatTextArray renders a PostgreSQL array literal for a text[] parameter.
func formatTextArray(arr []string) string {
	if len(arr) == 0 {
		return "{}"
	}
	escaped := make([]string, len(arr))
	for i, s := range arr {
		escaped[i] = `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
	}
	return "{" + strings.Join(escaped, ",") + "}"
}

// dataAPIUpdate renders u with named parameters.
func dataAPIUpdate(id string, u MeetingUpdate) (string, []rdsdatatypes.SqlParameter, error) {
	cols := u.columns()
	query, n := buildUpdateSQL(cols, dataAPIPlaceholder)

	params := make([]rdsdatatypes.SqlParameter, 0, n+1)
	for _, col := range cols {
		if col.Value == nil {
			continue
		}
		p := rdsdatatypes.SqlParameter{Name: aws.String(strings.TrimPrefix(dataAPIPlaceholder(len(params)), ":"))}
		switch v := col.Value.(type) {
		case string:
			p.Value = &rdsdatatypes.FieldMemberStringValue{Value: v}
		case time.Time:
			p.Value = &rdsdatatypes.FieldMemberStringValue{Value: v.UTC().Format("2006-01-02 15:04:05.000")}
			p.TypeHint = rdsdatatypes.TypeHintTimestamp
		case []string:
			p.Value = &rdsdatatypes.FieldMemberStringValue{Value: formatTextArray(v)}
		case []meeting.Participant:
			js, err := participantsJSON(v)
			if err != nil {
				return "", nil, fmt.Errorf("encode participants: %w", err)
			}
			p.Value = &rdsdatatypes.FieldMemberStringValue{Value: js}
			p.TypeHint = rdsdatatypes.TypeHintJson
		default:
			return "", nil, fmt.Errorf("unsupported value for %s: %T", col.Name, v)
		}
		params = append(params, p)
	}
	params = append(params, rdsdatatypes.SqlParameter{
		Name:     aws.String(strings.TrimPrefix(dataAPIPlaceholder(n), ":")),
		Value:    &rdsdatatypes.FieldMemberStringValue{Value: id},
		TypeHint: rdsdatatypes.TypeHintUuid,
	})
	return query, params, nil
}

func (s *DataAPIStore) execute(ctx context.Context, query string, params []rdsdatatypes.SqlParameter) (*rdsdata.ExecuteStatementOutput, error) {
	return s.client.ExecuteStatement(ctx, &rdsdata.ExecuteStatementInput{
		ResourceArn: aws.String(s.clusterARN),
		SecretArn:   aws.String(s.secretARN),
		Database:    aws.String(s.database),
		Sql:         aws.String(query),
		Parameters:  params,
	})
}

// UpdateMeeting applies u in one statement.
func (s *DataAPIStore) UpdateMeeting(ctx context.Context, id string, u MeetingUpdate) error {
	if !validMeetingID(id) {
		return ErrMeetingNotFound
	}
	query, params, err := dataAPIUpdate(id, u)
	if err != nil {
		return err
	}
	out, err := s.execute(ctx, query, params)
	if err != nil {
		return fmt.Errorf("update meeting %s: %w", id, err)
	}
	if out.NumberOfRecordsUpdated == 0 {
		return ErrMeetingNotFound
	}

	zerolog.Ctx(ctx).Debug().Str("meetingId", id).Str("status", string(u.Status)).Msg("Meeting row updated via Data API")
	return nil
}

// GetMeeting selects the row for id.
func (s *DataAPIStore) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	if !validMeetingID(id) {
		return nil, ErrMeetingNotFound
	}
	out, err := s.execute(ctx, selectMeetingSQL(":id"), []rdsdatatypes.SqlParameter{{
		Name:     aws.String("id"),
		Value:    &rdsdatatypes.FieldMemberStringValue{Value: id},
		TypeHint: rdsdatatypes.TypeHintUuid,
	}})
	if err != nil {
		return nil, fmt.Errorf("select meeting %s: %w", id, err)
	}
	if len(out.Records) == 0 {
		return nil, ErrMeetingNotFound
	}

	rec := out.Records[0]
	field := func(i int) *string {
		if i >= len(rec) {
			return nil
		}
		if v, ok := rec[i].(*rdsdatatypes.FieldMemberStringValue); ok {
			return &v.Value
		}
		return nil
	}
	r := meetingRow{
		ID: field(0), UserID: field(1), Status: field(2), Transcript: field(3), Summary: field(4),
		KeyPoints: field(5), ActionItems: field(6), Participants: field(7),
		ErrorMessage: field(8), StartedAt: field(9), ProcessedAt: field(10),
	}
	return r.meeting()
}
