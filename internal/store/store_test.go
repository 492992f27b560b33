package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	rdsdatatypes "github.com/aws/aws-sdk-go-v2/service/rdsdata/types"
	"github.com/lib/pq"

	"github.com/fpang/meeting-transcriber/internal/meeting"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleInsights() meeting.Insights {
	return meeting.Insights{
		Summary:      "S",
		KeyPoints:    []string{"K1"},
		ActionItems:  []string{"A1"},
		Participants: []meeting.Participant{{Name: "Alice"}},
	}
}

func columnNames(cols []column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func TestTransitionsWriteOwnedColumns(t *testing.T) {
	tests := []struct {
		name string
		u    MeetingUpdate
		want []string
	}{
		{"processing", Processing(fixedNow), []string{"status", "started_at"}},
		{"completed", Completed("Hello world", sampleInsights(), fixedNow),
			[]string{"status", "transcript", "summary", "key_points", "action_items", "participants", "processed_at", "error_message"}},
		{"failed", Failed("boom"), []string{"status", "error_message"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := columnNames(tt.u.columns()); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("columns = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompletedNormalizesNilLists(t *testing.T) {
	u := Completed("t", meeting.Insights{Summary: "s"}, fixedNow)
	if u.Insights.KeyPoints == nil || u.Insights.ActionItems == nil || u.Insights.Participants == nil {
		t.Errorf("nil lists survived: %+v", u.Insights)
	}
}

func TestPersistenceErrorMessage(t *testing.T) {
	err := &PersistenceError{MeetingID: "m1", Status: meeting.StatusCompleted, Err: ErrMeetingNotFound}
	if err.Error() != "Database update failed: meeting not found" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrMeetingNotFound) {
		t.Error("errors.Is should see ErrMeetingNotFound")
	}
}

// --- DynamoDB ---

type fakeDynamo struct {
	items   map[string]map[string]types.AttributeValue
	updates []*dynamodb.UpdateItemInput
	err     error
}

func (f *fakeDynamo) key(k map[string]types.AttributeValue) string {
	return k["PK"].(*types.AttributeValueMemberS).Value + "|" + k["SK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[f.key(in.Key)]}, nil
}

// UpdateItem applies SET clauses of the form "#aN = :vN" and REMOVE "#aN".
func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.items[f.key(in.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	expr := aws.ToString(in.UpdateExpression)
	setPart, removePart, _ := strings.Cut(strings.TrimPrefix(expr, "SET "), " REMOVE ")
	for _, clause := range strings.Split(setPart, ", ") {
		name, value, _ := strings.Cut(clause, " = ")
		item[in.ExpressionAttributeNames[name]] = in.ExpressionAttributeValues[value]
	}
	if removePart != "" {
		for _, name := range strings.Split(removePart, ", ") {
			delete(item, in.ExpressionAttributeNames[name])
		}
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func seededDynamo(id string) *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{
		pkPrefix + id + "|" + skMeta: {
			"PK":           &types.AttributeValueMemberS{Value: pkPrefix + id},
			"SK":           &types.AttributeValueMemberS{Value: skMeta},
			"userId":       &types.AttributeValueMemberS{Value: "u1"},
			"status":       &types.AttributeValueMemberS{Value: "failed"},
			"errorMessage": &types.AttributeValueMemberS{Value: "old failure"},
		},
	}}
}

func TestDynamoStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := seededDynamo("m1")
	s := NewDynamoStore(db, "meetings")

	if err := s.UpdateMeeting(ctx, "m1", Processing(fixedNow)); err != nil {
		t.Fatalf("processing: %v", err)
	}
	m, err := s.GetMeeting(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if m.UserID != "u1" || m.Status != meeting.StatusProcessing || m.StartedAt == nil || !m.StartedAt.Equal(fixedNow) {
		t.Errorf("after processing: %+v", m)
	}

	if err := s.UpdateMeeting(ctx, "m1", Completed("Hello world", sampleInsights(), fixedNow.Add(time.Minute))); err != nil {
		t.Fatalf("completed: %v", err)
	}
	m, err = s.GetMeeting(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != meeting.StatusCompleted || m.Transcript != "Hello world" || m.Summary != "S" {
		t.Errorf("after completed: %+v", m)
	}
	if !reflect.DeepEqual(m.KeyPoints, []string{"K1"}) || !reflect.DeepEqual(m.ActionItems, []string{"A1"}) {
		t.Errorf("lists = %v / %v", m.KeyPoints, m.ActionItems)
	}
	if !reflect.DeepEqual(m.Participants, []meeting.Participant{{Name: "Alice"}}) {
		t.Errorf("participants = %+v", m.Participants)
	}
	if m.ErrorMessage != "" {
		t.Errorf("stale error_message kept: %q", m.ErrorMessage)
	}
	if m.ProcessedAt == nil {
		t.Error("processedAt not set")
	}

	last := db.updates[len(db.updates)-1]
	if aws.ToString(last.ConditionExpression) != "attribute_exists(PK)" {
		t.Errorf("condition = %q", aws.ToString(last.ConditionExpression))
	}
	if !strings.Contains(aws.ToString(last.UpdateExpression), " REMOVE ") {
		t.Errorf("expected REMOVE clause: %s", aws.ToString(last.UpdateExpression))
	}
}

func TestDynamoStore_MissingMeeting(t *testing.T) {
	s := NewDynamoStore(&fakeDynamo{items: map[string]map[string]types.AttributeValue{}}, "meetings")
	if err := s.UpdateMeeting(context.Background(), "nope", Failed("x")); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("update err = %v", err)
	}
	if _, err := s.GetMeeting(context.Background(), "nope"); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("get err = %v", err)
	}
}

func TestDynamoStore_ParticipantAttributeNames(t *testing.T) {
	db := seededDynamo("m1")
	s := NewDynamoStore(db, "meetings")
	insights := sampleInsights()
	insights.Participants = []meeting.Participant{{Name: "Bob", Email: "bob@example.com"}}
	if err := s.UpdateMeeting(context.Background(), "m1", Completed("t", insights, fixedNow)); err != nil {
		t.Fatal(err)
	}
	var stored []map[string]string
	if err := attributevalue.Unmarshal(db.items[pkPrefix+"m1|"+skMeta]["participants"], &stored); err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0]["name"] != "Bob" || stored[0]["email"] != "bob@example.com" {
		t.Errorf("stored participants = %v", stored)
	}
}

// --- PostgreSQL ---

func TestPostgresUpdate_Completed(t *testing.T) {
	query, args, err := postgresUpdate("m1", Completed("Hello world", sampleInsights(), fixedNow))
	if err != nil {
		t.Fatal(err)
	}
	want := "UPDATE meetings SET status = $1, transcript = $2, summary = $3, key_points = $4::text[], " +
		"action_items = $5::text[], participants = $6::jsonb, processed_at = $7::timestamptz, error_message = NULL WHERE id = $8"
	if query != want {
		t.Errorf("query =\n%s\nwant\n%s", query, want)
	}
	if len(args) != 8 {
		t.Fatalf("args = %d", len(args))
	}
	if args[0] != "completed" || args[1] != "Hello world" || args[7] != "m1" {
		t.Errorf("args = %v", args)
	}
	if !reflect.DeepEqual(args[3], pq.Array([]string{"K1"})) {
		t.Errorf("key_points arg = %#v", args[3])
	}
	if args[5] != `[{"name":"Alice"}]` {
		t.Errorf("participants arg = %v", args[5])
	}
}

func TestPostgresUpdate_Processing(t *testing.T) {
	query, args, err := postgresUpdate("m1", Processing(fixedNow))
	if err != nil {
		t.Fatal(err)
	}
	if query != "UPDATE meetings SET status = $1, started_at = $2::timestamptz WHERE id = $3" {
		t.Errorf("query = %s", query)
	}
	if ts, ok := args[1].(time.Time); !ok || !ts.Equal(fixedNow) {
		t.Errorf("started_at arg = %v", args[1])
	}
}

func TestMeetingRowDecode(t *testing.T) {
	str := func(s string) *string { return &s }
	r := meetingRow{
		ID: str("m1"), UserID: str("u1"), Status: str("completed"), Transcript: str("Hello world"), Summary: str("S"),
		KeyPoints: str(`["K1"]`), ActionItems: nil, Participants: str(`[{"name":"Alice","email":"a@x.io"}]`),
		StartedAt: str("2025-03-14T09:30:00.123+00:00"),
	}
	m, err := r.meeting()
	if err != nil {
		t.Fatal(err)
	}
	if m.UserID != "u1" || m.Status != meeting.StatusCompleted || m.ActionItems != nil || len(m.KeyPoints) != 1 {
		t.Errorf("meeting = %+v", m)
	}
	if m.Participants[0].Email != "a@x.io" {
		t.Errorf("participants = %+v", m.Participants)
	}
	if m.StartedAt == nil || m.StartedAt.UTC().Hour() != 9 {
		t.Errorf("startedAt = %v", m.StartedAt)
	}
	if m.ProcessedAt != nil {
		t.Errorf("processedAt = %v", m.ProcessedAt)
	}
}

// --- RDS Data API ---

const meetingUUID = "6f1c2a4e-9b3d-4e8f-a1c7-2d5b8e0f3a91"

type fakeDataAPI struct {
	inputs  []*rdsdata.ExecuteStatementInput
	updated int64
	records [][]rdsdatatypes.Field
}

func (f *fakeDataAPI) ExecuteStatement(_ context.Context, in *rdsdata.ExecuteStatementInput, _ ...func(*rdsdata.Options)) (*rdsdata.ExecuteStatementOutput, error) {
	f.inputs = append(f.inputs, in)
	return &rdsdata.ExecuteStatementOutput{NumberOfRecordsUpdated: f.updated, Records: f.records}, nil
}

func TestDataAPIStore_Update(t *testing.T) {
	api := &fakeDataAPI{updated: 1}
	s := NewDataAPIStore(api, "arn:cluster", "arn:secret", "meetings_db")

	if err := s.UpdateMeeting(context.Background(), meetingUUID, Completed("Hello world", sampleInsights(), fixedNow)); err != nil {
		t.Fatal(err)
	}
	in := api.inputs[0]
	if aws.ToString(in.ResourceArn) != "arn:cluster" || aws.ToString(in.Database) != "meetings_db" {
		t.Errorf("input = %+v", in)
	}
	sql := aws.ToString(in.Sql)
	if !strings.Contains(sql, "key_points = :p3::text[]") || !strings.HasSuffix(sql, "WHERE id = :p7") {
		t.Errorf("sql = %s", sql)
	}
	byName := map[string]rdsdatatypes.SqlParameter{}
	for _, p := range in.Parameters {
		byName[aws.ToString(p.Name)] = p
	}
	if v := byName["p3"].Value.(*rdsdatatypes.FieldMemberStringValue).Value; v != `{"K1"}` {
		t.Errorf("key_points param = %s", v)
	}
	if byName["p5"].TypeHint != rdsdatatypes.TypeHintJson {
		t.Errorf("participants type hint = %v", byName["p5"].TypeHint)
	}
	if byName["p6"].TypeHint != rdsdatatypes.TypeHintTimestamp {
		t.Errorf("processed_at type hint = %v", byName["p6"].TypeHint)
	}
	if byName["p7"].Value.(*rdsdatatypes.FieldMemberStringValue).Value != meetingUUID {
		t.Errorf("id param = %+v", byName["p7"])
	}
}

func TestDataAPIStore_UpdateMissing(t *testing.T) {
	s := NewDataAPIStore(&fakeDataAPI{updated: 0}, "c", "s", "d")
	if err := s.UpdateMeeting(context.Background(), meetingUUID, Failed("x")); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestSQLStores_NonUUIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	api := &fakeDataAPI{updated: 1}
	das := NewDataAPIStore(api, "c", "s", "d")
	if err := das.UpdateMeeting(ctx, "m1", Failed("x")); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("data api update err = %v", err)
	}
	if _, err := das.GetMeeting(ctx, "not-a-uuid"); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("data api get err = %v", err)
	}
	if len(api.inputs) != 0 {
		t.Errorf("statements sent for invalid id: %d", len(api.inputs))
	}

	// A nil *sql.DB would panic if the id check let the call through.
	pg := NewPostgresStore(nil)
	if err := pg.UpdateMeeting(ctx, "m1", Failed("x")); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("postgres update err = %v", err)
	}
	if _, err := pg.GetMeeting(ctx, "'; DROP TABLE meetings; --"); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("postgres get err = %v", err)
	}
}

func TestDataAPIStore_Get(t *testing.T) {
	sv := func(s string) rdsdatatypes.Field { return &rdsdatatypes.FieldMemberStringValue{Value: s} }
	null := &rdsdatatypes.FieldMemberIsNull{Value: true}
	api := &fakeDataAPI{records: [][]rdsdatatypes.Field{{
		sv(meetingUUID), sv("u1"), sv("failed"), null, null, null, null, null, sv("Failed to download file: nope"), sv("2025-03-14T09:30:00+00:00"), null,
	}}}
	m, err := NewDataAPIStore(api, "c", "s", "d").GetMeeting(context.Background(), meetingUUID)
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != meetingUUID || m.UserID != "u1" {
		t.Errorf("identity = %q / %q", m.ID, m.UserID)
	}
	if m.Status != meeting.StatusFailed || m.ErrorMessage != "Failed to download file: nope" || m.StartedAt == nil {
		t.Errorf("meeting = %+v", m)
	}
}

func TestFormatTextArray(t *testing.T) {
	got := formatTextArray([]string{`say "hi"`, `back\slash`, "plain"})
	want := `{"say \"hi\"","back\\slash","plain"}`
	if got != want {
		t.Errorf("formatTextArray = %s, want %s", got, want)
	}
	if formatTextArray(nil) != "{}" {
		t.Error("empty array should be {}")
	}
}
