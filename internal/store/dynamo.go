package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/fpang/meeting-transcriber/internal/meeting"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "MEETING#"
	skMeta   = "META"
)

// dynamoAttr maps relational column names to item attribute names.
var dynamoAttr = map[string]string{
	"status":        "status",
	"started_at":    "startedAt",
	"transcript":    "transcript",
	"summary":       "summary",
	"key_points":    "keyPoints",
	"action_items":  "actionItems",
	"participants":  "participants",
	"processed_at":  "processedAt",
	"error_message": "errorMessage",
}

// DynamoAPI is the part of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore implements MeetingStore on a DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

var _ MeetingStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for tableName.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// dynamoMeeting is the stored item shape.
type dynamoMeeting struct {
	PK           string                `dynamodbav:"PK"`
	UserID       string                `dynamodbav:"userId,omitempty"`
	Status       string                `dynamodbav:"status"`
	Transcript   string                `dynamodbav:"transcript,omitempty"`
	Summary      string                `dynamodbav:"summary,omitempty"`
	KeyPoints    []string              `dynamodbav:"keyPoints,omitempty"`
	ActionItems  []string              `dynamodbav:"actionItems,omitempty"`
	Participants []meeting.Participant `dynamodbav:"participants,omitempty"`
	ErrorMessage string                `dynamodbav:"errorMessage,omitempty"`
	StartedAt    string                `dynamodbav:"startedAt,omitempty"`
	ProcessedAt  string                `dynamodbav:"processedAt,omitempty"`
}

func meetingKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkPrefix + id},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

// UpdateMeeting applies u with one UpdateItem call. The attribute_exists
// condition keeps UpdateItem from creating a record.
func (s *DynamoStore) UpdateMeeting(ctx context.Context, id string, u MeetingUpdate) error {
	input, err := s.updateInput(id, u)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrMeetingNotFound
		}
		return fmt.Errorf("UpdateItem PK=%s%s: %w", pkPrefix, id, err)
	}

	zerolog.Ctx(ctx).Debug().Str("meetingId", id).Str("status", string(u.Status)).Msg("Meeting record updated")
	return nil
}

func (s *DynamoStore) updateInput(id string, u MeetingUpdate) (*dynamodb.UpdateItemInput, error) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var sets, removes []string

	for i, col := range u.columns() {
		attr := dynamoAttr[col.Name]
		nameRef := "#a" + strconv.Itoa(i)
		names[nameRef] = attr // status is a reserved word; alias every name
		if col.Value == nil {
			removes = append(removes, nameRef)
			continue
		}
		valueRef := ":v" + strconv.Itoa(i)
		av, err := attributevalue.Marshal(dynamoValue(col.Value))
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", col.Name, err)
		}
		values[valueRef] = av
		sets = append(sets, nameRef+" = "+valueRef)
	}

	expr := "SET " + strings.Join(sets, ", ")
	if len(removes) > 0 {
		expr += " REMOVE " + strings.Join(removes, ", ")
	}
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       meetingKey(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}, nil
}

// dynamoValue stores timestamps as RFC 3339 strings.
func dynamoValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// GetMeeting reads the META item for id.
func (s *DynamoStore) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            meetingKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s%s: %w", pkPrefix, id, err)
	}
	if out.Item == nil {
		return nil, ErrMeetingNotFound
	}

	var item dynamoMeeting
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s%s: %w", pkPrefix, id, err)
	}
	m := &Meeting{
		ID:           id,
		UserID:       item.UserID,
		Status:       meeting.Status(item.Status),
		Transcript:   item.Transcript,
		Summary:      item.Summary,
		KeyPoints:    item.KeyPoints,
		ActionItems:  item.ActionItems,
		Participants: item.Participants,
		ErrorMessage: item.ErrorMessage,
		StartedAt:    parseTime(item.StartedAt),
		ProcessedAt:  parseTime(item.ProcessedAt),
	}
	return m, nil
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}
