package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"

	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/payments"
)

const conditionalCheckFailed = "ConditionalCheckFailedException"

// EventLog records webhook events in a DynamoDB table keyed by event_key
// ("<provider>#<event id>"). Items are written once and carry no TTL
// attribute, so a redelivery months later is still recognised.
type EventLog struct {
	client    PutItemAPI
	tableName string
	now       func() time.Time
}

type eventItem struct {
	EventKey   string `dynamodbav:"event_key"`
	Provider   string `dynamodbav:"provider"`
	EventID    string `dynamodbav:"event_id"`
	EventType  string `dynamodbav:"event_type"`
	Payload    string `dynamodbav:"payload"`
	ReceivedAt string `dynamodbav:"received_at"`
}

func NewEventLog(client PutItemAPI, tableName string) *EventLog {
	return &EventLog{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func eventKey(provider models.Provider, eventID string) string {
	return string(provider) + "#" + eventID
}

// Record stores the event unless its key already exists, in which case it
// returns payments.ErrDuplicateEvent.
func (l *EventLog) Record(ctx context.Context, event *models.WebhookEvent) error {
	if event == nil || event.EventID == "" {
		return fmt.Errorf("webhook event id is required")
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = l.now().UTC()
	}

	item, err := attributevalue.MarshalMap(eventItem{
		EventKey:   eventKey(event.Provider, event.EventID),
		Provider:   string(event.Provider),
		EventID:    event.EventID,
		EventType:  event.EventType,
		Payload:    string(event.Payload),
		ReceivedAt: event.ReceivedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &l.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(event_key)"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == conditionalCheckFailed {
			return payments.ErrDuplicateEvent
		}
		return fmt.Errorf("put webhook event: %w", err)
	}
	return nil
}
