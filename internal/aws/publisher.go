package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/gitshopapp/storefront/internal/models"
)

// Publisher sends order events to an SQS queue. FIFO queues get the order id
// as message group so events of one order stay ordered.
type Publisher struct {
	client   SendMessageAPI
	queueURL string
}

func NewPublisher(client SendMessageAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

func (p *Publisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	messageBody := string(body)

	attributes := map[string]sqstypes.MessageAttributeValue{}
	for name, value := range map[string]string{
		"event_type": string(event.Type),
		"order_no":   event.OrderNumber,
		"order_type": string(event.OrderType),
	} {
		// SQS rejects empty attribute values.
		if value != "" {
			attributes[name] = stringAttribute(value)
		}
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          &p.queueURL,
		MessageBody:       &messageBody,
		MessageAttributes: attributes,
	}
	if strings.HasSuffix(p.queueURL, ".fifo") {
		input.MessageGroupId = awsString(event.OrderID.String())
		input.MessageDeduplicationId = awsString(event.OrderID.String() + ":" + string(event.Type))
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send order event: %w", err)
	}
	return nil
}

func stringAttribute(value string) sqstypes.MessageAttributeValue {
	return sqstypes.MessageAttributeValue{
		DataType:    awsString("String"),
		StringValue: awsString(value),
	}
}
