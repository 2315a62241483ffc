package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SettlementNotice is the message fanned out after an order reaches a
// terminal status. The email worker consumes it.
type SettlementNotice struct {
	OrderID          string `json:"order_id"`
	GatewaySessionID string `json:"gateway_session_id"`
	Status           string `json:"status"`
	CustomerEmail    string `json:"customer_email,omitempty"`
	ProductName      string `json:"product_name,omitempty"`
	TotalCents       int64  `json:"total_cents"`
}

// Publisher wraps an SQS client and a queue URL.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// PublishSettlementNotice serializes the notice and sends it to the queue.
// The session id and status ride along as message attributes for queue-side filtering.
func (p *Publisher) PublishSettlementNotice(ctx context.Context, notice SettlementNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	bodyStr := string(body)

	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &bodyStr,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"gateway_session_id": {
				DataType:    awsString("String"),
				StringValue: &notice.GatewaySessionID,
			},
			"status": {
				DataType:    awsString("String"),
				StringValue: &notice.Status,
			},
		},
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// awsString helper
func awsString(s string) *string { return &s }
