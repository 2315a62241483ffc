package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

// logSender logs instead of delivering. The real sender is provided by the
// surrounding platform; this keeps the worker runnable everywhere.
type logSender struct{}

func (logSender) SendOrderConfirmation(to, productName string, totalCents int64, orderID string) error {
	log.Printf("[email] to=%s order=%s product=%q total_cents=%d", to, orderID, productName, totalCents)
	return nil
}

func main() {
	p := NewProcessor(logSender{})

	// If RUN_LOCAL=true, simulate a single settlement notice for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_id":"local-order-1","gateway_session_id":"sess_local_1","status":"completed","customer_email":"dev@example.com","total_cents":2497}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{
					Body: testBody,
				},
			},
		}
		if err := p.Handle(context.Background(), event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(p.Handle)
}
