package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	awsx "github.com/julddmedia/storefront-checkout/internal/aws"
	"github.com/julddmedia/storefront-checkout/internal/orders"
)

// Processor consumes settlement notices and dispatches confirmation email
// through the injected sender.
type Processor struct {
	sender EmailSender
}

// NewProcessor creates a worker processor.
func NewProcessor(sender EmailSender) *Processor {
	return &Processor{sender: sender}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			log.Printf("worker error: %v", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(_ context.Context, rec events.SQSMessage) error {
	var notice awsx.SettlementNotice
	if err := json.Unmarshal([]byte(rec.Body), &notice); err != nil {
		return fmt.Errorf("invalid notice body: %w", err)
	}

	log.Printf("[worker] received notice order=%s session=%s status=%s",
		notice.OrderID, notice.GatewaySessionID, notice.Status)

	if notice.Status != orders.StatusCompleted {
		// Failed settlements are invisible to the shopper; nothing to send.
		return nil
	}
	if notice.CustomerEmail == "" {
		log.Printf("[worker] completed order=%s has no customer email, skipping", notice.OrderID)
		return nil
	}

	if err := p.sender.SendOrderConfirmation(notice.CustomerEmail, notice.ProductName, notice.TotalCents, notice.OrderID); err != nil {
		return fmt.Errorf("send confirmation for order=%s: %w", notice.OrderID, err)
	}

	log.Printf("[worker] confirmation dispatched order=%s", notice.OrderID)
	return nil
}
