// Package settlement applies gateway settlement events to orders. The
// gateway delivers at least once, so everything here is written to be
// replay-safe: the idempotency key is (gateway session id, target status)
// and the store's conditional update is the arbiter.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	awsx "github.com/julddmedia/storefront-checkout/internal/aws"
	"github.com/julddmedia/storefront-checkout/internal/gateway"
	"github.com/julddmedia/storefront-checkout/internal/orders"
)

// Result classifies how a verified event was handled. Everything except a
// verification or persistence failure is acknowledged to the gateway.
type Result int

const (
	// ResultIgnored: unknown event type, acknowledged without side effects.
	ResultIgnored Result = iota
	// ResultApplied: the order transitioned to a terminal status.
	ResultApplied
	// ResultDuplicate: the order was already terminal; idempotent no-op.
	ResultDuplicate
	// ResultOrderNotFound: no order matches the session id. An anomaly,
	// recorded for reconciliation but still acknowledged so the gateway
	// stops redelivering.
	ResultOrderNotFound
)

const (
	settleAttempts = 3
	settleBackoff  = 100 * time.Millisecond
)

// Processor is the settlement state machine.
type Processor struct {
	gateway   gateway.Client
	orders    *orders.Store
	publisher *awsx.Publisher // optional; settlement notices for the email worker
	metrics   *awsx.Metrics   // optional
}

// NewProcessor wires a settlement Processor. publisher and metrics may be nil.
func NewProcessor(gw gateway.Client, orderStore *orders.Store, publisher *awsx.Publisher, metrics *awsx.Metrics) *Processor {
	return &Processor{
		gateway:   gw,
		orders:    orderStore,
		publisher: publisher,
		metrics:   metrics,
	}
}

// Process authenticates the raw payload, then applies the event. The payload
// is never decoded before VerifySignature accepts it. The returned error is
// either gateway.ErrInvalidSignature or an exhausted persistence failure;
// both are the only conditions that withhold acknowledgment.
func (p *Processor) Process(ctx context.Context, payload []byte, sigHeader string) (Result, error) {
	ev, err := p.gateway.VerifySignature(payload, sigHeader)
	if err != nil {
		return ResultIgnored, err
	}

	switch ev.Type {
	case gateway.EventSessionCompleted:
		return p.settle(ctx, ev, orders.StatusCompleted, ev.CustomerEmail)
	case gateway.EventPaymentFailed:
		return p.settle(ctx, ev, orders.StatusFailed, "")
	default:
		log.Printf("[settlement] ignoring event type=%s", ev.RawType)
		p.count(ctx, "SettlementEventIgnored", ev.RawType)
		return ResultIgnored, nil
	}
}

func (p *Processor) settle(ctx context.Context, ev gateway.Event, newStatus, email string) (Result, error) {
	if ev.SessionID == "" {
		// Authenticated but uncorrelatable; same posture as an unknown order.
		log.Printf("[settlement] anomaly: event type=%s carries no session id", ev.RawType)
		p.count(ctx, "OrphanSettlementEvent", ev.RawType)
		return ResultOrderNotFound, nil
	}

	err := p.settleWithRetry(ctx, ev.SessionID, newStatus, email)
	switch {
	case err == nil:
		log.Printf("[settlement] order session=%s -> %s", ev.SessionID, newStatus)
		p.count(ctx, "SettlementApplied", ev.RawType)
		if newStatus == orders.StatusCompleted {
			p.notify(ctx, ev.SessionID)
		}
		return ResultApplied, nil

	case errors.Is(err, orders.ErrNotPending):
		// Redelivery, or the late loser of an out-of-order race. The first
		// terminal transition stands either way.
		log.Printf("[settlement] duplicate event for session=%s (already terminal)", ev.SessionID)
		p.count(ctx, "SettlementDuplicate", ev.RawType)
		return ResultDuplicate, nil

	case errors.Is(err, orders.ErrNotFound):
		log.Printf("[settlement] anomaly: no order for session=%s", ev.SessionID)
		p.count(ctx, "OrphanSettlementEvent", ev.RawType)
		return ResultOrderNotFound, nil

	default:
		// Persistence retries exhausted; let the gateway redeliver.
		return ResultIgnored, fmt.Errorf("settle session=%s: %w", ev.SessionID, err)
	}
}

// settleWithRetry retries transient store failures with doubling backoff.
// Conditional outcomes (not pending, not found) are definitive and returned
// immediately.
func (p *Processor) settleWithRetry(ctx context.Context, sessionID, newStatus, email string) error {
	backoff := settleBackoff
	var err error
	for attempt := 1; attempt <= settleAttempts; attempt++ {
		err = p.orders.SettleIfPending(ctx, sessionID, newStatus, email)
		if err == nil || errors.Is(err, orders.ErrNotPending) || errors.Is(err, orders.ErrNotFound) {
			return err
		}
		if attempt == settleAttempts {
			break
		}
		log.Printf("[settlement] store error for session=%s (attempt %d/%d): %v", sessionID, attempt, settleAttempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// notify publishes a settlement notice for the email worker. Best effort:
// the event is already durably applied, so a publish failure must not un-ack it.
func (p *Processor) notify(ctx context.Context, sessionID string) {
	if p.publisher == nil {
		return
	}
	order, err := p.orders.GetBySessionID(ctx, sessionID)
	if err != nil {
		log.Printf("[settlement] notice lookup failed for session=%s: %v", sessionID, err)
		return
	}
	notice := awsx.SettlementNotice{
		OrderID:          order.OrderID,
		GatewaySessionID: order.GatewaySessionID,
		Status:           order.Status,
		CustomerEmail:    order.CustomerEmail,
		ProductName:      order.ProductName,
		TotalCents:       order.TotalCents,
	}
	if err := p.publisher.PublishSettlementNotice(ctx, notice); err != nil {
		log.Printf("[settlement] notice publish failed for session=%s: %v", sessionID, err)
	}
}

func (p *Processor) count(ctx context.Context, metric, eventType string) {
	if p.metrics == nil {
		return
	}
	p.metrics.Count(ctx, metric, map[string]string{"EventType": eventType})
}
