// Package checkout implements session creation: open a hosted payment
// session with the gateway, then record the pending order that settlement
// will later resolve.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/julddmedia/storefront-checkout/internal/gateway"
	"github.com/julddmedia/storefront-checkout/internal/idempotency"
	"github.com/julddmedia/storefront-checkout/internal/orders"
)

const gatewayTimeout = 15 * time.Second

// ErrMissingPriceID indicates the request carried no item reference.
var ErrMissingPriceID = errors.New("price id is required")

// ErrGatewayUnavailable indicates the gateway session could not be opened.
// No order was created; the caller may retry.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrPersistence indicates a store write failed. When it happens after the
// gateway call, a live session exists with no local order row.
var ErrPersistence = errors.New("order persistence failed")

// ErrRequestInProgress indicates another request with the same idempotency
// key has not finished yet.
var ErrRequestInProgress = errors.New("request with this idempotency key is in progress")

// ErrPreviousAttemptFailed indicates a prior request with the same
// idempotency key failed; the record must expire or be cleared before reuse.
var ErrPreviousAttemptFailed = errors.New("previous attempt with this idempotency key failed")

// CreateSessionInput is the checkout request after HTTP binding.
type CreateSessionInput struct {
	PriceID        string
	ProductName    string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string // optional; empty disables the replay guard
}

// Service is the checkout initiator. All collaborators are injected; the
// service holds no global state.
type Service struct {
	gateway     gateway.Client
	orders      *orders.Store
	idempotency *idempotency.Store

	defaultSuccessURL string
	defaultCancelURL  string
}

// NewService wires a checkout Service. Default redirect URLs back fill
// requests that omit them.
func NewService(gw gateway.Client, orderStore *orders.Store, idempStore *idempotency.Store, defaultSuccessURL, defaultCancelURL string) *Service {
	return &Service{
		gateway:           gw,
		orders:            orderStore,
		idempotency:       idempStore,
		defaultSuccessURL: defaultSuccessURL,
		defaultCancelURL:  defaultCancelURL,
	}
}

// CreateSession opens a gateway session and records the pending order.
// Exactly one gateway session and at most one order row per successful call.
// With an idempotency key, a duplicate call replays the original session id
// instead of opening a second session.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (string, error) {
	if in.PriceID == "" {
		return "", ErrMissingPriceID
	}

	successURL := in.SuccessURL
	if successURL == "" {
		successURL = s.defaultSuccessURL
	}
	cancelURL := in.CancelURL
	if cancelURL == "" {
		cancelURL = s.defaultCancelURL
	}

	orderID := uuid.NewString()

	if in.IdempotencyKey != "" {
		sessionID, done, err := s.claimKey(ctx, in.IdempotencyKey, orderID)
		if err != nil {
			return "", err
		}
		if done {
			return sessionID, nil
		}
	}

	// The gateway call is the only network hop here; keep it bounded.
	gwCtx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	sess, err := s.gateway.CreateSession(gwCtx, gateway.SessionRequest{
		PriceID:        in.PriceID,
		ProductName:    in.ProductName,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		if in.IdempotencyKey != "" {
			_ = s.idempotency.MarkFailed(ctx, in.IdempotencyKey, "", fmt.Sprintf("gateway: %v", err))
		}
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	order := orders.Order{
		GatewaySessionID: sess.ID,
		OrderID:          orderID,
		ProductName:      in.ProductName,
		TotalCents:       sess.TotalCents,
		Status:           orders.StatusPending,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		// A live gateway session now has no local record. Keep it loud and
		// traceable; the idempotency record, when present, pins the orphan.
		log.Printf("[checkout] order write failed for live session=%s: %v", sess.ID, err)
		if in.IdempotencyKey != "" {
			_ = s.idempotency.MarkFailed(ctx, in.IdempotencyKey, sess.ID, fmt.Sprintf("order write: %v", err))
		}
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if in.IdempotencyKey != "" {
		if err := s.idempotency.MarkDone(ctx, in.IdempotencyKey, sess.ID); err != nil {
			// Order and session both exist; a replay will re-resolve via the
			// gateway-side idempotency key. Not worth failing the request.
			log.Printf("[checkout] mark done failed key=%s: %v", in.IdempotencyKey, err)
		}
	}

	log.Printf("[checkout] created session=%s order=%s total_cents=%d", sess.ID, orderID, sess.TotalCents)
	return sess.ID, nil
}

// claimKey conditionally claims the idempotency key. Returns the replayable
// session id with done=true when a previous attempt already completed.
func (s *Service) claimKey(ctx context.Context, key, orderID string) (string, bool, error) {
	created, err := s.idempotency.CreateIfNotExists(ctx, key, orderID)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if created {
		return "", false, nil
	}

	rec, err := s.idempotency.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if rec == nil {
		return "", false, fmt.Errorf("%w: idempotency record missing after conflict", ErrPersistence)
	}
	switch rec.Status {
	case idempotency.StatusDone:
		log.Printf("[checkout] replaying session=%s for idempotency key=%s", rec.GatewaySessionID, key)
		return rec.GatewaySessionID, true, nil
	case idempotency.StatusInProgress:
		return "", false, ErrRequestInProgress
	case idempotency.StatusFailed:
		return "", false, ErrPreviousAttemptFailed
	default:
		return "", false, fmt.Errorf("%w: unknown idempotency status %q", ErrPersistence, rec.Status)
	}
}
