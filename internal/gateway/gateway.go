// Package gateway abstracts the external payment provider: opening hosted
// checkout sessions and authenticating the asynchronous settlement events it
// delivers. Components depend on the Client interface, never on the provider
// SDK directly.
package gateway

import (
	"context"
	"errors"
)

// ErrInvalidSignature indicates the event payload failed authentication.
// Such payloads are never parsed as structured data.
var ErrInvalidSignature = errors.New("invalid event signature")

// SessionRequest describes a single-item hosted checkout session.
type SessionRequest struct {
	PriceID     string
	ProductName string
	SuccessURL  string
	CancelURL   string
	// IdempotencyKey, when set, is forwarded to the provider so a retried
	// call returns the original session instead of opening a new one.
	IdempotencyKey string
}

// Session is the provider's view of a created checkout session. The provider
// is the price authority: TotalCents is its computed total, not ours.
type Session struct {
	ID         string
	TotalCents int64
}

// EventType enumerates the settlement event variants this service knows.
type EventType int

const (
	// EventUnknown is the fallback for provider event types we do not
	// handle. Unknown events are acknowledged and ignored.
	EventUnknown EventType = iota
	EventSessionCompleted
	EventPaymentFailed
)

// Event is a verified, decoded settlement notification. It is only ever
// produced by VerifySignature, so holding an Event implies the payload
// authenticated.
type Event struct {
	Type EventType
	// RawType is the provider's type string, kept for logging unknowns.
	RawType string
	// SessionID correlates the event to an order. May be empty on unknown
	// variants or malformed provider payloads.
	SessionID string
	// CustomerEmail is disclosed by the provider on successful payment only.
	CustomerEmail string
}

// Client is the payment-gateway capability consumed by checkout and
// settlement.
type Client interface {
	// CreateSession opens a hosted checkout session for one unit of the
	// referenced item.
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)

	// VerifySignature authenticates the raw payload against the out-of-band
	// signature header and, only then, decodes it into an Event. Returns
	// ErrInvalidSignature when authentication fails.
	VerifySignature(payload []byte, sigHeader string) (Event, error)
}
