package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is the shape persisted in the checkout idempotency DynamoDB table.
// A DONE record carries the gateway session id so a retried request replays
// the same session instead of opening a second one. A FAILED record keeps
// the session id too when the gateway call succeeded but the order write did
// not, so orphaned sessions stay discoverable.
type Record struct {
	IdempotencyKey   string    `dynamodbav:"idempotency_key"` // PK
	Status           string    `dynamodbav:"status"`
	GatewaySessionID string    `dynamodbav:"gateway_session_id,omitempty"`
	OrderID          string    `dynamodbav:"order_id,omitempty"`
	CreatedAt        time.Time `dynamodbav:"created_at"`
	UpdatedAt        time.Time `dynamodbav:"updated_at"`
	ExpiresAt        int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note             string    `dynamodbav:"note,omitempty"`
}
