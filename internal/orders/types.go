package orders

import "time"

// Order statuses. Transitions are one-directional: pending -> completed or
// pending -> failed. There is no path out of a terminal status.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TerminalStatus reports whether s is a terminal order status.
func TerminalStatus(s string) bool {
	return s == StatusCompleted || s == StatusFailed
}

// Order is the item stored in the orders DynamoDB table. The gateway session
// id is the partition key: it is the only externally supplied correlation
// key, and settlement events carry nothing else.
type Order struct {
	GatewaySessionID string    `dynamodbav:"gateway_session_id"` // PK
	OrderID          string    `dynamodbav:"order_id"`
	ProductName      string    `dynamodbav:"product_name,omitempty"`
	TotalCents       int64     `dynamodbav:"total_cents"`              // minor units, gateway-quoted
	Status           string    `dynamodbav:"status"`                   // pending | completed | failed
	CustomerEmail    string    `dynamodbav:"customer_email,omitempty"` // unknown until settlement
	CreatedAt        time.Time `dynamodbav:"created_at"`
	UpdatedAt        time.Time `dynamodbav:"updated_at"`
}
