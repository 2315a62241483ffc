package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/julddmedia/storefront-checkout/internal/aws"
)

// ErrSessionExists indicates a create collided with an existing session id.
// Session ids are gateway-issued and single-use, so this points at a retry
// bug or a gateway anomaly, never normal operation.
var ErrSessionExists = errors.New("order with session id already exists")

// ErrNotFound indicates no order exists for the session id.
var ErrNotFound = errors.New("order not found")

// ErrNotPending indicates the conditional settle lost: the order is already
// in a terminal status. Callers treat this as a duplicate delivery, not a failure.
var ErrNotPending = errors.New("order is not pending")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create persists a new order. The conditional put enforces the uniqueness
// of the gateway session id; a collision returns ErrSessionExists.
func (s *Store) Create(ctx context.Context, order Order) error {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(gateway_session_id)"),
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrSessionExists
		}
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// GetBySessionID fetches an order by gateway session id. Returns ErrNotFound
// when no item exists.
func (s *Store) GetBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"gateway_session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// SettleIfPending applies the terminal transition pending -> newStatus as a
// single conditional update. Concurrent or redelivered settlements race on
// the condition; the loser gets ErrNotPending and nothing is overwritten.
// A missing item returns ErrNotFound so callers can tell a duplicate apart
// from an event that references no order at all.
func (s *Store) SettleIfPending(ctx context.Context, sessionID, newStatus, customerEmail string) error {
	if !TerminalStatus(newStatus) {
		return fmt.Errorf("settle to non-terminal status %q", newStatus)
	}

	now := s.nowFunc().UTC()
	updateExpr := "SET #s = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":     &types.AttributeValueMemberS{Value: newStatus},
		":ua":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":pending": &types.AttributeValueMemberS{Value: StatusPending},
	}
	if customerEmail != "" {
		updateExpr += ", customer_email = :email"
		values[":email"] = &types.AttributeValueMemberS{Value: customerEmail}
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"gateway_session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
		UpdateExpression:          &updateExpr,
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		// attribute_exists keeps a settle from upserting a phantom order row.
		ConditionExpression:                 awsString("attribute_exists(gateway_session_id) AND #s = :pending"),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// Compound condition: the returned old item tells which half failed.
			if len(ccf.Item) == 0 {
				return ErrNotFound
			}
			return ErrNotPending
		}
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
