package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory stand-in that evaluates the two conditional
// expressions this store issues.
type mockDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue // session id -> item

	failUpdates int // fail the next N UpdateItem calls with a generic error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keyAttr, ok := params.Item["gateway_session_id"]
	if !ok {
		return nil, errors.New("missing gateway_session_id")
	}
	k := keyAttr.(*types.AttributeValueMemberS).Value
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(gateway_session_id)" {
		if _, exists := m.items[k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := params.Key["gateway_session_id"].(*types.AttributeValueMemberS).Value
	item, ok := m.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdates > 0 {
		m.failUpdates--
		return nil, errors.New("throughput exceeded")
	}
	k := params.Key["gateway_session_id"].(*types.AttributeValueMemberS).Value
	item, ok := m.items[k]
	if params.ConditionExpression != nil && strings.Contains(*params.ConditionExpression, "attribute_exists") {
		if !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
		pending := params.ExpressionAttributeValues[":pending"].(*types.AttributeValueMemberS).Value
		if item["status"].(*types.AttributeValueMemberS).Value != pending {
			// item exists but is terminal; surface the old item like
			// ReturnValuesOnConditionCheckFailure=ALL_OLD does
			return nil, &types.ConditionalCheckFailedException{Item: item}
		}
	}
	item["status"] = params.ExpressionAttributeValues[":new"]
	item["updated_at"] = params.ExpressionAttributeValues[":ua"]
	if v, ok := params.ExpressionAttributeValues[":email"]; ok {
		item["customer_email"] = v
	}
	m.items[k] = item
	return &dyn.UpdateItemOutput{}, nil
}

func seedOrder(t *testing.T, m *mockDynamo, o Order) {
	t.Helper()
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		t.Fatalf("marshal seed order: %v", err)
	}
	m.items[o.GatewaySessionID] = item
}

func TestCreate_UniqueSessionID(t *testing.T) {
	mock := newMockDynamo()
	s := NewStore(mock, "orders")
	ctx := context.Background()

	order := Order{
		GatewaySessionID: "sess_abc",
		OrderID:          "ord-1",
		ProductName:      "Coloring Book",
		TotalCents:       2497,
		Status:           StatusPending,
	}
	if err := s.Create(ctx, order); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := s.GetBySessionID(ctx, "sess_abc")
	if err != nil {
		t.Fatalf("GetBySessionID error: %v", err)
	}
	if got.Status != StatusPending || got.TotalCents != 2497 || got.CustomerEmail != "" {
		t.Fatalf("unexpected created order: %+v", got)
	}

	// same session id again must collide
	if err := s.Create(ctx, order); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestGetBySessionID_NotFound(t *testing.T) {
	s := NewStore(newMockDynamo(), "orders")
	if _, err := s.GetBySessionID(context.Background(), "sess_zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettleIfPending_AppliesOnce(t *testing.T) {
	mock := newMockDynamo()
	s := NewStore(mock, "orders")
	ctx := context.Background()
	seedOrder(t, mock, Order{GatewaySessionID: "sess_abc", OrderID: "ord-1", Status: StatusPending})

	if err := s.SettleIfPending(ctx, "sess_abc", StatusCompleted, "a@b.com"); err != nil {
		t.Fatalf("settle error: %v", err)
	}
	got, _ := s.GetBySessionID(ctx, "sess_abc")
	if got.Status != StatusCompleted || got.CustomerEmail != "a@b.com" {
		t.Fatalf("unexpected order after settle: %+v", got)
	}

	// identical redelivery loses the condition, state unchanged
	err := s.SettleIfPending(ctx, "sess_abc", StatusCompleted, "a@b.com")
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending on redelivery, got %v", err)
	}
	got2, _ := s.GetBySessionID(ctx, "sess_abc")
	if got2.Status != StatusCompleted || got2.CustomerEmail != "a@b.com" {
		t.Fatalf("redelivery mutated order: %+v", got2)
	}
}

func TestSettleIfPending_NoTerminalOverwrite(t *testing.T) {
	mock := newMockDynamo()
	s := NewStore(mock, "orders")
	ctx := context.Background()
	seedOrder(t, mock, Order{GatewaySessionID: "sess_abc", Status: StatusPending})

	if err := s.SettleIfPending(ctx, "sess_abc", StatusCompleted, "a@b.com"); err != nil {
		t.Fatalf("settle error: %v", err)
	}
	// a late failure event must not flip a completed order
	if err := s.SettleIfPending(ctx, "sess_abc", StatusFailed, ""); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	got, _ := s.GetBySessionID(ctx, "sess_abc")
	if got.Status != StatusCompleted {
		t.Fatalf("terminal status overwritten: %+v", got)
	}
}

func TestSettleIfPending_MissingOrder(t *testing.T) {
	s := NewStore(newMockDynamo(), "orders")
	err := s.SettleIfPending(context.Background(), "sess_zzz", StatusCompleted, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettleIfPending_RejectsNonTerminal(t *testing.T) {
	s := NewStore(newMockDynamo(), "orders")
	err := s.SettleIfPending(context.Background(), "sess_abc", StatusPending, "")
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotPending) {
		t.Fatalf("expected plain error for non-terminal target, got %v", err)
	}
}
