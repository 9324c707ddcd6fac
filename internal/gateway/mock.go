package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
)

// MockClient simulates the external payment gateway for tests and local
// development. It records how many orders were requested so admission-gate
// tests can assert that no gateway call was made.
type MockClient struct {
	// RejectWith, when set, makes every CreateOrder call fail with this message.
	RejectWith string

	calls atomic.Int64
}

// NewMockClient creates a MockClient that accepts every order.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreateOrder issues a fake order id of the form "order_<hex>".
func (m *MockClient) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*Order, error) {
	m.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gateway call canceled: %w", err)
	}
	if m.RejectWith != "" {
		return nil, &RejectionError{StatusCode: http.StatusBadRequest, Message: m.RejectWith}
	}

	return &Order{
		OrderID:     "order_" + uuid.NewString()[:13],
		AmountPaise: amountPaise,
		Currency:    currency,
		Receipt:     receipt,
	}, nil
}

// Calls returns the number of CreateOrder invocations.
func (m *MockClient) Calls() int64 {
	return m.calls.Load()
}
