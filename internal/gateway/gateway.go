package gateway

import (
	"context"
	"fmt"
)

// Order is the gateway-issued handle for an in-progress payment attempt.
type Order struct {
	OrderID     string
	AmountPaise int64
	Currency    string
	Receipt     string
}

// Client represents the external payment gateway interface.
type Client interface {
	// CreateOrder opens a gateway order for the given minor-unit amount with
	// a unique receipt token. Gateway-side rejections surface as
	// *RejectionError.
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*Order, error)
}

// RejectionError carries the gateway's rejection message for an order
// request, e.g. amount below the gateway minimum or a malformed receipt.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("gateway rejected order: %s", e.Message)
}
