package models

import (
	"time"

	"github.com/google/uuid"
)

type Wallet struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	BalancePaise int64     `json:"balance_paise"`
	IsActive     bool      `json:"is_active"`
	IsDeleted    bool      `json:"is_deleted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type WalletTransaction struct {
	ID                  uuid.UUID  `json:"id"`
	WalletID            uuid.UUID  `json:"wallet_id"`
	AmountPaise         int64      `json:"amount_paise"`
	Type                string     `json:"transaction_type"` // "CREDIT" or "DEBIT"
	Status              string     `json:"status"`           // "PENDING", "SUCCESS" or "FAILED"
	GatewayOrderID      *string    `json:"gateway_order_id,omitempty"`
	GatewayPaymentID    *string    `json:"gateway_payment_id,omitempty"`
	ParentTransactionID *uuid.UUID `json:"parent_transaction_id,omitempty"`
	Description         string     `json:"description"`
	IsDeleted           bool       `json:"is_deleted"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
