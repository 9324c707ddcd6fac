package domain

import "errors"

var (
	// ErrWalletNotFound is returned when no active wallet exists for a user.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTooManyPendingTransactions is returned by the recharge admission
	// gate when the wallet already has the maximum number of recent
	// PENDING transactions.
	ErrTooManyPendingTransactions = errors.New("too many pending transactions")

	// ErrInsufficientBalance is returned when a debit exceeds the wallet balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNegativeBalance is returned when a balance would be set below zero.
	ErrNegativeBalance = errors.New("balance cannot be negative")

	// ErrInvalidSignature is returned when a gateway signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrTransactionNotFound is returned when no PENDING transaction matches
	// an order id. A duplicate completion attempt for an already-terminal
	// order observes this error and treats it as a no-op.
	ErrTransactionNotFound = errors.New("transaction not found")
)
