package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/models"
	"github.com/milkpay/wallet-service/internal/observability"
	"github.com/milkpay/wallet-service/internal/repository"
	"go.uber.org/zap"
)

// ReconcilerService converges PENDING transactions to a terminal state based
// on gateway-reported outcomes. Both completion paths — the authenticated
// client verification call and the unauthenticated gateway webhook — invoke
// it without coordination; whichever arrives first wins, and the loser
// observes ErrTransactionNotFound, which its caller treats as a no-op.
type ReconcilerService struct {
	store QueryStore
}

func NewReconcilerService(store QueryStore) *ReconcilerService {
	return &ReconcilerService{store: store}
}

// CompleteSuccess marks the PENDING transaction for an order SUCCESS, records
// the gateway payment id, and credits the wallet by the transaction's
// recorded amount. Any PENDING bonus transaction linked to it completes in
// the same atomic unit. capturedAmount, when present, is cross-checked
// against the ledger amount: a divergence is surfaced as a reconciliation
// warning and counted, never silently trusted.
//
// source labels the invocation path ("client", "webhook", "sweeper") for
// metrics only; the semantics are identical for every caller.
func (s *ReconcilerService) CompleteSuccess(ctx context.Context, orderID, paymentID string, capturedAmount *domain.Money, source string) (*models.WalletTransaction, error) {
	var result *models.WalletTransaction

	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		txn, err := q.GetPendingTransactionByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Already terminal or unknown order. This is how a duplicate
				// completion attempt becomes a safe no-op instead of a
				// double credit.
				return domain.ErrTransactionNotFound
			}
			return err
		}

		if _, err := q.GetWalletByIDForUpdate(ctx, txn.WalletID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrWalletNotFound
			}
			return err
		}

		// Re-check under the wallet lock. The FOR UPDATE lookup above already
		// serializes competing completions, so this only trips if a row
		// slipped to terminal between lookup and lock on engines with weaker
		// lock semantics.
		fresh, err := q.GetTransactionByID(ctx, txn.ID)
		if err != nil {
			return err
		}
		if fresh.Status != domain.TxStatusPending {
			return domain.ErrTransactionNotFound
		}

		if capturedAmount != nil && !capturedAmount.IsZero() && capturedAmount.Paise != txn.AmountPaise {
			observability.IncrementAmountMismatch()
			zap.L().Warn("captured amount does not match ledger amount",
				zap.String("order_id", orderID),
				zap.Int64("captured_paise", capturedAmount.Paise),
				zap.Int64("ledger_paise", txn.AmountPaise),
			)
		}

		if err := q.MarkTransactionSuccess(ctx, txn.ID, &paymentID); err != nil {
			return err
		}
		if _, err := q.AddWalletBalance(ctx, txn.WalletID, txn.AmountPaise); err != nil {
			return err
		}

		children, err := q.ListPendingChildTransactionsForUpdate(ctx, txn.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := q.MarkTransactionSuccess(ctx, child.ID, nil); err != nil {
				return err
			}
			if _, err := q.AddWalletBalance(ctx, child.WalletID, child.AmountPaise); err != nil {
				return err
			}
		}

		txn.Status = domain.TxStatusSuccess
		txn.GatewayPaymentID = &paymentID
		result = txn
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			observability.IncrementCompletion(source, "noop")
			return nil, err
		}
		observability.IncrementCompletion(source, "error")
		return nil, fmt.Errorf("complete success for order %s: %w", orderID, err)
	}

	observability.IncrementCompletion(source, "success")
	zap.L().Info("transaction completed",
		zap.String("order_id", orderID),
		zap.String("payment_id", paymentID),
		zap.String("source", source),
	)
	return result, nil
}

// CompleteFailure marks the PENDING transaction for an order FAILED together
// with any linked PENDING bonus transaction. No balance is mutated. Like
// CompleteSuccess it is a safe no-op once the order is terminal.
func (s *ReconcilerService) CompleteFailure(ctx context.Context, orderID, reason, source string) (*models.WalletTransaction, error) {
	var result *models.WalletTransaction

	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		txn, err := q.GetPendingTransactionByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrTransactionNotFound
			}
			return err
		}

		if _, err := q.GetWalletByIDForUpdate(ctx, txn.WalletID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrWalletNotFound
			}
			return err
		}

		if err := q.MarkTransactionFailed(ctx, txn.ID, appendReason(txn.Description, reason)); err != nil {
			return err
		}

		children, err := q.ListPendingChildTransactionsForUpdate(ctx, txn.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := q.MarkTransactionFailed(ctx, child.ID, child.Description); err != nil {
				return err
			}
		}

		txn.Status = domain.TxStatusFailed
		txn.Description = appendReason(txn.Description, reason)
		result = txn
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			observability.IncrementCompletion(source, "noop")
			return nil, err
		}
		observability.IncrementCompletion(source, "error")
		return nil, fmt.Errorf("complete failure for order %s: %w", orderID, err)
	}

	observability.IncrementCompletion(source, "failed")
	zap.L().Info("transaction marked failed",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
		zap.String("source", source),
	)
	return result, nil
}

func appendReason(description, reason string) string {
	if reason == "" {
		return description
	}
	return strings.TrimSpace(description + " | " + reason)
}
