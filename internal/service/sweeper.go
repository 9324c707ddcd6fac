package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/observability"
	"github.com/milkpay/wallet-service/internal/repository"
	"go.uber.org/zap"
)

const expiredPendingReason = "expired without gateway confirmation"

// SweeperService expires PENDING gateway transactions that outlived the
// configured bound. A captured-but-unreported payment would still arrive via
// webhook and observe the terminal state as a no-op; the sweep closes the
// gap where stale PENDING rows pile up against the admission gate forever.
type SweeperService struct {
	store      QueryStore
	reconciler *ReconcilerService
	maxAge     time.Duration
	batchSize  int32
}

func NewSweeperService(store QueryStore, reconciler *ReconcilerService, maxAge time.Duration, batchSize int32) *SweeperService {
	if maxAge <= 0 {
		maxAge = 48 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SweeperService{
		store:      store,
		reconciler: reconciler,
		maxAge:     maxAge,
		batchSize:  batchSize,
	}
}

// Run expires one batch of stale PENDING orders. Each order completes under
// its own wallet lock, so a sweep never blocks live completions for long, and
// a completion racing the sweep wins or loses cleanly.
func (s *SweeperService) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-s.maxAge)

	var orderIDs []string
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		var listErr error
		orderIDs, listErr = q.ListStalePendingOrderIDs(ctx, cutoff, s.batchSize)
		return listErr
	})
	if err != nil {
		return fmt.Errorf("list stale pending orders: %w", err)
	}
	if len(orderIDs) == 0 {
		return nil
	}

	expired := 0
	for _, orderID := range orderIDs {
		if _, err := s.reconciler.CompleteFailure(ctx, orderID, expiredPendingReason, "sweeper"); err != nil {
			if errors.Is(err, domain.ErrTransactionNotFound) {
				continue // completed while we were sweeping
			}
			zap.L().Error("failed to expire stale transaction", zap.Error(err), zap.String("order_id", orderID))
			continue
		}
		expired++
	}

	if expired > 0 {
		observability.AddStalePendingExpired(expired)
		zap.L().Info("expired stale pending transactions",
			zap.Int("expired", expired),
			zap.Int("candidates", len(orderIDs)),
		)
	}
	return nil
}
