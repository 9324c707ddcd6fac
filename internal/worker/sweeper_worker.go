package worker

import (
	"context"
	"sync"
	"time"

	"github.com/milkpay/wallet-service/internal/observability"
	"github.com/milkpay/wallet-service/internal/service"
	"go.uber.org/zap"
)

// SweeperWorker periodically expires stale PENDING transactions.
// Safe for concurrent instances thanks to FOR UPDATE SKIP LOCKED.
type SweeperWorker struct {
	svc      *service.SweeperService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSweeperWorker constructs a worker with a default ten-minute interval.
func NewSweeperWorker(svc *service.SweeperService) *SweeperWorker {
	return &SweeperWorker{
		svc:      svc,
		interval: 10 * time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *SweeperWorker) WithInterval(interval time.Duration) *SweeperWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *SweeperWorker) Start(ctx context.Context) {
	zap.L().Info("sweeper worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("sweeper worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("sweeper worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *SweeperWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SweeperWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *SweeperWorker) runOnce(ctx context.Context) {
	if err := w.svc.Run(ctx); err != nil {
		observability.IncrementWorkerRun("sweeper", "failed")
		zap.L().Error("sweep run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("sweeper", "success")
}
