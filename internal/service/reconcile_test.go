package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSuccessCreditsWalletExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(1000)))
	require.NoError(t, err)
	require.Equal(t, int64(0), env.walletBalance(t, wallet.ID))

	txn, err := env.reconciler.CompleteSuccess(ctx, details.OrderID, "pay_123", nil, "client")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusSuccess, txn.Status)
	require.NotNil(t, txn.GatewayPaymentID)
	assert.Equal(t, "pay_123", *txn.GatewayPaymentID)

	// ₹1000 recharge plus the 10% bonus.
	assert.Equal(t, int64(110_000), env.walletBalance(t, wallet.ID))

	_, err = env.reconciler.CompleteSuccess(ctx, details.OrderID, "pay_123", nil, "webhook")
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.Equal(t, int64(110_000), env.walletBalance(t, wallet.ID))
}

func TestCompleteSuccessCompletesBonusChild(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(1000)))
	require.NoError(t, err)

	_, err = env.reconciler.CompleteSuccess(ctx, details.OrderID, "pay_bonus", nil, "client")
	require.NoError(t, err)

	txns, err := env.queries.ListTransactions(ctx, wallet.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		assert.Equal(t, domain.TxStatusSuccess, txn.Status)
	}
}

func TestCompleteSuccessAmountMismatchStillSettles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(400)))
	require.NoError(t, err)

	captured := domain.FromPaise(39_000) // gateway reports less than the ledger amount
	txn, err := env.reconciler.CompleteSuccess(ctx, details.OrderID, "pay_mismatch", &captured, "webhook")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusSuccess, txn.Status)

	// The ledger amount is credited, never the claimed one.
	assert.Equal(t, int64(40_000), env.walletBalance(t, wallet.ID))
}

func TestCompleteFailureLeavesBalanceUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(1500)))
	require.NoError(t, err)

	txn, err := env.reconciler.CompleteFailure(ctx, details.OrderID, "payment declined", "webhook")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, txn.Status)
	assert.True(t, strings.Contains(txn.Description, "payment declined"))
	assert.Equal(t, int64(0), env.walletBalance(t, wallet.ID))

	txns, err := env.queries.ListTransactions(ctx, wallet.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, row := range txns {
		assert.Equal(t, domain.TxStatusFailed, row.Status)
	}

	// A success arriving after the failure is a no-op.
	_, err = env.reconciler.CompleteSuccess(ctx, details.OrderID, "pay_late", nil, "client")
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.Equal(t, int64(0), env.walletBalance(t, wallet.ID))
}

func TestConcurrentCompletionsCreditOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(200)))
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.reconciler.CompleteSuccess(ctx, details.OrderID, "pay_race", nil, "client")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrTransactionNotFound)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(20_000), env.walletBalance(t, wallet.ID))
}

func TestCompleteSuccessUnknownOrder(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.reconciler.CompleteSuccess(context.Background(), "order_never_created", "pay_x", nil, "webhook")
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}
