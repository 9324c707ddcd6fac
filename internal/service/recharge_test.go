package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderWritesPendingPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(1000)))
	require.NoError(t, err)
	assert.NotEmpty(t, details.OrderID)
	assert.Equal(t, "1000.00", details.Amount)
	assert.Equal(t, domain.CurrencyINR, details.Currency)
	assert.Equal(t, "key_test", details.KeyID)

	txns, err := env.queries.ListTransactions(ctx, wallet.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	var mainCount, bonusCount int
	for _, txn := range txns {
		assert.Equal(t, domain.TxStatusPending, txn.Status)
		assert.Equal(t, domain.TxTypeCredit, txn.Type)
		if txn.ParentTransactionID == nil {
			mainCount++
			require.NotNil(t, txn.GatewayOrderID)
			assert.Equal(t, details.OrderID, *txn.GatewayOrderID)
			assert.Equal(t, int64(100_000), txn.AmountPaise)
		} else {
			bonusCount++
			assert.Nil(t, txn.GatewayOrderID)
			assert.Equal(t, int64(10_000), txn.AmountPaise)
		}
	}
	assert.Equal(t, 1, mainCount)
	assert.Equal(t, 1, bonusCount)

	// Nothing is credited until the gateway confirms.
	assert.Equal(t, int64(0), env.walletBalance(t, wallet.ID))
}

func TestCreateOrderBonusTiers(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		bonusPaise int64
	}{
		{name: "above thousand gets ten percent", amount: "1500", bonusPaise: 15_000},
		{name: "midrange gets five percent", amount: "750", bonusPaise: 3_750},
		{name: "boundary rounds half up", amount: "999.99", bonusPaise: 5_000},
		{name: "below threshold gets none", amount: "499.99", bonusPaise: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			wallet := env.createWallet(t)

			d, err := decimal.NewFromString(tt.amount)
			require.NoError(t, err)
			_, err = env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(d))
			require.NoError(t, err)

			txns, err := env.queries.ListTransactions(ctx, wallet.ID, 10, 0)
			require.NoError(t, err)

			if tt.bonusPaise == 0 {
				require.Len(t, txns, 1)
				return
			}
			require.Len(t, txns, 2)
			for _, txn := range txns {
				if txn.ParentTransactionID != nil {
					assert.Equal(t, tt.bonusPaise, txn.AmountPaise)
				}
			}
		})
	}
}

func TestCreateOrderPendingLimitBlocksGatewayCall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	amount := domain.FromDecimal(decimal.NewFromInt(100))
	for i := 0; i < 3; i++ {
		_, err := env.recharges.CreateOrder(ctx, wallet.UserID, amount)
		require.NoError(t, err)
	}
	require.Equal(t, int64(3), env.gateway.Calls())

	_, err := env.recharges.CreateOrder(ctx, wallet.UserID, amount)
	require.ErrorIs(t, err, domain.ErrTooManyPendingTransactions)

	// The refusal happens before the gateway is contacted.
	assert.Equal(t, int64(3), env.gateway.Calls())

	txns, err := env.queries.ListTransactions(ctx, wallet.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 3)
}

func TestCreateOrderSettledTransactionsDoNotCountAgainstLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	amount := domain.FromDecimal(decimal.NewFromInt(100))
	for i := 0; i < 3; i++ {
		details, err := env.recharges.CreateOrder(ctx, wallet.UserID, amount)
		require.NoError(t, err)
		_, err = env.reconciler.CompleteSuccess(ctx, details.OrderID, "pay_settle", nil, "client")
		require.NoError(t, err)
	}

	_, err := env.recharges.CreateOrder(ctx, wallet.UserID, amount)
	require.NoError(t, err)
}

func TestCreateOrderGatewayRejectionWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	env.gateway.RejectWith = "amount exceeds maximum"
	_, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(100)))
	require.Error(t, err)

	var rejection *gateway.RejectionError
	require.ErrorAs(t, err, &rejection)

	txns, err := env.queries.ListTransactions(ctx, wallet.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestCreateOrderUnknownWallet(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.recharges.CreateOrder(context.Background(), uuid.New(), domain.FromDecimal(decimal.NewFromInt(100)))
	require.ErrorIs(t, err, domain.ErrWalletNotFound)
	assert.Equal(t, int64(0), env.gateway.Calls())
}

func TestVerifyPaymentSettlesRecharge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(600)))
	require.NoError(t, err)

	sig := paymentSignature(details.OrderID, "pay_verify")
	txn, already, err := env.recharges.VerifyPayment(ctx, details.OrderID, "pay_verify", sig, nil)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, domain.TxStatusSuccess, txn.Status)

	// ₹600 plus the 5% tier bonus.
	assert.Equal(t, int64(63_000), env.walletBalance(t, wallet.ID))
}

func TestVerifyPaymentAfterWebhookReportsAlreadyProcessed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(300)))
	require.NoError(t, err)

	_, err = env.reconciler.CompleteSuccess(ctx, details.OrderID, "pay_webhook_won", nil, "webhook")
	require.NoError(t, err)
	balance := env.walletBalance(t, wallet.ID)

	sig := paymentSignature(details.OrderID, "pay_webhook_won")
	txn, already, err := env.recharges.VerifyPayment(ctx, details.OrderID, "pay_webhook_won", sig, nil)
	require.NoError(t, err)
	assert.True(t, already)
	assert.Equal(t, domain.TxStatusSuccess, txn.Status)
	assert.Equal(t, balance, env.walletBalance(t, wallet.ID))
}

func TestVerifyPaymentInvalidSignatureFailsTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(250)))
	require.NoError(t, err)

	_, _, err = env.recharges.VerifyPayment(ctx, details.OrderID, "pay_spoof", "not-a-valid-signature", nil)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	txn, err := env.queries.GetTransactionByOrderID(ctx, details.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, txn.Status)
	assert.Contains(t, txn.Description, "Signature verification failed")
	assert.Equal(t, int64(0), env.walletBalance(t, wallet.ID))

	// A valid confirmation arriving later cannot resurrect the order.
	sig := paymentSignature(details.OrderID, "pay_late")
	_, _, err = env.recharges.VerifyPayment(ctx, details.OrderID, "pay_late", sig, nil)
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
	assert.Equal(t, int64(0), env.walletBalance(t, wallet.ID))
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	env := newTestEnv(t)

	sig := paymentSignature("order_ghost", "pay_ghost")
	_, _, err := env.recharges.VerifyPayment(context.Background(), "order_ghost", "pay_ghost", sig, nil)
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}
