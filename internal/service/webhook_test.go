package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookBody(t *testing.T, event, paymentID, orderID, status string, amountPaise *int64) []byte {
	t.Helper()

	entity := map[string]interface{}{
		"id":       paymentID,
		"order_id": orderID,
		"status":   status,
	}
	if amountPaise != nil {
		entity["amount"] = *amountPaise
	}
	body, err := json.Marshal(map[string]interface{}{
		"event": event,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{"entity": entity},
		},
	})
	require.NoError(t, err)
	return body
}

func TestWebhookCapturedCreditsWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(1000)))
	require.NoError(t, err)

	amount := int64(100_000)
	body := webhookBody(t, "payment.captured", "pay_wh", details.OrderID, "captured", &amount)
	require.NoError(t, env.webhooks.HandleWebhook(ctx, body, webhookSignature(body)))

	assert.Equal(t, int64(110_000), env.walletBalance(t, wallet.ID))

	// A redelivery acknowledges without crediting again.
	require.NoError(t, env.webhooks.HandleWebhook(ctx, body, webhookSignature(body)))
	assert.Equal(t, int64(110_000), env.walletBalance(t, wallet.ID))
}

func TestWebhookFailedEventMarksTransactionFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(500)))
	require.NoError(t, err)

	body := webhookBody(t, "payment.failed", "pay_fail", details.OrderID, "failed", nil)
	require.NoError(t, env.webhooks.HandleWebhook(ctx, body, webhookSignature(body)))

	txn, err := env.queries.GetTransactionByOrderID(ctx, details.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, txn.Status)
	assert.Equal(t, int64(0), env.walletBalance(t, wallet.ID))
}

func TestWebhookInvalidSignatureRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(100)))
	require.NoError(t, err)

	body := webhookBody(t, "payment.captured", "pay_bad", details.OrderID, "captured", nil)
	err = env.webhooks.HandleWebhook(ctx, body, "deadbeef")
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	err = env.webhooks.HandleWebhook(ctx, body, "")
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	// The transaction stays PENDING; only a verified delivery settles it.
	txn, err := env.queries.GetTransactionByOrderID(ctx, details.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPending, txn.Status)
}

func TestWebhookMalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	body := []byte("{not json")
	err := env.webhooks.HandleWebhook(context.Background(), body, webhookSignature(body))
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestWebhookMissingIdentifiersAcknowledged(t *testing.T) {
	env := newTestEnv(t)

	body := webhookBody(t, "payment.captured", "", "", "captured", nil)
	require.NoError(t, env.webhooks.HandleWebhook(context.Background(), body, webhookSignature(body)))
}

func TestWebhookUnknownEventAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(100)))
	require.NoError(t, err)

	body := webhookBody(t, "payment.authorized", "pay_auth", details.OrderID, "authorized", nil)
	require.NoError(t, env.webhooks.HandleWebhook(ctx, body, webhookSignature(body)))

	txn, err := env.queries.GetTransactionByOrderID(ctx, details.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPending, txn.Status)
}

func TestWebhookRacesClientVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	details, err := env.recharges.CreateOrder(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(800)))
	require.NoError(t, err)

	sig := paymentSignature(details.OrderID, "pay_race")
	_, _, err = env.recharges.VerifyPayment(ctx, details.OrderID, "pay_race", sig, nil)
	require.NoError(t, err)
	balance := env.walletBalance(t, wallet.ID)

	body := webhookBody(t, "payment.captured", "pay_race", details.OrderID, "captured", nil)
	require.NoError(t, env.webhooks.HandleWebhook(ctx, body, webhookSignature(body)))
	assert.Equal(t, balance, env.walletBalance(t, wallet.ID))
}
