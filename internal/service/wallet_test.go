package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWalletAppliesWelcomeBonus(t *testing.T) {
	db := setupTestDB(t)
	t.Cleanup(db.Close)
	ctx := context.Background()

	store := repository.NewStore(db)
	svc := NewWalletService(store, WelcomeBonus{
		Enabled:     true,
		AmountPaise: 5_000,
		Description: "Welcome bonus",
	})

	wallet, err := svc.CreateWallet(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), wallet.BalancePaise)

	txns, err := repository.New(db).ListTransactions(ctx, wallet.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TxStatusSuccess, txns[0].Status)
	assert.Equal(t, domain.TxTypeCredit, txns[0].Type)
	assert.Equal(t, int64(5_000), txns[0].AmountPaise)
	assert.Equal(t, "Welcome bonus", txns[0].Description)
}

func TestCreateWalletWithoutWelcomeBonus(t *testing.T) {
	env := newTestEnv(t)

	wallet := env.createWallet(t)
	assert.Equal(t, int64(0), wallet.BalancePaise)

	txns, err := env.queries.ListTransactions(context.Background(), wallet.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestManualTransactionCreditAndDebit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	credit, err := env.wallets.CreateManualTransaction(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(200)), domain.TxTypeCredit, "Goodwill credit")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusSuccess, credit.Status)
	assert.Equal(t, int64(20_000), env.walletBalance(t, wallet.ID))

	debit, err := env.wallets.CreateManualTransaction(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(50)), domain.TxTypeDebit, "Subscription charge")
	require.NoError(t, err)
	assert.Equal(t, domain.TxTypeDebit, debit.Type)
	assert.Equal(t, int64(15_000), env.walletBalance(t, wallet.ID))
}

func TestManualDebitInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	_, err := env.wallets.CreateManualTransaction(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(10)), domain.TxTypeDebit, "Overdraw attempt")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, int64(0), env.walletBalance(t, wallet.ID))

	txns, err := env.queries.ListTransactions(ctx, wallet.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestManualTransactionRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	_, err := env.wallets.CreateManualTransaction(ctx, wallet.UserID, domain.FromPaise(0), domain.TxTypeCredit, "")
	require.Error(t, err)

	_, err = env.wallets.CreateManualTransaction(ctx, wallet.UserID, domain.FromPaise(100), "TRANSFER", "")
	require.Error(t, err)
}

func TestSetBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	updated, err := env.wallets.SetBalance(ctx, wallet.UserID, domain.FromDecimal(decimal.NewFromInt(750)))
	require.NoError(t, err)
	assert.Equal(t, int64(75_000), updated.BalancePaise)
	assert.Equal(t, int64(75_000), env.walletBalance(t, wallet.ID))

	_, err = env.wallets.SetBalance(ctx, wallet.UserID, domain.FromPaise(-1))
	require.ErrorIs(t, err, domain.ErrNegativeBalance)
	assert.Equal(t, int64(75_000), env.walletBalance(t, wallet.ID))
}

func TestSoftDeleteWalletHidesFromReads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	require.NoError(t, env.wallets.SoftDeleteWallet(ctx, wallet.UserID))

	_, err := env.wallets.GetWallet(ctx, wallet.UserID)
	require.ErrorIs(t, err, domain.ErrWalletNotFound)

	// The row survives for audit reads.
	audited, err := env.queries.GetWalletByUserIDIncludingDeleted(ctx, wallet.UserID)
	require.NoError(t, err)
	assert.True(t, audited.IsDeleted)
	assert.False(t, audited.IsActive)
}

func TestAuditTransactionsSurvivesSoftDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	_, err := env.wallets.CreateManualTransaction(ctx, wallet.UserID, domain.FromPaise(20_000), domain.TxTypeCredit, "Seed credit")
	require.NoError(t, err)

	require.NoError(t, env.wallets.SoftDeleteWallet(ctx, wallet.UserID))

	_, err = env.wallets.ListTransactions(ctx, wallet.UserID, 1, 10)
	require.ErrorIs(t, err, domain.ErrWalletNotFound)

	audited, txns, err := env.wallets.AuditTransactions(ctx, wallet.UserID, 1, 10)
	require.NoError(t, err)
	assert.True(t, audited.IsDeleted)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(20_000), txns[0].AmountPaise)
	assert.Equal(t, domain.TxStatusSuccess, txns[0].Status)

	_, _, err = env.wallets.AuditTransactions(ctx, uuid.New(), 1, 10)
	require.ErrorIs(t, err, domain.ErrWalletNotFound)
}

func TestListTransactionsPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := env.createWallet(t)

	for i := 0; i < 5; i++ {
		_, err := env.wallets.CreateManualTransaction(ctx, wallet.UserID, domain.FromPaise(1_000), domain.TxTypeCredit, "Seed credit")
		require.NoError(t, err)
	}

	page1, err := env.wallets.ListTransactions(ctx, wallet.UserID, 1, 3)
	require.NoError(t, err)
	assert.Len(t, page1, 3)

	page2, err := env.wallets.ListTransactions(ctx, wallet.UserID, 2, 3)
	require.NoError(t, err)
	assert.Len(t, page2, 2)
}

func TestGetWalletUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.wallets.GetWallet(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrWalletNotFound)
}
