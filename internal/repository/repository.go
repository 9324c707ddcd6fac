package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/milkpay/wallet-service/internal/models"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every query can run
// standalone or inside a transaction scope.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries provides access to the wallet ledger tables.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a query set bound to an open transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const walletColumns = `id, user_id, balance_paise, is_active, is_deleted, created_at, updated_at`

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	w := &models.Wallet{}
	err := row.Scan(&w.ID, &w.UserID, &w.BalancePaise, &w.IsActive, &w.IsDeleted, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (q *Queries) CreateWallet(ctx context.Context, w *models.Wallet) error {
	query := `
		INSERT INTO wallets (id, user_id, balance_paise, is_active, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, FALSE, NOW(), NOW())
		RETURNING is_active, is_deleted, created_at, updated_at
	`
	err := q.db.QueryRow(ctx, query, w.ID, w.UserID, w.BalancePaise).
		Scan(&w.IsActive, &w.IsDeleted, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}

// GetWalletByUserID returns the user's wallet, excluding soft-deleted rows.
func (q *Queries) GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND is_deleted = FALSE`
	w, err := scanWallet(q.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by user: %w", err)
	}
	return w, nil
}

// GetWalletByUserIDIncludingDeleted bypasses the soft-delete filter for
// audit and admin reads.
func (q *Queries) GetWalletByUserIDIncludingDeleted(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	w, err := scanWallet(q.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("get wallet including deleted: %w", err)
	}
	return w, nil
}

// GetWalletByUserIDForUpdate acquires the wallet's row lock for the duration
// of the enclosing transaction. Callers must run inside RunInTx.
func (q *Queries) GetWalletByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND is_deleted = FALSE FOR UPDATE`
	w, err := scanWallet(q.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("lock wallet by user: %w", err)
	}
	return w, nil
}

// GetWalletByIDForUpdate acquires the wallet's row lock by wallet id.
func (q *Queries) GetWalletByIDForUpdate(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`
	w, err := scanWallet(q.db.QueryRow(ctx, query, walletID))
	if err != nil {
		return nil, fmt.Errorf("lock wallet by id: %w", err)
	}
	return w, nil
}

// AddWalletBalance applies a relative credit delta and returns the new balance.
// It must only be called while the caller holds the wallet's row lock.
func (q *Queries) AddWalletBalance(ctx context.Context, walletID uuid.UUID, deltaPaise int64) (int64, error) {
	query := `
		UPDATE wallets SET balance_paise = balance_paise + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance_paise
	`
	var balance int64
	if err := q.db.QueryRow(ctx, query, walletID, deltaPaise).Scan(&balance); err != nil {
		return 0, fmt.Errorf("add wallet balance: %w", err)
	}
	return balance, nil
}

// SubtractWalletBalance applies a relative debit delta. The WHERE clause
// keeps the balance non-negative even if a caller skipped the balance check;
// pgx.ErrNoRows then signals an insufficient balance.
func (q *Queries) SubtractWalletBalance(ctx context.Context, walletID uuid.UUID, deltaPaise int64) (int64, error) {
	query := `
		UPDATE wallets SET balance_paise = balance_paise - $2, updated_at = NOW()
		WHERE id = $1 AND balance_paise >= $2
		RETURNING balance_paise
	`
	var balance int64
	if err := q.db.QueryRow(ctx, query, walletID, deltaPaise).Scan(&balance); err != nil {
		return 0, fmt.Errorf("subtract wallet balance: %w", err)
	}
	return balance, nil
}

// SetWalletBalance overwrites the balance. Negative amounts are rejected at
// the service layer before this runs.
func (q *Queries) SetWalletBalance(ctx context.Context, walletID uuid.UUID, balancePaise int64) error {
	query := `UPDATE wallets SET balance_paise = $2, updated_at = NOW() WHERE id = $1`
	tag, err := q.db.Exec(ctx, query, walletID, balancePaise)
	if err != nil {
		return fmt.Errorf("set wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set wallet balance: %w", pgx.ErrNoRows)
	}
	return nil
}

// SoftDeleteWallet flags the wallet deleted and inactive. The row is retained
// for audit.
func (q *Queries) SoftDeleteWallet(ctx context.Context, walletID uuid.UUID) error {
	query := `UPDATE wallets SET is_deleted = TRUE, is_active = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := q.db.Exec(ctx, query, walletID); err != nil {
		return fmt.Errorf("soft delete wallet: %w", err)
	}
	return nil
}

const transactionColumns = `id, wallet_id, amount_paise, transaction_type, status,
	gateway_order_id, gateway_payment_id, parent_transaction_id, description,
	is_deleted, created_at, updated_at`

func scanTransaction(row pgx.Row) (*models.WalletTransaction, error) {
	t := &models.WalletTransaction{}
	err := row.Scan(&t.ID, &t.WalletID, &t.AmountPaise, &t.Type, &t.Status,
		&t.GatewayOrderID, &t.GatewayPaymentID, &t.ParentTransactionID, &t.Description,
		&t.IsDeleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanTransactions(rows pgx.Rows) ([]models.WalletTransaction, error) {
	defer rows.Close()
	var txns []models.WalletTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

func (q *Queries) CreateTransaction(ctx context.Context, t *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions
			(id, wallet_id, amount_paise, transaction_type, status,
			 gateway_order_id, gateway_payment_id, parent_transaction_id, description,
			 is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := q.db.QueryRow(ctx, query,
		t.ID, t.WalletID, t.AmountPaise, t.Type, t.Status,
		t.GatewayOrderID, t.GatewayPaymentID, t.ParentTransactionID, t.Description,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// CountRecentPendingTransactions counts PENDING transactions for a wallet
// created at or after the given instant. Used by the recharge admission gate
// under the wallet lock.
func (q *Queries) CountRecentPendingTransactions(ctx context.Context, walletID uuid.UUID, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM wallet_transactions
		WHERE wallet_id = $1 AND status = 'PENDING' AND is_deleted = FALSE AND created_at >= $2
	`
	var count int64
	if err := q.db.QueryRow(ctx, query, walletID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent pending transactions: %w", err)
	}
	return count, nil
}

// GetPendingTransactionByOrderIDForUpdate locks and returns the PENDING
// transaction for a gateway order. pgx.ErrNoRows means the order is unknown
// or already terminal, which callers translate into an idempotent no-op.
func (q *Queries) GetPendingTransactionByOrderIDForUpdate(ctx context.Context, orderID string) (*models.WalletTransaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE gateway_order_id = $1 AND status = 'PENDING' AND is_deleted = FALSE
		FOR UPDATE
	`
	t, err := scanTransaction(q.db.QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, fmt.Errorf("lock pending transaction by order: %w", err)
	}
	return t, nil
}

// GetTransactionByOrderID returns the transaction for a gateway order in any
// status.
func (q *Queries) GetTransactionByOrderID(ctx context.Context, orderID string) (*models.WalletTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE gateway_order_id = $1 AND is_deleted = FALSE`
	t, err := scanTransaction(q.db.QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, fmt.Errorf("get transaction by order: %w", err)
	}
	return t, nil
}

func (q *Queries) GetTransactionByID(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1 AND is_deleted = FALSE`
	t, err := scanTransaction(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// MarkTransactionSuccess moves a transaction to its SUCCESS terminal state
// and records the gateway payment id.
func (q *Queries) MarkTransactionSuccess(ctx context.Context, id uuid.UUID, gatewayPaymentID *string) error {
	query := `
		UPDATE wallet_transactions
		SET status = 'SUCCESS', gateway_payment_id = COALESCE($2, gateway_payment_id), updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`
	tag, err := q.db.Exec(ctx, query, id, gatewayPaymentID)
	if err != nil {
		return fmt.Errorf("mark transaction success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark transaction success: %w", pgx.ErrNoRows)
	}
	return nil
}

// MarkTransactionFailed moves a transaction to its FAILED terminal state and
// replaces the description with a reason-annotated one.
func (q *Queries) MarkTransactionFailed(ctx context.Context, id uuid.UUID, description string) error {
	query := `
		UPDATE wallet_transactions
		SET status = 'FAILED', description = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`
	tag, err := q.db.Exec(ctx, query, id, description)
	if err != nil {
		return fmt.Errorf("mark transaction failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark transaction failed: %w", pgx.ErrNoRows)
	}
	return nil
}

// ListPendingChildTransactionsForUpdate locks and returns PENDING bonus
// transactions linked to a parent recharge transaction.
func (q *Queries) ListPendingChildTransactionsForUpdate(ctx context.Context, parentID uuid.UUID) ([]models.WalletTransaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE parent_transaction_id = $1 AND status = 'PENDING' AND is_deleted = FALSE
		FOR UPDATE
	`
	rows, err := q.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("lock pending child transactions: %w", err)
	}
	return scanTransactions(rows)
}

// ListTransactions returns a wallet's transactions newest first, excluding
// soft-deleted rows.
func (q *Queries) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scanTransactions(rows)
}

// ListTransactionsIncludingDeleted is the audit variant of ListTransactions.
func (q *Queries) ListTransactionsIncludingDeleted(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions including deleted: %w", err)
	}
	return scanTransactions(rows)
}

// ListStalePendingOrderIDs returns gateway order ids of PENDING transactions
// created before the cutoff. SKIP LOCKED keeps concurrent sweeper instances
// from contending on the same rows.
func (q *Queries) ListStalePendingOrderIDs(ctx context.Context, cutoff time.Time, limit int32) ([]string, error) {
	query := `
		SELECT gateway_order_id FROM wallet_transactions
		WHERE status = 'PENDING' AND gateway_order_id IS NOT NULL
			AND is_deleted = FALSE AND created_at < $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := q.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending orders: %w", err)
	}
	defer rows.Close()

	var orderIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale pending order: %w", err)
		}
		orderIDs = append(orderIDs, id)
	}
	return orderIDs, rows.Err()
}

// WalletImbalance reports a wallet whose balance diverged from the sum of its
// SUCCESS credits minus SUCCESS debits.
type WalletImbalance struct {
	WalletID     uuid.UUID
	BalancePaise int64
	LedgerPaise  int64
}

// ListWalletImbalances returns wallets violating the ledger consistency
// invariant. An empty result means every balance is explained by its
// transaction history.
func (q *Queries) ListWalletImbalances(ctx context.Context) ([]WalletImbalance, error) {
	query := `
		SELECT w.id, w.balance_paise, COALESCE(SUM(
			CASE t.transaction_type WHEN 'CREDIT' THEN t.amount_paise ELSE -t.amount_paise END
		), 0) AS ledger_paise
		FROM wallets w
		LEFT JOIN wallet_transactions t
			ON t.wallet_id = w.id AND t.status = 'SUCCESS' AND t.is_deleted = FALSE
		GROUP BY w.id, w.balance_paise
		HAVING w.balance_paise <> COALESCE(SUM(
			CASE t.transaction_type WHEN 'CREDIT' THEN t.amount_paise ELSE -t.amount_paise END
		), 0)
	`
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list wallet imbalances: %w", err)
	}
	defer rows.Close()

	var imbalances []WalletImbalance
	for rows.Next() {
		var im WalletImbalance
		if err := rows.Scan(&im.WalletID, &im.BalancePaise, &im.LedgerPaise); err != nil {
			return nil, fmt.Errorf("scan wallet imbalance: %w", err)
		}
		imbalances = append(imbalances, im)
	}
	return imbalances, rows.Err()
}
