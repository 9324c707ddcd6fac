package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/models"
	"github.com/milkpay/wallet-service/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// WelcomeBonus configures the optional credit written when a wallet is
// provisioned.
type WelcomeBonus struct {
	Enabled     bool
	AmountPaise int64
	Description string
}

// WalletService covers wallet provisioning, reads, and the manual
// credit/debit path that writes immediately-SUCCESS transactions.
type WalletService struct {
	store        QueryStore
	welcomeBonus WelcomeBonus
}

func NewWalletService(store QueryStore, welcomeBonus WelcomeBonus) *WalletService {
	return &WalletService{store: store, welcomeBonus: welcomeBonus}
}

// CreateWallet provisions a wallet for a user, applying the welcome bonus
// when enabled. The bonus is recorded as a SUCCESS CREDIT transaction in the
// same atomic unit as the wallet row.
func (s *WalletService) CreateWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet := &models.Wallet{ID: uuid.New(), UserID: userID}

	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		if err := q.CreateWallet(ctx, wallet); err != nil {
			return err
		}

		if s.welcomeBonus.Enabled && s.welcomeBonus.AmountPaise > 0 {
			description := s.welcomeBonus.Description
			if description == "" {
				description = "Welcome bonus"
			}
			txn := &models.WalletTransaction{
				ID:          uuid.New(),
				WalletID:    wallet.ID,
				AmountPaise: s.welcomeBonus.AmountPaise,
				Type:        domain.TxTypeCredit,
				Status:      domain.TxStatusSuccess,
				Description: description,
			}
			if err := q.CreateTransaction(ctx, txn); err != nil {
				return err
			}
			balance, err := q.AddWalletBalance(ctx, wallet.ID, s.welcomeBonus.AmountPaise)
			if err != nil {
				return err
			}
			wallet.BalancePaise = balance
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create wallet for user %s: %w", userID, err)
	}

	zap.L().Info("wallet created",
		zap.String("wallet_id", wallet.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("balance_paise", wallet.BalancePaise),
	)
	return wallet, nil
}

// GetWallet returns the caller's wallet, excluding soft-deleted rows.
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.store.Queries().GetWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	return wallet, nil
}

// ListTransactions returns a page of the wallet's transactions, newest first.
func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.WalletTransaction, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.Queries().ListTransactions(ctx, wallet.ID, pageSize, (page-1)*pageSize)
}

// AuditTransactions returns a wallet and its full transaction history
// including soft-deleted rows. Admin-only read that keeps working after the
// wallet itself has been soft-deleted.
func (s *WalletService) AuditTransactions(ctx context.Context, userID uuid.UUID, page, pageSize int) (*models.Wallet, []models.WalletTransaction, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	wallet, err := s.store.Queries().GetWalletByUserIDIncludingDeleted(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrWalletNotFound
		}
		return nil, nil, err
	}
	txns, err := s.store.Queries().ListTransactionsIncludingDeleted(ctx, wallet.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, err
	}
	return wallet, txns, nil
}

// CreateManualTransaction writes an administrative credit or debit that takes
// effect immediately: the transaction is persisted SUCCESS and the balance
// mutates under the wallet lock. Debits exceeding the balance are refused
// with the balance unchanged.
func (s *WalletService) CreateManualTransaction(ctx context.Context, userID uuid.UUID, amount domain.Money, txType, description string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	if txType != domain.TxTypeCredit && txType != domain.TxTypeDebit {
		return nil, fmt.Errorf("invalid transaction type: %s", txType)
	}

	var txn *models.WalletTransaction
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		wallet, err := q.GetWalletByUserIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrWalletNotFound
			}
			return err
		}

		switch txType {
		case domain.TxTypeDebit:
			if wallet.BalancePaise < amount.Paise {
				return domain.ErrInsufficientBalance
			}
			if _, err := q.SubtractWalletBalance(ctx, wallet.ID, amount.Paise); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return domain.ErrInsufficientBalance
				}
				return err
			}
		case domain.TxTypeCredit:
			if _, err := q.AddWalletBalance(ctx, wallet.ID, amount.Paise); err != nil {
				return err
			}
		}

		txn = &models.WalletTransaction{
			ID:          uuid.New(),
			WalletID:    wallet.ID,
			AmountPaise: amount.Paise,
			Type:        txType,
			Status:      domain.TxStatusSuccess,
			Description: description,
		}
		return q.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// SetBalance overwrites the wallet balance, admin-only. Negative balances are
// refused.
func (s *WalletService) SetBalance(ctx context.Context, userID uuid.UUID, amount domain.Money) (*models.Wallet, error) {
	if amount.IsNegative() {
		return nil, domain.ErrNegativeBalance
	}

	var wallet *models.Wallet
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		w, err := q.GetWalletByUserIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrWalletNotFound
			}
			return err
		}
		if err := q.SetWalletBalance(ctx, w.ID, amount.Paise); err != nil {
			return err
		}
		w.BalancePaise = amount.Paise
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("wallet balance set",
		zap.String("wallet_id", wallet.ID.String()),
		zap.Int64("balance_paise", amount.Paise),
	)
	return wallet, nil
}

// SoftDeleteWallet flags a wallet deleted; it disappears from normal reads
// but the row and its transactions are retained for audit.
func (s *WalletService) SoftDeleteWallet(ctx context.Context, userID uuid.UUID) error {
	return s.store.RunInTx(ctx, func(q *repository.Queries) error {
		wallet, err := q.GetWalletByUserIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrWalletNotFound
			}
			return err
		}
		return q.SoftDeleteWallet(ctx, wallet.ID)
	})
}
