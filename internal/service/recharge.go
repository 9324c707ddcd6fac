package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/gateway"
	"github.com/milkpay/wallet-service/internal/models"
	"github.com/milkpay/wallet-service/internal/repository"
	"go.uber.org/zap"
)

// RechargeConfig carries the admission-gate and gateway presentation settings
// injected at construction time.
type RechargeConfig struct {
	// PendingLimit is the maximum number of PENDING transactions a wallet may
	// accumulate within PendingWindow before new recharges are refused.
	PendingLimit  int
	PendingWindow time.Duration
	GatewayKeyID  string
}

// RechargeService opens gateway orders and writes the PENDING transaction
// pair (main recharge + optional bonus).
type RechargeService struct {
	store      QueryStore
	gateway    gateway.Client
	verifier   *gateway.SignatureVerifier
	bonus      domain.BonusPolicy
	reconciler *ReconcilerService
	cfg        RechargeConfig
}

func NewRechargeService(store QueryStore, gw gateway.Client, verifier *gateway.SignatureVerifier, bonus domain.BonusPolicy, reconciler *ReconcilerService, cfg RechargeConfig) *RechargeService {
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = 3
	}
	if cfg.PendingWindow <= 0 {
		cfg.PendingWindow = 30 * time.Minute
	}
	return &RechargeService{
		store:      store,
		gateway:    gw,
		verifier:   verifier,
		bonus:      bonus,
		reconciler: reconciler,
		cfg:        cfg,
	}
}

// OrderDetails is handed back to the client for driving the gateway SDK.
type OrderDetails struct {
	OrderID  string `json:"order_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// CreateOrder opens a gateway order and persists the PENDING CREDIT pair.
// The whole operation runs under the wallet's exclusive row lock so the
// pending-count gate and the inserts observe one consistent wallet state.
// Both PENDING rows are visible to listings immediately, before the gateway
// confirms payment.
func (s *RechargeService) CreateOrder(ctx context.Context, userID uuid.UUID, amount domain.Money) (*OrderDetails, error) {
	if amount.Paise < 1 {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}

	var details *OrderDetails
	err := s.store.RunInTx(ctx, func(q *repository.Queries) error {
		wallet, err := q.GetWalletByUserIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrWalletNotFound
			}
			return err
		}

		recentPending, err := q.CountRecentPendingTransactions(ctx, wallet.ID, time.Now().Add(-s.cfg.PendingWindow))
		if err != nil {
			return err
		}
		if recentPending >= int64(s.cfg.PendingLimit) {
			// Refused before any gateway call or row write: this gate
			// protects the gateway from retry storms.
			return domain.ErrTooManyPendingTransactions
		}

		receipt := fmt.Sprintf("wallet_%s_%s", wallet.ID, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		order, err := s.gateway.CreateOrder(ctx, amount.Paise, domain.CurrencyINR, receipt)
		if err != nil {
			return err
		}

		zap.L().Info("gateway order created",
			zap.String("order_id", order.OrderID),
			zap.String("receipt", receipt),
			zap.String("wallet_id", wallet.ID.String()),
		)

		main := &models.WalletTransaction{
			ID:             uuid.New(),
			WalletID:       wallet.ID,
			AmountPaise:    amount.Paise,
			Type:           domain.TxTypeCredit,
			Status:         domain.TxStatusPending,
			GatewayOrderID: &order.OrderID,
			Description:    domain.DescriptionRecharge,
		}
		if err := q.CreateTransaction(ctx, main); err != nil {
			return err
		}

		bonusAmount, bonusDescription := s.bonus.Calculate(amount)
		if bonusAmount.IsPositive() {
			// The bonus carries no gateway order id of its own; it is only
			// ever completed as a side effect of its parent's completion.
			bonus := &models.WalletTransaction{
				ID:                  uuid.New(),
				WalletID:            wallet.ID,
				AmountPaise:         bonusAmount.Paise,
				Type:                domain.TxTypeCredit,
				Status:              domain.TxStatusPending,
				ParentTransactionID: &main.ID,
				Description:         bonusDescription,
			}
			if err := q.CreateTransaction(ctx, bonus); err != nil {
				return err
			}
		}

		details = &OrderDetails{
			OrderID:  order.OrderID,
			Amount:   amount.Decimal().StringFixed(2),
			Currency: order.Currency,
			KeyID:    s.cfg.GatewayKeyID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// VerifyPayment is the authenticated client completion path. An invalid
// signature fails the transaction with an auditable reason before surfacing
// the error, so a spoofed confirmation never leaves a silently stuck PENDING
// row. A completion that lost the race to the webhook is reported as already
// processed, not as a failure.
func (s *RechargeService) VerifyPayment(ctx context.Context, orderID, paymentID, signature string, claimedAmount *domain.Money) (*models.WalletTransaction, bool, error) {
	if !s.verifier.VerifyPayment(orderID, paymentID, signature) {
		zap.L().Warn("invalid payment signature", zap.String("order_id", orderID))
		if _, err := s.reconciler.CompleteFailure(ctx, orderID, "Signature verification failed", "client"); err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
			zap.L().Error("failed to record signature failure", zap.Error(err), zap.String("order_id", orderID))
		}
		return nil, false, domain.ErrInvalidSignature
	}

	txn, err := s.reconciler.CompleteSuccess(ctx, orderID, paymentID, claimedAmount, "client")
	if err == nil {
		return txn, false, nil
	}
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, false, err
	}

	// The webhook may have won the race. If the order reached a terminal
	// state, report it as already processed.
	existing, lookupErr := s.store.Queries().GetTransactionByOrderID(ctx, orderID)
	if lookupErr != nil {
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return nil, false, domain.ErrTransactionNotFound
		}
		return nil, false, lookupErr
	}
	if domain.IsTerminalStatus(existing.Status) {
		return existing, true, nil
	}
	return nil, false, domain.ErrTransactionNotFound
}
