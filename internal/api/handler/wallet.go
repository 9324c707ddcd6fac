package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/milkpay/wallet-service/internal/api/problem"
	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/models"
	"github.com/milkpay/wallet-service/internal/service"
	"github.com/shopspring/decimal"
)

// WalletHandler serves wallet reads, provisioning, and the administrative
// paths that bypass the payment gateway.
type WalletHandler struct {
	wallets *service.WalletService
}

func NewWalletHandler(wallets *service.WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

type walletResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	IsActive  bool      `json:"is_active"`
	CreatedAt string    `json:"created_at"`
}

func toWalletResponse(w *models.Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   domain.FromPaise(w.BalancePaise).Decimal().StringFixed(2),
		Currency:  domain.CurrencyINR,
		IsActive:  w.IsActive,
		CreatedAt: w.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type transactionResponse struct {
	ID               uuid.UUID  `json:"id"`
	Amount           string     `json:"amount"`
	Type             string     `json:"transaction_type"`
	Status           string     `json:"status"`
	GatewayOrderID   *string    `json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string    `json:"gateway_payment_id,omitempty"`
	ParentID         *uuid.UUID `json:"parent_transaction_id,omitempty"`
	Description      string     `json:"description"`
	CreatedAt        string     `json:"created_at"`
}

func toTransactionResponse(t *models.WalletTransaction) transactionResponse {
	return transactionResponse{
		ID:               t.ID,
		Amount:           domain.FromPaise(t.AmountPaise).Decimal().StringFixed(2),
		Type:             t.Type,
		Status:           t.Status,
		GatewayOrderID:   t.GatewayOrderID,
		GatewayPaymentID: t.GatewayPaymentID,
		ParentID:         t.ParentTransactionID,
		Description:      t.Description,
		CreatedAt:        t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// GetWallet godoc
//
//	@Summary		Get wallet
//	@Description	Returns the authenticated user's wallet and balance
//	@Tags			wallet
//	@Produce		json
//	@Success		200	{object}	walletResponse
//	@Failure		404	{object}	problem.Details
//	@Security		BearerAuth
//	@Router			/v1/wallet [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestActor(w, r)
	if !ok {
		return
	}
	wallet, err := h.wallets.GetWallet(r.Context(), userID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, toWalletResponse(wallet))
}

// ListTransactions godoc
//
//	@Summary		List wallet transactions
//	@Description	Returns the wallet transaction history, newest first
//	@Tags			wallet
//	@Produce		json
//	@Param			page		query		int	false	"Page number"
//	@Param			page_size	query		int	false	"Page size"
//	@Success		200			{array}		transactionResponse
//	@Failure		404			{object}	problem.Details
//	@Security		BearerAuth
//	@Router			/v1/wallet/transactions [get]
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestActor(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	txns, err := h.wallets.ListTransactions(r.Context(), userID, page, pageSize)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResponse(&txns[i]))
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": out,
		"page":         page,
	})
}

type auditWalletResponse struct {
	walletResponse
	IsDeleted bool `json:"is_deleted"`
}

// AuditTransactions godoc
//
//	@Summary		Audit wallet transactions
//	@Description	Returns a wallet and its full history including soft-deleted rows. Admin only.
//	@Tags			wallet
//	@Produce		json
//	@Param			user_id		path		string	true	"Wallet owner"
//	@Param			page		query		int		false	"Page number"
//	@Param			page_size	query		int		false	"Page size"
//	@Success		200			{object}	map[string]interface{}
//	@Failure		404			{object}	problem.Details
//	@Security		BearerAuth
//	@Router			/v1/wallets/{user_id}/transactions [get]
func (h *WalletHandler) AuditTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	wallet, txns, err := h.wallets.AuditTransactions(r.Context(), userID, page, pageSize)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResponse(&txns[i]))
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"wallet": auditWalletResponse{
			walletResponse: toWalletResponse(wallet),
			IsDeleted:      wallet.IsDeleted,
		},
		"transactions": out,
		"page":         page,
	})
}

// DeleteWallet godoc
//
//	@Summary		Soft-delete a wallet
//	@Description	Flags a wallet deleted; the row and its transactions survive for audit. Admin only.
//	@Tags			wallet
//	@Param			user_id	path	string	true	"Wallet owner"
//	@Success		204
//	@Failure		404	{object}	problem.Details
//	@Security		BearerAuth
//	@Router			/v1/wallets/{user_id} [delete]
func (h *WalletHandler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if err := h.wallets.SoftDeleteWallet(r.Context(), userID); err != nil {
		RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathUserID parses the user_id path segment on the admin wallet routes.
func pathUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("request/invalid-user-id"), http.StatusText(http.StatusBadRequest), "user_id must be a valid UUID")
		return uuid.Nil, false
	}
	return userID, true
}

type createWalletRequest struct {
	UserID string `json:"user_id"`
}

// CreateWallet godoc
//
//	@Summary		Provision a wallet
//	@Description	Creates a wallet for a user, applying the welcome bonus when enabled. Admin only.
//	@Tags			wallet
//	@Accept			json
//	@Produce		json
//	@Param			request	body		createWalletRequest	true	"Wallet owner"
//	@Success		201		{object}	walletResponse
//	@Failure		400		{object}	problem.Details
//	@Security		BearerAuth
//	@Router			/v1/wallets [post]
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("request/invalid-user-id"), http.StatusText(http.StatusBadRequest), "user_id must be a valid UUID")
		return
	}
	wallet, err := h.wallets.CreateWallet(r.Context(), userID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, toWalletResponse(wallet))
}

type manualTransactionRequest struct {
	Amount      string `json:"amount"`
	Type        string `json:"transaction_type"`
	Description string `json:"description"`
}

// CreateTransaction godoc
//
//	@Summary		Record a manual transaction
//	@Description	Writes an immediately-settled administrative credit or debit. Admin only.
//	@Tags			wallet
//	@Accept			json
//	@Produce		json
//	@Param			request	body		manualTransactionRequest	true	"Transaction"
//	@Success		201		{object}	transactionResponse
//	@Failure		400		{object}	problem.Details
//	@Failure		422		{object}	problem.Details
//	@Security		BearerAuth
//	@Router			/v1/wallet/transactions [post]
func (h *WalletHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req manualTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}
	txn, err := h.wallets.CreateManualTransaction(r.Context(), userID, amount, req.Type, req.Description)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, toTransactionResponse(txn))
}

type setBalanceRequest struct {
	Balance string `json:"balance"`
}

// SetBalance godoc
//
//	@Summary		Set wallet balance
//	@Description	Overwrites the wallet balance. Admin only.
//	@Tags			wallet
//	@Accept			json
//	@Produce		json
//	@Param			request	body		setBalanceRequest	true	"New balance"
//	@Success		200		{object}	walletResponse
//	@Failure		422		{object}	problem.Details
//	@Security		BearerAuth
//	@Router			/v1/wallet/balance [patch]
func (h *WalletHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req setBalanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := decimal.NewFromString(req.Balance)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("request/invalid-amount"), http.StatusText(http.StatusBadRequest), "balance must be a decimal string")
		return
	}
	wallet, err := h.wallets.SetBalance(r.Context(), userID, domain.FromDecimal(d))
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, toWalletResponse(wallet))
}

// parseAmount parses a positive decimal rupee amount from the request body.
func parseAmount(w http.ResponseWriter, r *http.Request, raw string) (domain.Money, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("request/invalid-amount"), http.StatusText(http.StatusBadRequest), "amount must be a decimal string")
		return domain.Money{}, false
	}
	amount := domain.FromDecimal(d)
	if !amount.IsPositive() {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("request/invalid-amount"), http.StatusText(http.StatusBadRequest), "amount must be greater than zero")
		return domain.Money{}, false
	}
	return amount, true
}
