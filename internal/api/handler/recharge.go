package handler

import (
	"net/http"

	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/service"
)

// RechargeHandler drives the gateway-backed recharge flow: order creation and
// the client-side payment verification that completes it.
type RechargeHandler struct {
	recharges *service.RechargeService
}

func NewRechargeHandler(recharges *service.RechargeService) *RechargeHandler {
	return &RechargeHandler{recharges: recharges}
}

type rechargeRequest struct {
	Amount string `json:"amount"`
}

// CreateOrder godoc
//
//	@Summary		Initiate a recharge
//	@Description	Opens a payment gateway order and records the pending recharge
//	@Tags			recharge
//	@Accept			json
//	@Produce		json
//	@Param			request	body		rechargeRequest	true	"Recharge amount in rupees"
//	@Success		201		{object}	service.OrderDetails
//	@Failure		400		{object}	problem.Details
//	@Failure		429		{object}	problem.Details
//	@Security		BearerAuth
//	@Router			/v1/wallet/recharge [post]
func (h *RechargeHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req rechargeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, r, req.Amount)
	if !ok {
		return
	}

	details, err := h.recharges.CreateOrder(r.Context(), userID, amount)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, details)
}

type verifyPaymentRequest struct {
	OrderID   string `json:"gateway_order_id"`
	PaymentID string `json:"gateway_payment_id"`
	Signature string `json:"gateway_signature"`
	Amount    string `json:"amount,omitempty"`
}

type verifyPaymentResponse struct {
	Transaction      transactionResponse `json:"transaction"`
	AlreadyProcessed bool                `json:"already_processed"`
}

// VerifyPayment godoc
//
//	@Summary		Verify a payment
//	@Description	Verifies the gateway signature and settles the pending recharge
//	@Tags			recharge
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifyPaymentRequest	true	"Gateway confirmation"
//	@Success		200		{object}	verifyPaymentResponse
//	@Failure		400		{object}	problem.Details
//	@Failure		404		{object}	problem.Details
//	@Security		BearerAuth
//	@Router			/v1/wallet/verify-payment [post]
func (h *RechargeHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestActor(w, r); !ok {
		return
	}
	var req verifyPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		RespondError(w, r, domain.ErrInvalidSignature)
		return
	}

	var claimed *domain.Money
	if req.Amount != "" {
		amount, ok := parseAmount(w, r, req.Amount)
		if !ok {
			return
		}
		claimed = &amount
	}

	txn, already, err := h.recharges.VerifyPayment(r.Context(), req.OrderID, req.PaymentID, req.Signature, claimed)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, verifyPaymentResponse{
		Transaction:      toTransactionResponse(txn),
		AlreadyProcessed: already,
	})
}
