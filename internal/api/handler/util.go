package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/milkpay/wallet-service/internal/api/middleware"
	"github.com/milkpay/wallet-service/internal/api/problem"
	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/gateway"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON body with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

// RespondError maps domain errors onto RFC 7807 responses.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var rejection *gateway.RejectionError
	switch {
	case errors.Is(err, domain.ErrWalletNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.Type("wallet/not-found"), http.StatusText(http.StatusNotFound), "Wallet not found")
	case errors.Is(err, domain.ErrTransactionNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.Type("transaction/not-found"), http.StatusText(http.StatusNotFound), "Transaction not found")
	case errors.Is(err, domain.ErrTooManyPendingTransactions):
		problem.Write(w, r, http.StatusTooManyRequests, problem.Type("recharge/too-many-pending"), http.StatusText(http.StatusTooManyRequests), "Too many pending recharge attempts, please complete or wait for them to expire")
	case errors.Is(err, domain.ErrInsufficientBalance):
		problem.Write(w, r, http.StatusUnprocessableEntity, problem.Type("wallet/insufficient-balance"), http.StatusText(http.StatusUnprocessableEntity), "Insufficient wallet balance")
	case errors.Is(err, domain.ErrNegativeBalance):
		problem.Write(w, r, http.StatusUnprocessableEntity, problem.Type("wallet/negative-balance"), http.StatusText(http.StatusUnprocessableEntity), "Balance cannot be negative")
	case errors.Is(err, domain.ErrInvalidSignature):
		problem.Write(w, r, http.StatusBadRequest, problem.Type("payment/invalid-signature"), http.StatusText(http.StatusBadRequest), "Signature verification failed")
	case errors.As(err, &rejection):
		problem.Write(w, r, http.StatusBadGateway, problem.Type("gateway/order-rejected"), http.StatusText(http.StatusBadGateway), rejection.Message)
	default:
		zap.L().Error("request failed", zap.Error(err), zap.String("path", r.URL.Path))
		problem.Write(w, r, http.StatusInternalServerError, problem.Type("internal"), http.StatusText(http.StatusInternalServerError), "Internal server error")
	}
}

// requestActor resolves the authenticated user's id from the request context.
func requestActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/unauthenticated"), http.StatusText(http.StatusUnauthorized), "Authentication required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-subject"), http.StatusText(http.StatusUnauthorized), "Invalid user identity")
		return uuid.Nil, false
	}
	return userID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("request/invalid-body"), http.StatusText(http.StatusBadRequest), "Invalid request body")
		return false
	}
	return true
}
