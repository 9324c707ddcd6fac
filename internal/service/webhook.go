package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/gateway"
	"github.com/milkpay/wallet-service/internal/observability"
	"go.uber.org/zap"
)

// ErrMalformedPayload is returned when a webhook body is not syntactically
// acceptable. It is the only processing error the webhook boundary surfaces
// besides an invalid signature; everything past syntactic acceptance is
// acknowledged so the gateway stops retrying.
var ErrMalformedPayload = errors.New("malformed webhook payload")

const (
	eventPaymentCaptured = "payment.captured"

	paymentStatusCaptured  = "captured"
	paymentStatusFailed    = "failed"
	paymentStatusCancelled = "cancelled"
)

// WebhookService handles gateway webhook deliveries. It is the second,
// unauthenticated completion path; the signature over the raw body is the
// only trust anchor.
type WebhookService struct {
	reconciler *ReconcilerService
	verifier   *gateway.SignatureVerifier
}

func NewWebhookService(reconciler *ReconcilerService, verifier *gateway.SignatureVerifier) *WebhookService {
	return &WebhookService{reconciler: reconciler, verifier: verifier}
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
				Amount  *int64 `json:"amount"` // paise
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook verifies and processes one webhook delivery. A nil return
// means the delivery should be acknowledged; domain.ErrInvalidSignature and
// ErrMalformedPayload are the only errors that reach the handler, because the
// gateway only understands HTTP-level success and retries anything else
// indefinitely. Duplicate deliveries for an already-terminal order are
// acknowledged as no-ops.
func (s *WebhookService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if signature == "" || !s.verifier.VerifyWebhook(body, signature) {
		observability.IncrementWebhookEvent("invalid_signature")
		zap.L().Warn("invalid webhook signature")
		return domain.ErrInvalidSignature
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		observability.IncrementWebhookEvent("malformed")
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	entity := envelope.Payload.Payment.Entity
	if entity.OrderID == "" || entity.ID == "" {
		observability.IncrementWebhookEvent("missing_ids")
		zap.L().Warn("webhook missing order_id or payment_id", zap.String("event", envelope.Event))
		return nil
	}

	var capturedAmount *domain.Money
	if entity.Amount != nil {
		amount := domain.FromPaise(*entity.Amount)
		capturedAmount = &amount
	}

	switch {
	case envelope.Event == eventPaymentCaptured || entity.Status == paymentStatusCaptured:
		_, err := s.reconciler.CompleteSuccess(ctx, entity.OrderID, entity.ID, capturedAmount, "webhook")
		s.acknowledge(entity.OrderID, err)
	case entity.Status == paymentStatusFailed || entity.Status == paymentStatusCancelled:
		_, err := s.reconciler.CompleteFailure(ctx, entity.OrderID, entity.Status, "webhook")
		s.acknowledge(entity.OrderID, err)
	default:
		observability.IncrementWebhookEvent("ignored")
		zap.L().Debug("ignoring webhook event",
			zap.String("event", envelope.Event),
			zap.String("status", entity.Status),
		)
	}
	return nil
}

// acknowledge swallows processing errors after logging: a duplicate delivery
// is expected, anything else must not trigger endless gateway retries.
func (s *WebhookService) acknowledge(orderID string, err error) {
	switch {
	case err == nil:
		observability.IncrementWebhookEvent("processed")
	case errors.Is(err, domain.ErrTransactionNotFound):
		observability.IncrementWebhookEvent("duplicate")
		zap.L().Info("webhook for already-processed order", zap.String("order_id", orderID))
	default:
		observability.IncrementWebhookEvent("error")
		zap.L().Error("webhook processing failed", zap.Error(err), zap.String("order_id", orderID))
	}
}
