package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/milkpay/wallet-service/internal/api/problem"
	"github.com/milkpay/wallet-service/internal/domain"
	"github.com/milkpay/wallet-service/internal/service"
)

const webhookSignatureHeader = "X-Gateway-Signature"

// maxWebhookBody caps webhook payloads at 1 MiB.
const maxWebhookBody = 1 << 20

// WebhookHandler terminates gateway webhook deliveries. Everything past
// signature and syntax checks is acknowledged with 200 so the gateway stops
// retrying; the service layer logs and counts the rest.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandleGatewayWebhook godoc
//
//	@Summary		Gateway webhook
//	@Description	Receives payment lifecycle events from the gateway
//	@Tags			webhook
//	@Accept			json
//	@Produce		json
//	@Param			X-Gateway-Signature	header		string	true	"HMAC signature over the raw body"
//	@Success		200					{object}	map[string]string
//	@Failure		400					{object}	problem.Details
//	@Router			/v1/webhooks/gateway [post]
func (h *WebhookHandler) HandleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("webhook/unreadable-body"), http.StatusText(http.StatusBadRequest), "Failed to read webhook body")
		return
	}

	signature := r.Header.Get(webhookSignatureHeader)
	if err := h.webhooks.HandleWebhook(r.Context(), body, signature); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			problem.Write(w, r, http.StatusBadRequest, problem.Type("webhook/invalid-signature"), http.StatusText(http.StatusBadRequest), "Webhook signature verification failed")
		case errors.Is(err, service.ErrMalformedPayload):
			problem.Write(w, r, http.StatusBadRequest, problem.Type("webhook/malformed-payload"), http.StatusText(http.StatusBadRequest), "Malformed webhook payload")
		default:
			RespondError(w, r, err)
		}
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
