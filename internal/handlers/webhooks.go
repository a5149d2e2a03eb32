package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v78"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/httpx"
	"github.com/timberline/api/internal/payments"
	"github.com/timberline/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// WebhookHandlers receives asynchronous payment notifications from Stripe.
type WebhookHandlers struct {
	verifier *payments.WebhookVerifier
	orders   services.OrderService
}

// NewWebhookHandlers constructs handlers verifying webhook signatures before applying payment events.
func NewWebhookHandlers(verifier *payments.WebhookVerifier, orders services.OrderService) *WebhookHandlers {
	return &WebhookHandlers{
		verifier: verifier,
		orders:   orders,
	}
}

// Routes wires the /webhooks endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.verifier == nil || h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing is unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return
	}

	event, err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	cmd, ok, err := paymentEventFromStripe(event)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if !ok {
		// Unhandled event types are acknowledged so Stripe stops retrying.
		writeJSONResponse(w, http.StatusOK, webhookAck{Received: true})
		return
	}

	if _, err := h.orders.ApplyPaymentEvent(ctx, cmd); err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			// The order may belong to another environment sharing the Stripe account.
			writeJSONResponse(w, http.StatusOK, webhookAck{Received: true})
		case errors.Is(err, services.ErrOrderInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to apply payment event", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, webhookAck{Received: true})
}

func paymentEventFromStripe(event stripe.Event) (services.PaymentEventCommand, bool, error) {
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return services.PaymentEventCommand{}, false, errors.New("malformed payment intent payload")
		}
		status := domain.PaymentStatusPaid
		if event.Type == "payment_intent.payment_failed" {
			status = domain.PaymentStatusFailed
		}
		cmd := services.PaymentEventCommand{
			PaymentRef: intent.ID,
			Status:     status,
		}
		if orderID, ok := intent.Metadata["orderId"]; ok {
			cmd.OrderID = strings.TrimSpace(orderID)
		}
		return cmd, true, nil
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return services.PaymentEventCommand{}, false, errors.New("malformed charge payload")
		}
		cmd := services.PaymentEventCommand{
			Status: domain.PaymentStatusRefunded,
		}
		if charge.PaymentIntent != nil {
			cmd.PaymentRef = charge.PaymentIntent.ID
		}
		return cmd, true, nil
	default:
		return services.PaymentEventCommand{}, false, nil
	}
}

type webhookAck struct {
	Received bool `json:"received"`
}
