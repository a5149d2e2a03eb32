package payments

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// ErrWebhookSignature is returned when a webhook payload fails verification.
var ErrWebhookSignature = errors.New("payments: invalid webhook signature")

// WebhookVerifier validates and decodes signed Stripe webhook payloads.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier constructs a verifier bound to the endpoint secret.
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, errors.New("payments: webhook secret is required")
	}
	return &WebhookVerifier{secret: secret}, nil
}

// Verify checks the Stripe-Signature header against the payload and returns
// the decoded event.
func (v *WebhookVerifier) Verify(payload []byte, signature string) (stripe.Event, error) {
	if v == nil {
		return stripe.Event{}, errors.New("payments: verifier is nil")
	}
	event, err := webhook.ConstructEvent(payload, signature, v.secret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}
	return event, nil
}
