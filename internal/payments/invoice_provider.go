package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// InvoiceProvider settles orders on account. Capture always succeeds and the
// payment stays pending until the invoice is paid offline.
type InvoiceProvider struct {
	clock  func() time.Time
	logger StripeLogger

	mu       sync.Mutex
	captured map[string]PaymentDetails
}

// InvoiceProviderOption configures the InvoiceProvider.
type InvoiceProviderOption func(*InvoiceProvider)

// WithInvoiceClock overrides the time source, used by tests.
func WithInvoiceClock(clock func() time.Time) InvoiceProviderOption {
	return func(p *InvoiceProvider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithInvoiceLogger attaches a logger for capture events.
func WithInvoiceLogger(logger StripeLogger) InvoiceProviderOption {
	return func(p *InvoiceProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewInvoiceProvider constructs the on-account payment provider.
func NewInvoiceProvider(opts ...InvoiceProviderOption) *InvoiceProvider {
	p := &InvoiceProvider{
		clock:    time.Now,
		logger:   func(context.Context, string, map[string]any) {},
		captured: make(map[string]PaymentDetails),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capture records the invoice and succeeds unconditionally.
func (p *InvoiceProvider) Capture(ctx context.Context, req CaptureRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("invoice: provider is nil")
	}
	now := p.clock().UTC()
	reference := fmt.Sprintf("inv_%s_%d", strings.TrimSpace(req.OrderID), now.Unix())
	details := PaymentDetails{
		Method:    "invoice",
		Reference: reference,
		Status:    StatusPending,
		Amount:    req.Amount,
		Currency:  strings.ToUpper(req.Currency),
	}

	p.mu.Lock()
	p.captured[reference] = details
	p.mu.Unlock()

	p.logger(ctx, "payments.invoice.captured", map[string]any{
		"reference": reference,
		"orderId":   req.OrderID,
		"amount":    req.Amount,
	})
	return details, nil
}

// Refund marks the recorded invoice as refunded.
func (p *InvoiceProvider) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("invoice: provider is nil")
	}
	now := p.clock().UTC()

	p.mu.Lock()
	defer p.mu.Unlock()
	details, ok := p.captured[req.Reference]
	if !ok {
		return PaymentDetails{}, fmt.Errorf("invoice: unknown reference %q", req.Reference)
	}
	details.Status = StatusRefunded
	details.RefundedAt = &now
	p.captured[req.Reference] = details
	return details, nil
}

// Lookup returns the recorded invoice details.
func (p *InvoiceProvider) Lookup(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("invoice: provider is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	details, ok := p.captured[req.Reference]
	if !ok {
		return PaymentDetails{}, fmt.Errorf("invoice: unknown reference %q", req.Reference)
	}
	return details, nil
}
