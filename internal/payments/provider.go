// Package payments abstracts payment capture behind a provider registry so
// checkout can settle orders by card or by invoice through one interface.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or settlement.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the payment has been captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the payment failed and no further action is possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been refunded.
	StatusRefunded Status = "refunded"
)

// ErrUnsupportedMethod is returned when the manager has no provider for a
// payment method.
var ErrUnsupportedMethod = errors.New("payments: unsupported payment method")

// ErrDeclined is returned when a provider rejects a capture attempt.
var ErrDeclined = errors.New("payments: payment declined")

// CaptureRequest describes a capture attempt for one order.
type CaptureRequest struct {
	OrderID        string
	Amount         int64
	Currency       string
	CustomerEmail  string
	Description    string
	Token          string
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundRequest describes a refund attempt, optionally for a partial amount.
type RefundRequest struct {
	Reference      string
	Amount         *int64
	Reason         string
	IdempotencyKey string
}

// LookupRequest identifies a previously captured payment.
type LookupRequest struct {
	Reference string
}

// PaymentDetails normalises provider specific fields for storage on orders.
type PaymentDetails struct {
	Method     string
	Reference  string
	Status     Status
	Amount     int64
	Currency   string
	CapturedAt *time.Time
	RefundedAt *time.Time
}

// Provider defines the contract that each payment method adapter implements.
type Provider interface {
	Capture(ctx context.Context, req CaptureRequest) (PaymentDetails, error)
	Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error)
	Lookup(ctx context.Context, req LookupRequest) (PaymentDetails, error)
}

// Manager routes payment operations to the provider registered for the
// requested payment method.
type Manager struct {
	providers map[string]Provider
}

// NewManager constructs a Manager over the supplied providers, keyed by
// payment method name.
func NewManager(providers map[string]Provider) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for key, provider := range providers {
		method := strings.TrimSpace(strings.ToLower(key))
		if method == "" || provider == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", key)
		}
		copyMap[method] = provider
	}
	return &Manager{providers: copyMap}, nil
}

// Supports reports whether a provider is registered for the method.
func (m *Manager) Supports(method string) bool {
	if m == nil {
		return false
	}
	_, ok := m.providers[strings.TrimSpace(strings.ToLower(method))]
	return ok
}

func (m *Manager) resolve(method string) (Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return nil, errors.New("payments: no providers registered")
	}
	provider, ok := m.providers[strings.TrimSpace(strings.ToLower(method))]
	if !ok {
		return nil, ErrUnsupportedMethod
	}
	return provider, nil
}

// Capture delegates to the provider registered for the method.
func (m *Manager) Capture(ctx context.Context, method string, req CaptureRequest) (PaymentDetails, error) {
	provider, err := m.resolve(method)
	if err != nil {
		return PaymentDetails{}, err
	}
	details, err := provider.Capture(ctx, req)
	if err != nil {
		return PaymentDetails{}, err
	}
	details.Method = strings.TrimSpace(strings.ToLower(method))
	return details, nil
}

// Refund delegates to the provider registered for the method.
func (m *Manager) Refund(ctx context.Context, method string, req RefundRequest) (PaymentDetails, error) {
	provider, err := m.resolve(method)
	if err != nil {
		return PaymentDetails{}, err
	}
	return provider.Refund(ctx, req)
}

// Lookup delegates to the provider registered for the method.
func (m *Manager) Lookup(ctx context.Context, method string, req LookupRequest) (PaymentDetails, error) {
	provider, err := m.resolve(method)
	if err != nil {
		return PaymentDetails{}, err
	}
	return provider.Lookup(ctx, req)
}
