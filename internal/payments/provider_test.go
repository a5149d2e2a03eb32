package payments

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubProvider struct {
	captureFunc func(ctx context.Context, req CaptureRequest) (PaymentDetails, error)
	refundFunc  func(ctx context.Context, req RefundRequest) (PaymentDetails, error)
	lookupFunc  func(ctx context.Context, req LookupRequest) (PaymentDetails, error)
}

func (s *stubProvider) Capture(ctx context.Context, req CaptureRequest) (PaymentDetails, error) {
	if s.captureFunc != nil {
		return s.captureFunc(ctx, req)
	}
	return PaymentDetails{Reference: "ref-1", Status: StatusSucceeded, Amount: req.Amount}, nil
}

func (s *stubProvider) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	if s.refundFunc != nil {
		return s.refundFunc(ctx, req)
	}
	return PaymentDetails{Reference: req.Reference, Status: StatusRefunded}, nil
}

func (s *stubProvider) Lookup(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	if s.lookupFunc != nil {
		return s.lookupFunc(ctx, req)
	}
	return PaymentDetails{Reference: req.Reference}, nil
}

func TestManagerRoutesByMethodCaseInsensitively(t *testing.T) {
	captured := false
	manager, err := NewManager(map[string]Provider{
		"Card": &stubProvider{
			captureFunc: func(ctx context.Context, req CaptureRequest) (PaymentDetails, error) {
				captured = true
				return PaymentDetails{Reference: "pi_1", Status: StatusSucceeded, Amount: req.Amount}, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	details, err := manager.Capture(context.Background(), "CARD", CaptureRequest{OrderID: "order-1", Amount: 1320000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !captured {
		t.Fatal("expected the registered provider to handle the capture")
	}
	if details.Method != "card" {
		t.Fatalf("expected the normalised method on the details, got %q", details.Method)
	}
	if !manager.Supports("card") || !manager.Supports(" Card ") {
		t.Fatal("expected the method to be reported as supported")
	}
	if manager.Supports("invoice") {
		t.Fatal("expected unregistered methods to be unsupported")
	}
}

func TestManagerRejectsUnknownMethod(t *testing.T) {
	manager, err := NewManager(map[string]Provider{"card": &stubProvider{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = manager.Capture(context.Background(), "bank-transfer", CaptureRequest{OrderID: "order-1"})
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestManagerPassesProviderErrorsThrough(t *testing.T) {
	manager, err := NewManager(map[string]Provider{
		"card": &stubProvider{
			captureFunc: func(ctx context.Context, req CaptureRequest) (PaymentDetails, error) {
				return PaymentDetails{}, ErrDeclined
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = manager.Capture(context.Background(), "card", CaptureRequest{OrderID: "order-1"})
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
}

func TestNewManagerRequiresProviders(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatal("expected an error for an empty registry")
	}
	if _, err := NewManager(map[string]Provider{" ": &stubProvider{}}); err == nil {
		t.Fatal("expected an error for a blank method key")
	}
}

func TestInvoiceProviderCaptureStaysPending(t *testing.T) {
	now := time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC)
	provider := NewInvoiceProvider(WithInvoiceClock(func() time.Time { return now }))

	details, err := provider.Capture(context.Background(), CaptureRequest{
		OrderID:  "order-1",
		Amount:   1320000,
		Currency: "gbp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.Status != StatusPending {
		t.Fatalf("expected a pending payment, got %q", details.Status)
	}
	if details.Reference == "" || details.Reference[:4] != "inv_" {
		t.Fatalf("expected an invoice reference, got %q", details.Reference)
	}
	if details.Currency != "GBP" {
		t.Fatalf("expected the currency uppercased, got %q", details.Currency)
	}

	found, err := provider.Lookup(context.Background(), LookupRequest{Reference: details.Reference})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Amount != 1320000 {
		t.Fatalf("expected the captured amount, got %d", found.Amount)
	}
}

func TestInvoiceProviderRefund(t *testing.T) {
	now := time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC)
	provider := NewInvoiceProvider(WithInvoiceClock(func() time.Time { return now }))

	details, err := provider.Capture(context.Background(), CaptureRequest{OrderID: "order-1", Amount: 1320000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refunded, err := provider.Refund(context.Background(), RefundRequest{Reference: details.Reference})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refunded.Status != StatusRefunded {
		t.Fatalf("expected a refunded payment, got %q", refunded.Status)
	}
	if refunded.RefundedAt == nil || !refunded.RefundedAt.Equal(now) {
		t.Fatalf("expected refundedAt %v, got %v", now, refunded.RefundedAt)
	}

	if _, err := provider.Refund(context.Background(), RefundRequest{Reference: "inv_missing_0"}); err == nil {
		t.Fatal("expected an error for an unknown reference")
	}
}
