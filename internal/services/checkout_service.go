package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/payments"
	"github.com/timberline/api/internal/repositories"
)

const checkoutCurrency = "GBP"

// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutEmptyBasket indicates the caller tried to check out an empty basket.
var ErrCheckoutEmptyBasket = errors.New("checkout service: basket is empty")

// ErrCheckoutPaymentDeclined indicates the payment provider rejected the capture.
var ErrCheckoutPaymentDeclined = errors.New("checkout service: payment declined")

// ErrCheckoutUnavailable indicates checkout cannot be completed right now.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

// ukPostcodePattern matches the outward and inward halves of UK postcodes,
// with or without the separating space.
var ukPostcodePattern = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9][0-9A-Za-z]?\s?[0-9][A-Za-z]{2}$`)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type paymentCapturer interface {
	Capture(ctx context.Context, method string, req payments.CaptureRequest) (payments.PaymentDetails, error)
	Supports(method string) bool
}

// CheckoutServiceDeps wires the basket, order, payment, and event dependencies.
type CheckoutServiceDeps struct {
	Baskets     repositories.BasketRepository
	Orders      repositories.OrderRepository
	Settings    deliverySettingsSource
	Pricer      basketPricer
	Payments    paymentCapturer
	Publisher   OrderEventPublisher
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type checkoutService struct {
	baskets   repositories.BasketRepository
	orders    repositories.OrderRepository
	settings  deliverySettingsSource
	pricer    basketPricer
	payments  paymentCapturer
	publisher OrderEventPublisher
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Baskets == nil {
		return nil, errors.New("checkout service: basket repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("checkout service: settings source is required")
	}
	if deps.Pricer == nil {
		return nil, errors.New("checkout service: pricer is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment manager is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &checkoutService{
		baskets:   deps.Baskets,
		orders:    deps.Orders,
		settings:  deps.Settings,
		pricer:    deps.Pricer,
		payments:  deps.Payments,
		publisher: deps.Publisher,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// Checkout validates the command, captures payment, and then persists the
// order. Validation failures and declined payments leave no order behind and
// keep the basket intact.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	if s == nil || s.baskets == nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return CheckoutResult{}, ErrCheckoutInvalidInput
	}

	if err := s.validate(cmd); err != nil {
		return CheckoutResult{}, err
	}

	basket, err := s.baskets.Get(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return CheckoutResult{}, ErrCheckoutEmptyBasket
		}
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	if len(basket.Items) == 0 {
		return CheckoutResult{}, ErrCheckoutEmptyBasket
	}

	settings, err := s.settings.GetDeliverySettings(ctx)
	if err != nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	totals := s.pricer.Totals(basket.Items, settings)

	orderID := s.newID()
	details, err := s.payments.Capture(ctx, string(cmd.PaymentMethod), payments.CaptureRequest{
		OrderID:        orderID,
		Amount:         totals.Total.Pence(),
		Currency:       checkoutCurrency,
		CustomerEmail:  strings.TrimSpace(cmd.Email),
		Description:    "Timberline order",
		Token:          strings.TrimSpace(cmd.PaymentToken),
		IdempotencyKey: orderID,
	})
	if err != nil {
		if errors.Is(err, payments.ErrDeclined) {
			s.logger(ctx, "checkout.payment.declined", map[string]any{
				"userId": uid,
				"method": string(cmd.PaymentMethod),
			})
			return CheckoutResult{}, ErrCheckoutPaymentDeclined
		}
		if errors.Is(err, payments.ErrUnsupportedMethod) {
			return CheckoutResult{}, ErrCheckoutInvalidInput
		}
		return CheckoutResult{}, ErrCheckoutUnavailable
	}

	number, err := s.orders.NextOrderNumber(ctx)
	if err != nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}

	now := s.now()
	shipping := cmd.BillingAddress
	if cmd.ShippingAddress != nil {
		shipping = *cmd.ShippingAddress
	}

	order := domain.Order{
		ID:     orderID,
		Number: number,
		UserID: uid,
		Email:  strings.ToLower(strings.TrimSpace(cmd.Email)),
		Items:  cloneItems(basket.Items),
		Totals: totals,
		Status: domain.OrderStatusPending,
		StatusHistory: []domain.StatusChange{{
			From:      domain.OrderStatusPending,
			To:        domain.OrderStatusPending,
			ChangedBy: uid,
			ChangedAt: now,
			Note:      "order placed",
		}},
		PaymentMethod:   cmd.PaymentMethod,
		PaymentStatus:   paymentStatusFromDetails(details),
		PaymentRef:      details.Reference,
		BillingAddress:  checkoutAddressToDomain(cmd.BillingAddress),
		ShippingAddress: checkoutAddressToDomain(shipping),
		Notes:           strings.TrimSpace(cmd.Notes),
		PlacedAt:        now,
	}

	saved, err := s.orders.Insert(ctx, order)
	if err != nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}

	s.logger(ctx, "checkout.order.placed", map[string]any{
		"orderId":     saved.ID,
		"orderNumber": saved.Number,
		"userId":      uid,
		"total":       saved.Totals.Total.Pence(),
	})

	if s.publisher != nil {
		if _, err := s.publisher.PublishOrderPlaced(ctx, OrderPlacedMessage{
			OrderID:       saved.ID,
			OrderNumber:   saved.Number,
			UserID:        uid,
			Email:         saved.Email,
			PaymentMethod: string(saved.PaymentMethod),
			Total:         saved.Totals.Total.Pence(),
			Currency:      checkoutCurrency,
			PlacedAt:      saved.PlacedAt,
		}); err != nil {
			s.logger(ctx, "checkout.event.publish_failed", map[string]any{
				"orderId": saved.ID,
				"error":   err.Error(),
			})
		}
	}

	if err := s.baskets.Clear(ctx, uid); err != nil {
		s.logger(ctx, "checkout.basket.clear_failed", map[string]any{
			"userId": uid,
			"error":  err.Error(),
		})
	}

	return CheckoutResult{Order: saved}, nil
}

// validate checks the whole command and reports every failing field.
func (s *checkoutService) validate(cmd CheckoutCommand) error {
	validationErr := &ValidationError{}

	email := strings.TrimSpace(cmd.Email)
	if email == "" {
		validationErr.Add("email", "email is required")
	} else if !emailPattern.MatchString(email) {
		validationErr.Add("email", "email is not valid")
	}

	if !domain.ValidPaymentMethod(cmd.PaymentMethod) {
		validationErr.Add("paymentMethod", "unsupported payment method")
	} else if !s.payments.Supports(string(cmd.PaymentMethod)) {
		validationErr.Add("paymentMethod", "payment method is not enabled")
	}
	if cmd.PaymentMethod == domain.PaymentMethodCard && strings.TrimSpace(cmd.PaymentToken) == "" {
		validationErr.Add("paymentToken", "card payments require a payment token")
	}

	validateCheckoutAddress(validationErr, "billing", cmd.BillingAddress)
	if cmd.ShippingAddress != nil {
		validateCheckoutAddress(validationErr, "shipping", *cmd.ShippingAddress)
	}

	if validationErr.HasViolations() {
		return validationErr
	}
	return nil
}

func validateCheckoutAddress(validationErr *ValidationError, prefix string, addr CheckoutAddress) {
	if strings.TrimSpace(addr.Name) == "" {
		validationErr.Add(prefix+".name", "name is required")
	}
	if strings.TrimSpace(addr.Line1) == "" {
		validationErr.Add(prefix+".line1", "address line is required")
	}
	if strings.TrimSpace(addr.City) == "" {
		validationErr.Add(prefix+".city", "city is required")
	}

	postcode := strings.TrimSpace(addr.Postcode)
	if postcode == "" {
		validationErr.Add(prefix+".postcode", "postcode is required")
	} else if isUKCountry(addr.Country) && !ukPostcodePattern.MatchString(postcode) {
		validationErr.Add(prefix+".postcode", "postcode is not a valid UK postcode")
	}
}

func isUKCountry(country string) bool {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "", "GB", "UK", "GBR", "UNITED KINGDOM":
		return true
	default:
		return false
	}
}

func paymentStatusFromDetails(details payments.PaymentDetails) domain.PaymentStatus {
	switch details.Status {
	case payments.StatusSucceeded:
		return domain.PaymentStatusPaid
	case payments.StatusFailed:
		return domain.PaymentStatusFailed
	case payments.StatusRefunded:
		return domain.PaymentStatusRefunded
	default:
		return domain.PaymentStatusPending
	}
}

func checkoutAddressToDomain(addr CheckoutAddress) domain.Address {
	country := strings.TrimSpace(addr.Country)
	if country == "" {
		country = "GB"
	}
	return domain.Address{
		Name:     strings.TrimSpace(addr.Name),
		Line1:    strings.TrimSpace(addr.Line1),
		Line2:    strings.TrimSpace(addr.Line2),
		City:     strings.TrimSpace(addr.City),
		County:   strings.TrimSpace(addr.County),
		Postcode: strings.ToUpper(strings.TrimSpace(addr.Postcode)),
		Country:  country,
		Phone:    strings.TrimSpace(addr.Phone),
	}
}

func cloneItems(items []domain.BasketItem) []domain.BasketItem {
	cloned := make([]domain.BasketItem, len(items))
	copy(cloned, items)
	for i := range cloned {
		cloned[i].Configuration = cloned[i].Configuration.Clone()
	}
	return cloned
}
