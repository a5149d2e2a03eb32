// Package services contains the application logic between the HTTP handlers
// and the persistence layer.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/repositories"
)

// FieldViolation names one invalid field in a request payload.
type FieldViolation struct {
	Field   string
	Message string
}

// ValidationError aggregates every failing field of a request so the caller
// can surface all of them in one response.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// Add appends a violation and returns the error for chaining.
func (e *ValidationError) Add(field string, message string) *ValidationError {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Message: message})
	return e
}

// HasViolations reports whether any field failed.
func (e *ValidationError) HasViolations() bool {
	return e != nil && len(e.Violations) > 0
}

// CategorySummary describes one product family for storefront listings.
type CategorySummary struct {
	Category    domain.ProductCategory
	Name        string
	Description string
	FromPrice   domain.Money
}

// CategorySchema bundles the configurator schema with the default
// configuration and its price.
type CategorySchema struct {
	Category     domain.ProductCategory
	Options      []domain.Option
	Defaults     domain.Configuration
	DefaultPrice domain.Money
}

// QuoteCommand prices one configuration.
type QuoteCommand struct {
	Category      domain.ProductCategory
	Configuration domain.Configuration
}

// CatalogService exposes the product catalogue to the storefront.
type CatalogService interface {
	Categories(ctx context.Context) ([]CategorySummary, error)
	Schema(ctx context.Context, category domain.ProductCategory) (CategorySchema, error)
	Quote(ctx context.Context, cmd QuoteCommand) (domain.Quote, error)
}

// BasketView pairs the stored basket with its freshly computed totals.
type BasketView struct {
	Basket domain.Basket
	Totals domain.BasketTotals
}

// AddBasketItemCommand adds a priced configuration to the basket.
type AddBasketItemCommand struct {
	UserID        string
	Category      domain.ProductCategory
	Configuration domain.Configuration
	Quantity      int64
}

// UpdateBasketItemCommand changes the quantity of an existing line.
type UpdateBasketItemCommand struct {
	UserID   string
	ItemID   string
	Quantity int64
}

// BasketService owns the basket lifecycle up to checkout.
type BasketService interface {
	GetBasket(ctx context.Context, userID string) (BasketView, error)
	AddItem(ctx context.Context, cmd AddBasketItemCommand) (BasketView, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateBasketItemCommand) (BasketView, error)
	RemoveItem(ctx context.Context, userID string, itemID string) (BasketView, error)
	ClearBasket(ctx context.Context, userID string) error
}

// CheckoutAddress is the address payload supplied at checkout.
type CheckoutAddress struct {
	Name     string
	Line1    string
	Line2    string
	City     string
	County   string
	Postcode string
	Country  string
	Phone    string
}

// CheckoutCommand converts the caller's basket into an order.
type CheckoutCommand struct {
	UserID          string
	Email           string
	PaymentMethod   domain.PaymentMethod
	PaymentToken    string
	BillingAddress  CheckoutAddress
	ShippingAddress *CheckoutAddress
	Notes           string
}

// CheckoutResult reports the placed order.
type CheckoutResult struct {
	Order domain.Order
}

// CheckoutService coordinates payment capture and order creation.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
}

// UpdateOrderStatusCommand moves an order along its fulfilment lifecycle.
type UpdateOrderStatusCommand struct {
	OrderID   string
	To        domain.OrderStatus
	ChangedBy string
	Note      string
}

// PaymentEventCommand applies a payment state reported by the provider,
// typically via webhook.
type PaymentEventCommand struct {
	PaymentRef string
	OrderID    string
	Status     domain.PaymentStatus
}

// AdminOrderListQuery narrows the back-office order listing.
type AdminOrderListQuery struct {
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	UserID        string
	PlacedAfter   *time.Time
	PlacedBefore  *time.Time
	Pagination    domain.Pagination
}

// OrderService exposes customer order history and back-office fulfilment.
type OrderService interface {
	GetOrder(ctx context.Context, userID string, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
	AdminGetOrder(ctx context.Context, orderID string) (domain.Order, error)
	AdminListOrders(ctx context.Context, query AdminOrderListQuery) (domain.CursorPage[domain.Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error)
	ApplyPaymentEvent(ctx context.Context, cmd PaymentEventCommand) (domain.Order, error)
}

// CaptureLeadCommand records a sales enquiry from the public contact form.
type CaptureLeadCommand struct {
	Name     string
	Email    string
	Phone    string
	Message  string
	Category domain.ProductCategory
	Source   string
}

// UpdateLeadCommand progresses a lead through the pipeline.
type UpdateLeadCommand struct {
	LeadID string
	Status domain.LeadStatus
	Notes  string
}

// LeadService captures and manages sales enquiries.
type LeadService interface {
	CaptureLead(ctx context.Context, cmd CaptureLeadCommand) (domain.Lead, error)
	GetLead(ctx context.Context, leadID string) (domain.Lead, error)
	ListLeads(ctx context.Context, filter repositories.LeadListFilter) (domain.CursorPage[domain.Lead], error)
	UpdateLead(ctx context.Context, cmd UpdateLeadCommand) (domain.Lead, error)
}

// UpsertProfileCommand updates the caller's own profile.
type UpsertProfileCommand struct {
	UserID      string
	Email       string
	DisplayName string
	Phone       string
	Preferences domain.NotificationPreferences
}

// UpsertAddressCommand creates or updates one address for the caller.
type UpsertAddressCommand struct {
	OwnerID   string
	AddressID string
	Label     string
	Type      domain.AddressType
	Name      string
	Line1     string
	Line2     string
	City      string
	County    string
	Postcode  string
	Country   string
	Phone     string
}

// RoleAssignment pairs a user with the role to grant inside a batch update.
type RoleAssignment struct {
	UserID string
	Role   domain.UserRole
}

// BatchUpdateRolesCommand applies role assignments atomically.
type BatchUpdateRolesCommand struct {
	Assignments []RoleAssignment
	ChangedBy   string
}

// DeactivateUserCommand disables an account so it can no longer sign in.
type DeactivateUserCommand struct {
	UserID    string
	ChangedBy string
}

// UserService owns account profiles, addresses, and role administration.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (domain.UserAccount, error)
	UpsertProfile(ctx context.Context, cmd UpsertProfileCommand) (domain.UserAccount, error)
	ListUsers(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.UserAccount], error)
	BatchUpdateRoles(ctx context.Context, cmd BatchUpdateRolesCommand) ([]domain.UserAccount, error)
	DeactivateUser(ctx context.Context, cmd DeactivateUserCommand) (domain.UserAccount, error)

	ListAddresses(ctx context.Context, ownerID string) ([]domain.Address, error)
	AddAddress(ctx context.Context, cmd UpsertAddressCommand) (domain.Address, error)
	UpdateAddress(ctx context.Context, cmd UpsertAddressCommand) (domain.Address, error)
	DeleteAddress(ctx context.Context, ownerID string, addressID string) error
	SetDefaultAddress(ctx context.Context, ownerID string, addressID string) (domain.Address, error)
}

// UpdateDeliverySettingsCommand replaces the tax and delivery configuration.
type UpdateDeliverySettingsCommand struct {
	VATRateBps    int64
	ShippingTiers []domain.ShippingTier
	UpdatedBy     string
}

// SettingsService owns the singleton delivery and tax configuration.
type SettingsService interface {
	GetDeliverySettings(ctx context.Context) (domain.DeliverySettings, error)
	UpdateDeliverySettings(ctx context.Context, cmd UpdateDeliverySettingsCommand) (domain.DeliverySettings, error)
}

// UpsertPageCommand creates or updates an editorial page.
type UpsertPageCommand struct {
	PageID    string
	Slug      string
	Title     string
	Body      string
	Excerpt   string
	HeroImage string
	Published bool
	UpdatedBy string
}

// PageImageUploadCommand requests a signed URL for a page image upload.
type PageImageUploadCommand struct {
	PageSlug    string
	FileName    string
	ContentType string
}

// SignedUpload carries the signed URL and object path returned to admins.
type SignedUpload struct {
	URL        string
	ObjectPath string
	ExpiresAt  time.Time
}

// ContentService owns editorial pages and their media.
type ContentService interface {
	GetPublishedPage(ctx context.Context, slug string) (domain.ContentPage, error)
	ListPublishedPages(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.ContentPage], error)
	AdminGetPage(ctx context.Context, pageID string) (domain.ContentPage, error)
	AdminListPages(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.ContentPage], error)
	CreatePage(ctx context.Context, cmd UpsertPageCommand) (domain.ContentPage, error)
	UpdatePage(ctx context.Context, cmd UpsertPageCommand) (domain.ContentPage, error)
	DeletePage(ctx context.Context, pageID string) error
	PageImageUploadURL(ctx context.Context, cmd PageImageUploadCommand) (SignedUpload, error)
}

// OrderPlacedMessage is the payload published when checkout completes.
type OrderPlacedMessage struct {
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	UserID        string    `json:"userId"`
	Email         string    `json:"email"`
	PaymentMethod string    `json:"paymentMethod"`
	Total         int64     `json:"total"`
	Currency      string    `json:"currency"`
	PlacedAt      time.Time `json:"placedAt"`
}

// LeadCapturedMessage is the payload published when a lead is captured.
type LeadCapturedMessage struct {
	LeadID    string    `json:"leadId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Category  string    `json:"category,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderEventPublisher publishes order lifecycle events.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, message OrderPlacedMessage) (string, error)
}

// LeadEventPublisher publishes lead capture events.
type LeadEventPublisher interface {
	PublishLeadCaptured(ctx context.Context, message LeadCapturedMessage) (string, error)
}
