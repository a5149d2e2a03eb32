package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results with the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ProductCategory identifies a configurable product family.
type ProductCategory string

const (
	CategoryGarage   ProductCategory = "garage"
	CategoryGazebo   ProductCategory = "gazebo"
	CategoryPorch    ProductCategory = "porch"
	CategoryBeams    ProductCategory = "beams"
	CategoryFlooring ProductCategory = "flooring"
)

// Categories lists every product category in display order.
func Categories() []ProductCategory {
	return []ProductCategory{CategoryGarage, CategoryGazebo, CategoryPorch, CategoryBeams, CategoryFlooring}
}

// ValidCategory reports whether the category is one of the known product families.
func ValidCategory(category ProductCategory) bool {
	switch category {
	case CategoryGarage, CategoryGazebo, CategoryPorch, CategoryBeams, CategoryFlooring:
		return true
	default:
		return false
	}
}

// OptionKind enumerates the supported configurator control types.
type OptionKind string

const (
	OptionKindSelect     OptionKind = "select"
	OptionKindSlider     OptionKind = "slider"
	OptionKindCheckbox   OptionKind = "checkbox"
	OptionKindDimensions OptionKind = "dimensions"
	OptionKindArea       OptionKind = "area"
)

// OptionChoice is a single selectable value for a select option.
type OptionChoice struct {
	ID    string
	Label string
}

// Option describes one configurable attribute of a product category.
type Option struct {
	ID       string
	Label    string
	Kind     OptionKind
	Required bool

	// Select options.
	Choices []OptionChoice

	// Slider options.
	Min  int64
	Max  int64
	Step int64

	// Dimensions and area options (millimetres / square metres).
	MinArea float64
	MaxArea float64
}

// Dimensions carries the measurements for dimension-kind options.
type Dimensions struct {
	LengthMM int64 `json:"lengthMm"`
	WidthMM  int64 `json:"widthMm"`
	HeightMM int64 `json:"heightMm,omitempty"`
}

// Configuration holds the chosen value per option ID. Select options store
// the choice ID, sliders an integer, checkboxes a bool, dimensions a
// Dimensions value, and area options a float in square metres.
type Configuration map[string]any

// Clone returns a shallow copy of the configuration.
func (c Configuration) Clone() Configuration {
	if c == nil {
		return nil
	}
	out := make(Configuration, len(c))
	for key, value := range c {
		out[key] = value
	}
	return out
}

// StringValue fetches the value for key as a string.
func (c Configuration) StringValue(key string) (string, bool) {
	raw, ok := c[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}

// IntValue fetches the value for key as an int64, accepting the numeric
// representations produced by JSON decoding and Firestore.
func (c Configuration) IntValue(key string) (int64, bool) {
	raw, ok := c[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
		return 0, false
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// FloatValue fetches the value for key as a float64.
func (c Configuration) FloatValue(key string) (float64, bool) {
	raw, ok := c[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// BoolValue fetches the value for key as a bool.
func (c Configuration) BoolValue(key string) (bool, bool) {
	raw, ok := c[key]
	if !ok {
		return false, false
	}
	value, ok := raw.(bool)
	return value, ok
}

// Fingerprint returns a stable digest of the configuration used to detect
// identical basket lines. json.Marshal sorts map keys, making the digest
// independent of insertion order.
func (c Configuration) Fingerprint() string {
	data, err := json.Marshal(map[string]any(c))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// PriceLine is one term of a quote breakdown.
type PriceLine struct {
	Code        string
	Description string
	Amount      Money
}

// Quote is the result of pricing a configuration.
type Quote struct {
	Category    ProductCategory
	UnitPrice   Money
	Description string
	Breakdown   []PriceLine
}

// BasketItem is a single priced line in a customer's basket. UnitPrice is
// frozen at the time the line is added.
type BasketItem struct {
	ID            string
	Category      ProductCategory
	Description   string
	Configuration Configuration
	Fingerprint   string
	UnitPrice     Money
	Quantity      int64
	AddedAt       time.Time
	UpdatedAt     time.Time
}

// LineTotal returns quantity times the frozen unit price.
func (i BasketItem) LineTotal() Money {
	return i.UnitPrice.MulInt(i.Quantity)
}

// BasketTotals aggregates the monetary summary of a basket.
type BasketTotals struct {
	Subtotal Money
	VAT      Money
	Shipping Money
	Total    Money
}

// Basket is the persisted basket aggregate for one customer.
type Basket struct {
	OwnerID   string
	Items     []BasketItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShippingTier maps a subtotal threshold to a delivery charge. Tiers are
// evaluated in order; the first tier whose threshold the subtotal meets wins.
type ShippingTier struct {
	Threshold Money
	Cost      Money
}

// DeliverySettings holds the tax and delivery charge configuration.
type DeliverySettings struct {
	VATRateBps    int64
	ShippingTiers []ShippingTier
	UpdatedAt     time.Time
	UpdatedBy     string
}

// DefaultDeliverySettings returns the settings applied before an
// administrator has saved any overrides.
func DefaultDeliverySettings() DeliverySettings {
	return DeliverySettings{
		VATRateBps: 2000,
		ShippingTiers: []ShippingTier{
			{Threshold: 100000, Cost: 0},
			{Threshold: 50000, Cost: 2500},
			{Threshold: 0, Cost: 5000},
		},
	}
}

// PaymentMethod is the closed set of supported capture mechanisms.
type PaymentMethod string

const (
	PaymentMethodInvoice PaymentMethod = "invoice"
	PaymentMethodCard    PaymentMethod = "card"
)

// ValidPaymentMethod reports whether the method is supported.
func ValidPaymentMethod(method PaymentMethod) bool {
	return method == PaymentMethodInvoice || method == PaymentMethodCard
}

// PaymentStatus tracks the capture state of an order's payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderStatus models the fulfilment lifecycle.
type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusConfirmed    OrderStatus = "confirmed"
	OrderStatusInProduction OrderStatus = "in_production"
	OrderStatusDispatched   OrderStatus = "dispatched"
	OrderStatusCompleted    OrderStatus = "completed"
	OrderStatusCancelled    OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:      {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:    {OrderStatusInProduction, OrderStatusCancelled},
	OrderStatusInProduction: {OrderStatusDispatched},
	OrderStatusDispatched:   {OrderStatusCompleted},
}

// ValidOrderStatus reports whether the status is part of the lifecycle.
func ValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusInProduction,
		OrderStatusDispatched, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether an order may move from one status to another.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// StatusChange records one step of the order status history.
type StatusChange struct {
	From      OrderStatus
	To        OrderStatus
	ChangedBy string
	ChangedAt time.Time
	Note      string
}

// Order is the immutable record produced by checkout. Line items are frozen
// copies of the basket lines at the time the order was placed.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Email           string
	Items           []BasketItem
	Totals          BasketTotals
	Status          OrderStatus
	StatusHistory   []StatusChange
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	PaymentRef      string
	BillingAddress  Address
	ShippingAddress Address
	Notes           string
	PlacedAt        time.Time
	UpdatedAt       time.Time
}

// AddressType restricts what an address may be used for.
type AddressType string

const (
	AddressTypeBilling  AddressType = "billing"
	AddressTypeShipping AddressType = "shipping"
	AddressTypeBoth     AddressType = "both"
)

// ValidAddressType reports whether the type is one of the known values.
func ValidAddressType(t AddressType) bool {
	return t == AddressTypeBilling || t == AddressTypeShipping || t == AddressTypeBoth
}

// CoversBilling reports whether the address may serve as a billing address.
func (t AddressType) CoversBilling() bool {
	return t == AddressTypeBilling || t == AddressTypeBoth
}

// CoversShipping reports whether the address may serve as a shipping address.
func (t AddressType) CoversShipping() bool {
	return t == AddressTypeShipping || t == AddressTypeBoth
}

// Address is a postal address attached to a user or an order.
type Address struct {
	ID        string
	OwnerID   string
	Label     string
	Type      AddressType
	Name      string
	Line1     string
	Line2     string
	City      string
	County    string
	Postcode  string
	Country   string
	Phone     string
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRole is the authorisation level attached to an account.
type UserRole string

const (
	RoleGuest      UserRole = "guest"
	RoleCustomer   UserRole = "customer"
	RoleManager    UserRole = "manager"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "super-admin"
)

// ValidUserRole reports whether the role is assignable to an account.
// Guest is an implicit role for unauthenticated visitors and is never stored.
func ValidUserRole(role UserRole) bool {
	switch role {
	case RoleCustomer, RoleManager, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// UserAccount is the profile record stored per Firebase user.
type UserAccount struct {
	ID            string
	Email         string
	DisplayName   string
	Phone         string
	Role          UserRole
	SystemAccount bool
	Disabled      bool
	Preferences   NotificationPreferences
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NotificationPreferences toggles outbound customer communications.
type NotificationPreferences struct {
	OrderUpdates bool
	Marketing    bool
}

// LeadStatus models the CRM pipeline for sales enquiries.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusProposal  LeadStatus = "proposal"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// ValidLeadStatus reports whether the status is part of the pipeline.
func ValidLeadStatus(status LeadStatus) bool {
	switch status {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified,
		LeadStatusProposal, LeadStatusConverted, LeadStatusLost:
		return true
	default:
		return false
	}
}

// Lead is a sales enquiry captured from the public contact form.
type Lead struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Message   string
	Category  ProductCategory
	Source    string
	Status    LeadStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentPage is an editorial page rendered by the storefront.
type ContentPage struct {
	ID          string
	Slug        string
	Title       string
	Body        string
	Excerpt     string
	HeroImage   string
	Published   bool
	PublishedAt *time.Time
	UpdatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
