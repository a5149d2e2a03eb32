// Package repositories defines the persistence contracts consumed by the
// service layer, keeping storage concerns behind narrow interfaces.
package repositories

import (
	"context"
	"time"

	domain "github.com/timberline/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// BasketRepository owns basket persistence, one document per customer.
type BasketRepository interface {
	Get(ctx context.Context, ownerID string) (domain.Basket, error)
	Save(ctx context.Context, basket domain.Basket) (domain.Basket, error)
	Clear(ctx context.Context, ownerID string) error
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	UserID        string
	PlacedAfter   *time.Time
	PlacedBefore  *time.Time
	Pagination    domain.Pagination
}

// OrderRepository persists orders and allocates sequential order numbers.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, number string) (domain.Order, error)
	FindByPaymentRef(ctx context.Context, reference string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	UpdateStatus(ctx context.Context, orderID string, change domain.StatusChange) (domain.Order, error)
	UpdatePayment(ctx context.Context, orderID string, status domain.PaymentStatus, reference string) (domain.Order, error)
	NextOrderNumber(ctx context.Context) (string, error)
}

// LeadListFilter narrows admin lead listings.
type LeadListFilter struct {
	Status     domain.LeadStatus
	Category   domain.ProductCategory
	Pagination domain.Pagination
}

// LeadRepository persists sales enquiries.
type LeadRepository interface {
	Insert(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	FindByID(ctx context.Context, leadID string) (domain.Lead, error)
	List(ctx context.Context, filter LeadListFilter) (domain.CursorPage[domain.Lead], error)
	Update(ctx context.Context, lead domain.Lead) (domain.Lead, error)
}

// UserListFilter narrows admin user listings.
type UserListFilter struct {
	Role       domain.UserRole
	Search     string
	Pagination domain.Pagination
}

// RoleChange assigns a role to one user inside a batch update.
type RoleChange struct {
	UserID string
	Role   domain.UserRole
}

// UserRepository persists account profiles keyed by the Firebase UID.
type UserRepository interface {
	Upsert(ctx context.Context, account domain.UserAccount) (domain.UserAccount, error)
	FindByID(ctx context.Context, userID string) (domain.UserAccount, error)
	List(ctx context.Context, filter UserListFilter) (domain.CursorPage[domain.UserAccount], error)
	// UpdateRoles applies every role change in a single transaction. Either
	// all changes commit or none do.
	UpdateRoles(ctx context.Context, changes []RoleChange, changedBy string) ([]domain.UserAccount, error)
}

// AddressRepository persists customer addresses under the owning user.
type AddressRepository interface {
	Insert(ctx context.Context, address domain.Address) (domain.Address, error)
	Update(ctx context.Context, address domain.Address) (domain.Address, error)
	Delete(ctx context.Context, ownerID string, addressID string) error
	FindByID(ctx context.Context, ownerID string, addressID string) (domain.Address, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Address, error)
	// SetDefault marks one address as the owner's default and clears the
	// flag on every other address of the same owner in one transaction.
	SetDefault(ctx context.Context, ownerID string, addressID string) (domain.Address, error)
}

// SettingsRepository persists the singleton delivery and tax configuration.
type SettingsRepository interface {
	Get(ctx context.Context) (domain.DeliverySettings, error)
	Save(ctx context.Context, settings domain.DeliverySettings) (domain.DeliverySettings, error)
}

// ContentListFilter narrows content page listings.
type ContentListFilter struct {
	PublishedOnly bool
	Pagination    domain.Pagination
}

// ContentRepository persists editorial pages.
type ContentRepository interface {
	Insert(ctx context.Context, page domain.ContentPage) (domain.ContentPage, error)
	Update(ctx context.Context, page domain.ContentPage) (domain.ContentPage, error)
	Delete(ctx context.Context, pageID string) error
	FindByID(ctx context.Context, pageID string) (domain.ContentPage, error)
	FindBySlug(ctx context.Context, slug string) (domain.ContentPage, error)
	List(ctx context.Context, filter ContentListFilter) (domain.CursorPage[domain.ContentPage], error)
}
