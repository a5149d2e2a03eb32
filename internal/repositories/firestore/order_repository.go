package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/timberline/api/internal/domain"
	pfirestore "github.com/timberline/api/internal/platform/firestore"
	"github.com/timberline/api/internal/repositories"
)

const (
	orderCollection   = "orders"
	counterCollection = "counters"
	orderCounterID    = "orders"
	orderNumberBase   = 10000
)

type orderStatusChangeDocument struct {
	From      string    `firestore:"from"`
	To        string    `firestore:"to"`
	ChangedBy string    `firestore:"changedBy"`
	ChangedAt time.Time `firestore:"changedAt"`
	Note      string    `firestore:"note,omitempty"`
}

type orderAddressDocument struct {
	Label    string `firestore:"label,omitempty"`
	Name     string `firestore:"name"`
	Line1    string `firestore:"line1"`
	Line2    string `firestore:"line2,omitempty"`
	City     string `firestore:"city"`
	County   string `firestore:"county,omitempty"`
	Postcode string `firestore:"postcode"`
	Country  string `firestore:"country"`
	Phone    string `firestore:"phone,omitempty"`
}

type orderTotalsDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	VAT      int64 `firestore:"vat"`
	Shipping int64 `firestore:"shipping"`
	Total    int64 `firestore:"total"`
}

type orderDocument struct {
	Number          string                      `firestore:"number"`
	UserID          string                      `firestore:"userId"`
	Email           string                      `firestore:"email"`
	Items           []basketItemDocument        `firestore:"items"`
	Totals          orderTotalsDocument         `firestore:"totals"`
	Status          string                      `firestore:"status"`
	StatusHistory   []orderStatusChangeDocument `firestore:"statusHistory,omitempty"`
	PaymentMethod   string                      `firestore:"paymentMethod"`
	PaymentStatus   string                      `firestore:"paymentStatus"`
	PaymentRef      string                      `firestore:"paymentRef,omitempty"`
	BillingAddress  orderAddressDocument        `firestore:"billingAddress"`
	ShippingAddress orderAddressDocument        `firestore:"shippingAddress"`
	Notes           string                      `firestore:"notes,omitempty"`
	PlacedAt        time.Time                   `firestore:"placedAt"`
	UpdatedAt       time.Time                   `firestore:"updatedAt"`
}

type orderCounterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// OrderRepository persists orders and allocates sequential order numbers
// through a transactional counter document.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
	counters *pfirestore.BaseRepository[orderCounterDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[orderDocument](provider, orderCollection),
		counters: pfirestore.NewBaseRepository[orderCounterDocument](provider, counterCollection),
	}, nil
}

// Insert creates the order document, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id, err := requireID("order", order.ID)
	if err != nil {
		return domain.Order{}, err
	}

	doc := orderToDocument(order)
	result, err := r.base.Create(ctx, id, doc)
	if err != nil {
		return domain.Order{}, err
	}
	saved := orderFromDocument(id, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id, err := requireID("order", orderID)
	if err != nil {
		return domain.Order{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc.ID, doc.Data), nil
}

// FindByNumber locates an order by its human-facing number.
func (r *OrderRepository) FindByNumber(ctx context.Context, number string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return domain.Order{}, errors.New("order repository: order number is required")
	}
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("number", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.findByNumber", status.Error(codes.NotFound, fmt.Sprintf("order %s not found", trimmed)))
	}
	return orderFromDocument(docs[0].ID, docs[0].Data), nil
}

// FindByPaymentRef locates the order carrying the given payment reference.
func (r *OrderRepository) FindByPaymentRef(ctx context.Context, reference string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return domain.Order{}, errors.New("order repository: payment reference is required")
	}
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("paymentRef", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.findByPaymentRef", status.Error(codes.NotFound, fmt.Sprintf("order with payment ref %s not found", trimmed)))
	}
	return orderFromDocument(docs[0].ID, docs[0].Data), nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	return r.list(ctx, repositories.OrderListFilter{UserID: userID, Pagination: pager})
}

// List returns orders matching the admin filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return r.list(ctx, filter)
}

func (r *OrderRepository) list(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	size, startAfter, err := pageWindow(filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if uid := strings.TrimSpace(filter.UserID); uid != "" {
			query = query.Where("userId", "==", uid)
		}
		if filter.Status != "" {
			query = query.Where("status", "==", string(filter.Status))
		}
		if filter.PaymentStatus != "" {
			query = query.Where("paymentStatus", "==", string(filter.PaymentStatus))
		}
		if filter.PlacedAfter != nil {
			query = query.Where("placedAt", ">=", filter.PlacedAfter.UTC())
		}
		if filter.PlacedBefore != nil {
			query = query.Where("placedAt", "<", filter.PlacedBefore.UTC())
		}
		query = byIDDescending(query)
		if startAfter != "" {
			query = query.StartAfter(startAfter)
		}
		return query.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, len(docs))}
	for i, doc := range docs {
		if i == size {
			token, err := nextToken(docs[size-1].ID)
			if err != nil {
				return domain.CursorPage[domain.Order]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, orderFromDocument(doc.ID, doc.Data))
	}
	return page, nil
}

// UpdateStatus appends the status change and moves the order to its new
// status inside a transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, change domain.StatusChange) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id, err := requireID("order", orderID)
	if err != nil {
		return domain.Order{}, err
	}

	var updated domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", id, err)
		}
		if doc.Status != string(change.From) {
			return status.Error(codes.FailedPrecondition, fmt.Sprintf("order %s is %s, not %s", id, doc.Status, change.From))
		}

		changedAt := change.ChangedAt.UTC()
		if changedAt.IsZero() {
			changedAt = time.Now().UTC()
		}
		doc.Status = string(change.To)
		doc.StatusHistory = append(doc.StatusHistory, orderStatusChangeDocument{
			From:      string(change.From),
			To:        string(change.To),
			ChangedBy: change.ChangedBy,
			ChangedAt: changedAt,
			Note:      strings.TrimSpace(change.Note),
		})
		doc.UpdatedAt = changedAt

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = orderFromDocument(id, doc)
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.updateStatus", err)
	}
	return updated, nil
}

// UpdatePayment records the payment state reported by the provider.
func (r *OrderRepository) UpdatePayment(ctx context.Context, orderID string, paymentStatus domain.PaymentStatus, reference string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id, err := requireID("order", orderID)
	if err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	updates := []firestore.Update{
		{Path: "paymentStatus", Value: string(paymentStatus)},
		{Path: "updatedAt", Value: now},
	}
	if trimmed := strings.TrimSpace(reference); trimmed != "" {
		updates = append(updates, firestore.Update{Path: "paymentRef", Value: trimmed})
	}
	if _, err := r.base.Update(ctx, id, updates); err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, id)
}

// NextOrderNumber atomically increments the order counter and formats the
// next sequential order number.
func (r *OrderRepository) NextOrderNumber(ctx context.Context) (string, error) {
	if r == nil || r.provider == nil {
		return "", errors.New("order repository not initialised")
	}

	now := time.Now().UTC()
	var next int64
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.counters.DocumentRef(ctx, orderCounterID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
			doc := orderCounterDocument{CurrentValue: 1, UpdatedAt: now}
			if err := tx.Create(ref, doc); err != nil {
				return err
			}
			next = doc.CurrentValue
			return nil
		case codes.OK:
		default:
			return err
		}

		var doc orderCounterDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore counters decode %s: %w", orderCounterID, err)
		}
		doc.CurrentValue++
		doc.UpdatedAt = now
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		next = doc.CurrentValue
		return nil
	})
	if err != nil {
		return "", pfirestore.WrapError("counters.next", err)
	}
	return FormatOrderNumber(next), nil
}

// FormatOrderNumber renders a counter value as a customer-facing order number.
func FormatOrderNumber(value int64) string {
	return fmt.Sprintf("TL-%d", orderNumberBase+value)
}

func orderToDocument(order domain.Order) orderDocument {
	now := time.Now().UTC()
	placedAt := order.PlacedAt.UTC()
	if placedAt.IsZero() {
		placedAt = now
	}

	doc := orderDocument{
		Number:          strings.TrimSpace(order.Number),
		UserID:          strings.TrimSpace(order.UserID),
		Email:           strings.TrimSpace(order.Email),
		Items:           make([]basketItemDocument, 0, len(order.Items)),
		Totals:          orderTotalsDocument{Subtotal: order.Totals.Subtotal.Pence(), VAT: order.Totals.VAT.Pence(), Shipping: order.Totals.Shipping.Pence(), Total: order.Totals.Total.Pence()},
		Status:          string(order.Status),
		PaymentMethod:   string(order.PaymentMethod),
		PaymentStatus:   string(order.PaymentStatus),
		PaymentRef:      strings.TrimSpace(order.PaymentRef),
		BillingAddress:  addressToOrderDocument(order.BillingAddress),
		ShippingAddress: addressToOrderDocument(order.ShippingAddress),
		Notes:           strings.TrimSpace(order.Notes),
		PlacedAt:        placedAt,
		UpdatedAt:       now,
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, basketItemDocument{
			ID:            item.ID,
			Category:      string(item.Category),
			Description:   item.Description,
			Configuration: map[string]any(item.Configuration),
			Fingerprint:   item.Fingerprint,
			UnitPrice:     item.UnitPrice.Pence(),
			Quantity:      item.Quantity,
			AddedAt:       item.AddedAt.UTC(),
			UpdatedAt:     item.UpdatedAt.UTC(),
		})
	}
	for _, change := range order.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, orderStatusChangeDocument{
			From:      string(change.From),
			To:        string(change.To),
			ChangedBy: change.ChangedBy,
			ChangedAt: change.ChangedAt.UTC(),
			Note:      change.Note,
		})
	}
	return doc
}

func orderFromDocument(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:     id,
		Number: doc.Number,
		UserID: doc.UserID,
		Email:  doc.Email,
		Items:  make([]domain.BasketItem, 0, len(doc.Items)),
		Totals: domain.BasketTotals{
			Subtotal: domain.Money(doc.Totals.Subtotal),
			VAT:      domain.Money(doc.Totals.VAT),
			Shipping: domain.Money(doc.Totals.Shipping),
			Total:    domain.Money(doc.Totals.Total),
		},
		Status:          domain.OrderStatus(doc.Status),
		PaymentMethod:   domain.PaymentMethod(doc.PaymentMethod),
		PaymentStatus:   domain.PaymentStatus(doc.PaymentStatus),
		PaymentRef:      doc.PaymentRef,
		BillingAddress:  orderAddressToDomain(doc.BillingAddress),
		ShippingAddress: orderAddressToDomain(doc.ShippingAddress),
		Notes:           doc.Notes,
		PlacedAt:        doc.PlacedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.BasketItem{
			ID:            item.ID,
			Category:      domain.ProductCategory(item.Category),
			Description:   item.Description,
			Configuration: domain.Configuration(item.Configuration),
			Fingerprint:   item.Fingerprint,
			UnitPrice:     domain.Money(item.UnitPrice),
			Quantity:      item.Quantity,
			AddedAt:       item.AddedAt,
			UpdatedAt:     item.UpdatedAt,
		})
	}
	for _, change := range doc.StatusHistory {
		order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
			From:      domain.OrderStatus(change.From),
			To:        domain.OrderStatus(change.To),
			ChangedBy: change.ChangedBy,
			ChangedAt: change.ChangedAt,
			Note:      change.Note,
		})
	}
	return order
}

func addressToOrderDocument(addr domain.Address) orderAddressDocument {
	return orderAddressDocument{
		Label:    strings.TrimSpace(addr.Label),
		Name:     strings.TrimSpace(addr.Name),
		Line1:    strings.TrimSpace(addr.Line1),
		Line2:    strings.TrimSpace(addr.Line2),
		City:     strings.TrimSpace(addr.City),
		County:   strings.TrimSpace(addr.County),
		Postcode: strings.TrimSpace(addr.Postcode),
		Country:  strings.TrimSpace(addr.Country),
		Phone:    strings.TrimSpace(addr.Phone),
	}
}

func orderAddressToDomain(doc orderAddressDocument) domain.Address {
	return domain.Address{
		Label:    doc.Label,
		Name:     doc.Name,
		Line1:    doc.Line1,
		Line2:    doc.Line2,
		City:     doc.City,
		County:   doc.County,
		Postcode: doc.Postcode,
		Country:  doc.Country,
		Phone:    doc.Phone,
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
