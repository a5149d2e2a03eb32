package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/timberline/api/internal/domain"
	pfirestore "github.com/timberline/api/internal/platform/firestore"
	"github.com/timberline/api/internal/repositories"
)

const leadCollection = "leads"

type leadDocument struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Phone     string    `firestore:"phone,omitempty"`
	Message   string    `firestore:"message"`
	Category  string    `firestore:"category,omitempty"`
	Source    string    `firestore:"source,omitempty"`
	Status    string    `firestore:"status"`
	Notes     string    `firestore:"notes,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// LeadRepository persists sales enquiries in Firestore.
type LeadRepository struct {
	base *pfirestore.BaseRepository[leadDocument]
}

// NewLeadRepository constructs a Firestore-backed lead repository.
func NewLeadRepository(provider *pfirestore.Provider) (*LeadRepository, error) {
	if provider == nil {
		return nil, errors.New("lead repository requires firestore provider")
	}
	return &LeadRepository{
		base: pfirestore.NewBaseRepository[leadDocument](provider, leadCollection),
	}, nil
}

// Insert creates the lead document.
func (r *LeadRepository) Insert(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	if r == nil || r.base == nil {
		return domain.Lead{}, errors.New("lead repository not initialised")
	}
	id, err := requireID("lead", lead.ID)
	if err != nil {
		return domain.Lead{}, err
	}

	doc := leadToDocument(lead)
	result, err := r.base.Create(ctx, id, doc)
	if err != nil {
		return domain.Lead{}, err
	}
	saved := leadFromDocument(id, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// FindByID loads a single lead.
func (r *LeadRepository) FindByID(ctx context.Context, leadID string) (domain.Lead, error) {
	if r == nil || r.base == nil {
		return domain.Lead{}, errors.New("lead repository not initialised")
	}
	id, err := requireID("lead", leadID)
	if err != nil {
		return domain.Lead{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	return leadFromDocument(doc.ID, doc.Data), nil
}

// List returns leads matching the filter, newest first.
func (r *LeadRepository) List(ctx context.Context, filter repositories.LeadListFilter) (domain.CursorPage[domain.Lead], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Lead]{}, errors.New("lead repository not initialised")
	}
	size, startAfter, err := pageWindow(filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.Lead]{}, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Status != "" {
			query = query.Where("status", "==", string(filter.Status))
		}
		if filter.Category != "" {
			query = query.Where("category", "==", string(filter.Category))
		}
		query = byIDDescending(query)
		if startAfter != "" {
			query = query.StartAfter(startAfter)
		}
		return query.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Lead]{}, err
	}

	page := domain.CursorPage[domain.Lead]{Items: make([]domain.Lead, 0, len(docs))}
	for i, doc := range docs {
		if i == size {
			token, err := nextToken(docs[size-1].ID)
			if err != nil {
				return domain.CursorPage[domain.Lead]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, leadFromDocument(doc.ID, doc.Data))
	}
	return page, nil
}

// Update overwrites the lead document.
func (r *LeadRepository) Update(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	if r == nil || r.base == nil {
		return domain.Lead{}, errors.New("lead repository not initialised")
	}
	id, err := requireID("lead", lead.ID)
	if err != nil {
		return domain.Lead{}, err
	}

	doc := leadToDocument(lead)
	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.Lead{}, err
	}
	saved := leadFromDocument(id, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

func leadToDocument(lead domain.Lead) leadDocument {
	now := time.Now().UTC()
	createdAt := lead.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	return leadDocument{
		Name:      strings.TrimSpace(lead.Name),
		Email:     strings.TrimSpace(lead.Email),
		Phone:     strings.TrimSpace(lead.Phone),
		Message:   strings.TrimSpace(lead.Message),
		Category:  string(lead.Category),
		Source:    strings.TrimSpace(lead.Source),
		Status:    string(lead.Status),
		Notes:     strings.TrimSpace(lead.Notes),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
}

func leadFromDocument(id string, doc leadDocument) domain.Lead {
	return domain.Lead{
		ID:        id,
		Name:      doc.Name,
		Email:     doc.Email,
		Phone:     doc.Phone,
		Message:   doc.Message,
		Category:  domain.ProductCategory(doc.Category),
		Source:    doc.Source,
		Status:    domain.LeadStatus(doc.Status),
		Notes:     doc.Notes,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

var _ repositories.LeadRepository = (*LeadRepository)(nil)
