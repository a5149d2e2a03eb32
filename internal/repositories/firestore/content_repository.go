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

const contentCollection = "pages"

type contentDocument struct {
	Slug        string     `firestore:"slug"`
	Title       string     `firestore:"title"`
	Body        string     `firestore:"body"`
	Excerpt     string     `firestore:"excerpt,omitempty"`
	HeroImage   string     `firestore:"heroImage,omitempty"`
	Published   bool       `firestore:"published"`
	PublishedAt *time.Time `firestore:"publishedAt,omitempty"`
	UpdatedBy   string     `firestore:"updatedBy,omitempty"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
}

// ContentRepository persists editorial pages.
type ContentRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[contentDocument]
}

// NewContentRepository constructs a Firestore-backed content repository.
func NewContentRepository(provider *pfirestore.Provider) (*ContentRepository, error) {
	if provider == nil {
		return nil, errors.New("content repository requires firestore provider")
	}
	return &ContentRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[contentDocument](provider, contentCollection),
	}, nil
}

// Insert creates a page, rejecting slugs that are already taken.
func (r *ContentRepository) Insert(ctx context.Context, page domain.ContentPage) (domain.ContentPage, error) {
	if r == nil || r.base == nil {
		return domain.ContentPage{}, errors.New("content repository not initialised")
	}
	id, err := requireID("content", page.ID)
	if err != nil {
		return domain.ContentPage{}, err
	}

	if _, err := r.FindBySlug(ctx, page.Slug); err == nil {
		return domain.ContentPage{}, pfirestore.WrapError("pages.insert", status.Error(codes.AlreadyExists, fmt.Sprintf("slug %q already in use", page.Slug)))
	} else {
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
			return domain.ContentPage{}, err
		}
	}

	doc := contentToDocument(page)
	result, err := r.base.Create(ctx, id, doc)
	if err != nil {
		return domain.ContentPage{}, err
	}
	saved := contentFromDocument(id, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// Update overwrites the page document. Slug changes are checked against the
// other pages first.
func (r *ContentRepository) Update(ctx context.Context, page domain.ContentPage) (domain.ContentPage, error) {
	if r == nil || r.base == nil {
		return domain.ContentPage{}, errors.New("content repository not initialised")
	}
	id, err := requireID("content", page.ID)
	if err != nil {
		return domain.ContentPage{}, err
	}

	if existing, err := r.FindBySlug(ctx, page.Slug); err == nil && existing.ID != id {
		return domain.ContentPage{}, pfirestore.WrapError("pages.update", status.Error(codes.AlreadyExists, fmt.Sprintf("slug %q already in use", page.Slug)))
	} else if err != nil {
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
			return domain.ContentPage{}, err
		}
	}

	doc := contentToDocument(page)
	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.ContentPage{}, err
	}
	saved := contentFromDocument(id, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// Delete removes the page document.
func (r *ContentRepository) Delete(ctx context.Context, pageID string) error {
	if r == nil || r.base == nil {
		return errors.New("content repository not initialised")
	}
	id, err := requireID("content", pageID)
	if err != nil {
		return err
	}
	return r.base.Delete(ctx, id)
}

// FindByID loads a single page.
func (r *ContentRepository) FindByID(ctx context.Context, pageID string) (domain.ContentPage, error) {
	if r == nil || r.base == nil {
		return domain.ContentPage{}, errors.New("content repository not initialised")
	}
	id, err := requireID("content", pageID)
	if err != nil {
		return domain.ContentPage{}, err
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.ContentPage{}, err
	}
	return contentFromDocument(doc.ID, doc.Data), nil
}

// FindBySlug locates a page by its storefront slug.
func (r *ContentRepository) FindBySlug(ctx context.Context, slug string) (domain.ContentPage, error) {
	if r == nil || r.base == nil {
		return domain.ContentPage{}, errors.New("content repository not initialised")
	}
	trimmed := strings.ToLower(strings.TrimSpace(slug))
	if trimmed == "" {
		return domain.ContentPage{}, errors.New("content repository: slug is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("slug", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.ContentPage{}, err
	}
	if len(docs) == 0 {
		return domain.ContentPage{}, pfirestore.WrapError("pages.findBySlug", status.Error(codes.NotFound, fmt.Sprintf("page %s not found", trimmed)))
	}
	return contentFromDocument(docs[0].ID, docs[0].Data), nil
}

// List returns pages, optionally restricted to published ones, newest first.
func (r *ContentRepository) List(ctx context.Context, filter repositories.ContentListFilter) (domain.CursorPage[domain.ContentPage], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.ContentPage]{}, errors.New("content repository not initialised")
	}
	size, startAfter, err := pageWindow(filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.ContentPage]{}, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.PublishedOnly {
			query = query.Where("published", "==", true)
		}
		query = byIDDescending(query)
		if startAfter != "" {
			query = query.StartAfter(startAfter)
		}
		return query.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.ContentPage]{}, err
	}

	page := domain.CursorPage[domain.ContentPage]{Items: make([]domain.ContentPage, 0, len(docs))}
	for i, doc := range docs {
		if i == size {
			token, err := nextToken(docs[size-1].ID)
			if err != nil {
				return domain.CursorPage[domain.ContentPage]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, contentFromDocument(doc.ID, doc.Data))
	}
	return page, nil
}

func contentToDocument(page domain.ContentPage) contentDocument {
	now := time.Now().UTC()
	createdAt := page.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	doc := contentDocument{
		Slug:      strings.ToLower(strings.TrimSpace(page.Slug)),
		Title:     strings.TrimSpace(page.Title),
		Body:      page.Body,
		Excerpt:   strings.TrimSpace(page.Excerpt),
		HeroImage: strings.TrimSpace(page.HeroImage),
		Published: page.Published,
		UpdatedBy: strings.TrimSpace(page.UpdatedBy),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if page.PublishedAt != nil {
		at := page.PublishedAt.UTC()
		doc.PublishedAt = &at
	}
	return doc
}

func contentFromDocument(id string, doc contentDocument) domain.ContentPage {
	return domain.ContentPage{
		ID:          id,
		Slug:        doc.Slug,
		Title:       doc.Title,
		Body:        doc.Body,
		Excerpt:     doc.Excerpt,
		HeroImage:   doc.HeroImage,
		Published:   doc.Published,
		PublishedAt: doc.PublishedAt,
		UpdatedBy:   doc.UpdatedBy,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

var _ repositories.ContentRepository = (*ContentRepository)(nil)
