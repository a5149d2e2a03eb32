package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/storage"
	"github.com/timberline/api/internal/repositories"
)

const maxPageBodyLength = 200000

// ErrContentInvalidInput indicates the caller supplied invalid input.
var ErrContentInvalidInput = errors.New("content service: invalid input")

// ErrContentNotFound indicates the requested page does not exist.
var ErrContentNotFound = errors.New("content service: not found")

// ErrContentConflict indicates the slug is already in use.
var ErrContentConflict = errors.New("content service: conflict")

// ErrContentUnavailable indicates the content service cannot fulfil the request.
var ErrContentUnavailable = errors.New("content service: unavailable")

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var allowedImageContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

type signedURLIssuer interface {
	SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error)
}

// ContentServiceDeps wires the repository and media storage dependencies.
type ContentServiceDeps struct {
	Repository  repositories.ContentRepository
	Storage     signedURLIssuer
	MediaBucket string
	UploadTTL   time.Duration
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type contentService struct {
	repo        repositories.ContentRepository
	storage     signedURLIssuer
	mediaBucket string
	uploadTTL   time.Duration
	bodyPolicy  *bluemonday.Policy
	textPolicy  *bluemonday.Policy
	now         func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

// NewContentService constructs a ContentService enforcing dependency validation.
func NewContentService(deps ContentServiceDeps) (ContentService, error) {
	if deps.Repository == nil {
		return nil, errors.New("content service: repository is required")
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
	uploadTTL := deps.UploadTTL
	if uploadTTL <= 0 {
		uploadTTL = 15 * time.Minute
	}

	return &contentService{
		repo:        deps.Repository,
		storage:     deps.Storage,
		mediaBucket: strings.TrimSpace(deps.MediaBucket),
		uploadTTL:   uploadTTL,
		bodyPolicy:  newPageBodyPolicy(),
		textPolicy:  bluemonday.StrictPolicy(),
		now:         func() time.Time { return clock().UTC() },
		newID:       idGen,
		logger:      logger,
	}, nil
}

// newPageBodyPolicy permits the formatting markup editors produce while
// stripping scripts and event handlers.
func newPageBodyPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "figcaption")
	policy.AllowAttrs("class").OnElements("figure", "figcaption", "p", "span")
	policy.AllowAttrs("loading").OnElements("img")
	policy.RequireNoFollowOnLinks(true)
	return policy
}

// GetPublishedPage returns a published page by slug. Draft pages stay hidden
// from the storefront.
func (s *contentService) GetPublishedPage(ctx context.Context, slug string) (domain.ContentPage, error) {
	if s == nil || s.repo == nil {
		return domain.ContentPage{}, ErrContentUnavailable
	}
	trimmed := strings.ToLower(strings.TrimSpace(slug))
	if trimmed == "" {
		return domain.ContentPage{}, ErrContentInvalidInput
	}

	page, err := s.repo.FindBySlug(ctx, trimmed)
	if err != nil {
		return domain.ContentPage{}, s.translateRepoError(err)
	}
	if !page.Published {
		return domain.ContentPage{}, ErrContentNotFound
	}
	return page, nil
}

// ListPublishedPages returns published pages for storefront navigation.
func (s *contentService) ListPublishedPages(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.ContentPage], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[domain.ContentPage]{}, ErrContentUnavailable
	}
	page, err := s.repo.List(ctx, repositories.ContentListFilter{PublishedOnly: true, Pagination: pager})
	if err != nil {
		return domain.CursorPage[domain.ContentPage]{}, s.translateRepoError(err)
	}
	return page, nil
}

// AdminGetPage loads any page including drafts.
func (s *contentService) AdminGetPage(ctx context.Context, pageID string) (domain.ContentPage, error) {
	if s == nil || s.repo == nil {
		return domain.ContentPage{}, ErrContentUnavailable
	}
	id := strings.TrimSpace(pageID)
	if id == "" {
		return domain.ContentPage{}, ErrContentInvalidInput
	}
	page, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.ContentPage{}, s.translateRepoError(err)
	}
	return page, nil
}

// AdminListPages returns every page including drafts.
func (s *contentService) AdminListPages(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.ContentPage], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[domain.ContentPage]{}, ErrContentUnavailable
	}
	page, err := s.repo.List(ctx, repositories.ContentListFilter{Pagination: pager})
	if err != nil {
		return domain.CursorPage[domain.ContentPage]{}, s.translateRepoError(err)
	}
	return page, nil
}

// CreatePage validates, sanitises, and stores a new page.
func (s *contentService) CreatePage(ctx context.Context, cmd UpsertPageCommand) (domain.ContentPage, error) {
	if s == nil || s.repo == nil {
		return domain.ContentPage{}, ErrContentUnavailable
	}
	page, err := s.pageFromCommand(cmd)
	if err != nil {
		return domain.ContentPage{}, err
	}
	page.ID = s.newID()
	page.CreatedAt = s.now()

	saved, err := s.repo.Insert(ctx, page)
	if err != nil {
		return domain.ContentPage{}, s.translateRepoError(err)
	}
	s.logger(ctx, "content.page.created", map[string]any{
		"pageId": saved.ID,
		"slug":   saved.Slug,
	})
	return saved, nil
}

// UpdatePage validates, sanitises, and overwrites an existing page.
func (s *contentService) UpdatePage(ctx context.Context, cmd UpsertPageCommand) (domain.ContentPage, error) {
	if s == nil || s.repo == nil {
		return domain.ContentPage{}, ErrContentUnavailable
	}
	id := strings.TrimSpace(cmd.PageID)
	if id == "" {
		return domain.ContentPage{}, ErrContentInvalidInput
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.ContentPage{}, s.translateRepoError(err)
	}

	page, err := s.pageFromCommand(cmd)
	if err != nil {
		return domain.ContentPage{}, err
	}
	page.ID = id
	page.CreatedAt = existing.CreatedAt
	if existing.Published && page.Published {
		page.PublishedAt = existing.PublishedAt
	}

	saved, err := s.repo.Update(ctx, page)
	if err != nil {
		return domain.ContentPage{}, s.translateRepoError(err)
	}
	return saved, nil
}

// DeletePage removes the page.
func (s *contentService) DeletePage(ctx context.Context, pageID string) error {
	if s == nil || s.repo == nil {
		return ErrContentUnavailable
	}
	id := strings.TrimSpace(pageID)
	if id == "" {
		return ErrContentInvalidInput
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

// PageImageUploadURL issues a signed PUT URL for a page image.
func (s *contentService) PageImageUploadURL(ctx context.Context, cmd PageImageUploadCommand) (SignedUpload, error) {
	if s == nil || s.storage == nil || s.mediaBucket == "" {
		return SignedUpload{}, ErrContentUnavailable
	}

	objectPath, err := storage.BuildObjectPath(storage.PurposePageImage, storage.PathParams{
		PageSlug: strings.ToLower(strings.TrimSpace(cmd.PageSlug)),
		FileName: strings.TrimSpace(cmd.FileName),
	})
	if err != nil {
		return SignedUpload{}, ErrContentInvalidInput
	}

	result, err := s.storage.SignedURL(ctx, s.mediaBucket, objectPath, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:              "PUT",
			ContentType:         strings.TrimSpace(cmd.ContentType),
			AllowedContentTypes: allowedImageContentTypes,
			ExpiresIn:           s.uploadTTL,
		},
	})
	if err != nil {
		return SignedUpload{}, ErrContentUnavailable
	}
	return SignedUpload{
		URL:        result.URL,
		ObjectPath: objectPath,
		ExpiresAt:  result.ExpiresAt,
	}, nil
}

func (s *contentService) pageFromCommand(cmd UpsertPageCommand) (domain.ContentPage, error) {
	validationErr := &ValidationError{}

	slug := strings.ToLower(strings.TrimSpace(cmd.Slug))
	if slug == "" {
		validationErr.Add("slug", "slug is required")
	} else if !slugPattern.MatchString(slug) {
		validationErr.Add("slug", "slug may contain lowercase letters, digits, and hyphens")
	}

	title := strings.TrimSpace(s.textPolicy.Sanitize(cmd.Title))
	if title == "" {
		validationErr.Add("title", "title is required")
	}

	body := s.bodyPolicy.Sanitize(cmd.Body)
	if strings.TrimSpace(body) == "" {
		validationErr.Add("body", "body is required")
	} else if len(body) > maxPageBodyLength {
		validationErr.Add("body", "body is too long")
	}

	if validationErr.HasViolations() {
		return domain.ContentPage{}, validationErr
	}

	page := domain.ContentPage{
		Slug:      slug,
		Title:     title,
		Body:      body,
		Excerpt:   strings.TrimSpace(s.textPolicy.Sanitize(cmd.Excerpt)),
		HeroImage: strings.TrimSpace(cmd.HeroImage),
		Published: cmd.Published,
		UpdatedBy: strings.TrimSpace(cmd.UpdatedBy),
	}
	if cmd.Published {
		now := s.now()
		page.PublishedAt = &now
	}
	return page, nil
}

func (s *contentService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrContentNotFound
		case repoErr.IsConflict():
			return ErrContentConflict
		case repoErr.IsUnavailable():
			return ErrContentUnavailable
		}
		return ErrContentUnavailable
	}
	return ErrContentUnavailable
}
