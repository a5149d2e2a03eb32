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
	"github.com/timberline/api/internal/repositories"
)

const (
	maxLeadNameLength    = 200
	maxLeadMessageLength = 5000
	maxLeadNotesLength   = 5000
)

// ErrLeadInvalidInput indicates the caller supplied invalid input.
var ErrLeadInvalidInput = errors.New("lead service: invalid input")

// ErrLeadNotFound indicates the requested lead does not exist.
var ErrLeadNotFound = errors.New("lead service: not found")

// ErrLeadConflict indicates the lead could not be updated due to concurrent modification.
var ErrLeadConflict = errors.New("lead service: conflict")

// ErrLeadUnavailable indicates the lead service cannot fulfil the request.
var ErrLeadUnavailable = errors.New("lead service: unavailable")

var leadEmailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// LeadServiceDeps wires the repository and event dependencies for lead capture.
type LeadServiceDeps struct {
	Repository  repositories.LeadRepository
	Publisher   LeadEventPublisher
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type leadService struct {
	repo      repositories.LeadRepository
	publisher LeadEventPublisher
	sanitizer *bluemonday.Policy
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewLeadService constructs a LeadService enforcing dependency validation.
func NewLeadService(deps LeadServiceDeps) (LeadService, error) {
	if deps.Repository == nil {
		return nil, errors.New("lead service: repository is required")
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

	return &leadService{
		repo:      deps.Repository,
		publisher: deps.Publisher,
		sanitizer: bluemonday.StrictPolicy(),
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// CaptureLead validates and sanitises the enquiry, persists it as a new
// lead, and publishes the capture event.
func (s *leadService) CaptureLead(ctx context.Context, cmd CaptureLeadCommand) (domain.Lead, error) {
	if s == nil || s.repo == nil {
		return domain.Lead{}, ErrLeadUnavailable
	}

	validationErr := &ValidationError{}
	name := s.sanitize(cmd.Name)
	if name == "" {
		validationErr.Add("name", "name is required")
	} else if len(name) > maxLeadNameLength {
		validationErr.Add("name", "name is too long")
	}

	email := strings.TrimSpace(cmd.Email)
	if email == "" {
		validationErr.Add("email", "email is required")
	} else if !leadEmailPattern.MatchString(email) {
		validationErr.Add("email", "email is not valid")
	}

	message := s.sanitize(cmd.Message)
	if message == "" {
		validationErr.Add("message", "message is required")
	} else if len(message) > maxLeadMessageLength {
		validationErr.Add("message", "message is too long")
	}

	if cmd.Category != "" && !domain.ValidCategory(cmd.Category) {
		validationErr.Add("category", "unknown product category")
	}
	if validationErr.HasViolations() {
		return domain.Lead{}, validationErr
	}

	now := s.now()
	lead := domain.Lead{
		ID:        s.newID(),
		Name:      name,
		Email:     strings.ToLower(email),
		Phone:     s.sanitize(cmd.Phone),
		Message:   message,
		Category:  cmd.Category,
		Source:    s.sanitize(cmd.Source),
		Status:    domain.LeadStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	saved, err := s.repo.Insert(ctx, lead)
	if err != nil {
		return domain.Lead{}, s.translateRepoError(err)
	}

	s.logger(ctx, "lead.captured", map[string]any{
		"leadId": saved.ID,
		"source": saved.Source,
	})

	if s.publisher != nil {
		if _, err := s.publisher.PublishLeadCaptured(ctx, LeadCapturedMessage{
			LeadID:    saved.ID,
			Name:      saved.Name,
			Email:     saved.Email,
			Category:  string(saved.Category),
			Source:    saved.Source,
			CreatedAt: saved.CreatedAt,
		}); err != nil {
			s.logger(ctx, "lead.event.publish_failed", map[string]any{
				"leadId": saved.ID,
				"error":  err.Error(),
			})
		}
	}
	return saved, nil
}

// GetLead loads a single lead for back-office use.
func (s *leadService) GetLead(ctx context.Context, leadID string) (domain.Lead, error) {
	if s == nil || s.repo == nil {
		return domain.Lead{}, ErrLeadUnavailable
	}
	id := strings.TrimSpace(leadID)
	if id == "" {
		return domain.Lead{}, ErrLeadInvalidInput
	}
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Lead{}, s.translateRepoError(err)
	}
	return lead, nil
}

// ListLeads returns leads matching the back-office filter.
func (s *leadService) ListLeads(ctx context.Context, filter repositories.LeadListFilter) (domain.CursorPage[domain.Lead], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[domain.Lead]{}, ErrLeadUnavailable
	}
	if filter.Status != "" && !domain.ValidLeadStatus(filter.Status) {
		return domain.CursorPage[domain.Lead]{}, ErrLeadInvalidInput
	}
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Lead]{}, s.translateRepoError(err)
	}
	return page, nil
}

// UpdateLead progresses the lead through the pipeline and records notes.
func (s *leadService) UpdateLead(ctx context.Context, cmd UpdateLeadCommand) (domain.Lead, error) {
	if s == nil || s.repo == nil {
		return domain.Lead{}, ErrLeadUnavailable
	}
	id := strings.TrimSpace(cmd.LeadID)
	if id == "" {
		return domain.Lead{}, ErrLeadInvalidInput
	}
	if cmd.Status != "" && !domain.ValidLeadStatus(cmd.Status) {
		return domain.Lead{}, ErrLeadInvalidInput
	}
	notes := s.sanitize(cmd.Notes)
	if len(notes) > maxLeadNotesLength {
		return domain.Lead{}, ErrLeadInvalidInput
	}

	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Lead{}, s.translateRepoError(err)
	}
	if cmd.Status != "" {
		lead.Status = cmd.Status
	}
	if notes != "" {
		lead.Notes = notes
	}
	lead.UpdatedAt = s.now()

	updated, err := s.repo.Update(ctx, lead)
	if err != nil {
		return domain.Lead{}, s.translateRepoError(err)
	}
	return updated, nil
}

func (s *leadService) sanitize(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *leadService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrLeadNotFound
		case repoErr.IsConflict():
			return ErrLeadConflict
		case repoErr.IsUnavailable():
			return ErrLeadUnavailable
		}
		return ErrLeadUnavailable
	}
	return ErrLeadUnavailable
}
