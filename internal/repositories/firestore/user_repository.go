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

const userCollection = "users"

type userPreferencesDocument struct {
	OrderUpdates bool `firestore:"orderUpdates"`
	Marketing    bool `firestore:"marketing"`
}

type userDocument struct {
	Email         string                  `firestore:"email"`
	DisplayName   string                  `firestore:"displayName,omitempty"`
	Phone         string                  `firestore:"phone,omitempty"`
	Role          string                  `firestore:"role"`
	SystemAccount bool                    `firestore:"systemAccount,omitempty"`
	Disabled      bool                    `firestore:"disabled,omitempty"`
	Preferences   userPreferencesDocument `firestore:"preferences"`
	CreatedAt     time.Time               `firestore:"createdAt"`
	UpdatedAt     time.Time               `firestore:"updatedAt"`
}

// UserRepository persists account profiles keyed by the Firebase UID.
type UserRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[userDocument](provider, userCollection),
	}, nil
}

// Upsert writes the profile document, preserving the original creation time
// when one exists.
func (r *UserRepository) Upsert(ctx context.Context, account domain.UserAccount) (domain.UserAccount, error) {
	if r == nil || r.base == nil {
		return domain.UserAccount{}, errors.New("user repository not initialised")
	}
	uid, err := requireID("user", account.ID)
	if err != nil {
		return domain.UserAccount{}, err
	}

	doc := userToDocument(account)
	result, err := r.base.Set(ctx, uid, doc)
	if err != nil {
		return domain.UserAccount{}, err
	}
	saved := userFromDocument(uid, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// FindByID loads a single profile.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserAccount, error) {
	if r == nil || r.base == nil {
		return domain.UserAccount{}, errors.New("user repository not initialised")
	}
	uid, err := requireID("user", userID)
	if err != nil {
		return domain.UserAccount{}, err
	}
	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.UserAccount{}, err
	}
	return userFromDocument(doc.ID, doc.Data), nil
}

// List returns profiles matching the filter. Search matches the exact email
// when it contains an @, otherwise a displayName prefix.
func (r *UserRepository) List(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.UserAccount], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.UserAccount]{}, errors.New("user repository not initialised")
	}
	size, startAfter, err := pageWindow(filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.UserAccount]{}, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Role != "" {
			query = query.Where("role", "==", string(filter.Role))
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			if strings.Contains(search, "@") {
				query = query.Where("email", "==", strings.ToLower(search))
			} else {
				query = query.Where("displayName", ">=", search).
					Where("displayName", "<", search+"").
					OrderBy("displayName", firestore.Asc)
			}
		}
		query = byIDDescending(query)
		if startAfter != "" {
			query = query.StartAfter(startAfter)
		}
		return query.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.UserAccount]{}, err
	}

	page := domain.CursorPage[domain.UserAccount]{Items: make([]domain.UserAccount, 0, len(docs))}
	for i, doc := range docs {
		if i == size {
			token, err := nextToken(docs[size-1].ID)
			if err != nil {
				return domain.CursorPage[domain.UserAccount]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, userFromDocument(doc.ID, doc.Data))
	}
	return page, nil
}

// UpdateRoles applies every role change in one transaction. Any missing user
// or protected system account aborts the whole batch.
func (r *UserRepository) UpdateRoles(ctx context.Context, changes []repositories.RoleChange, changedBy string) ([]domain.UserAccount, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("user repository not initialised")
	}
	if len(changes) == 0 {
		return nil, errors.New("user repository: at least one role change is required")
	}

	now := time.Now().UTC()
	var updated []domain.UserAccount
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		type pending struct {
			ref *firestore.DocumentRef
			doc userDocument
			uid string
		}
		staged := make([]pending, 0, len(changes))

		for _, change := range changes {
			uid, err := requireID("user", change.UserID)
			if err != nil {
				return err
			}
			ref, err := r.base.DocumentRef(ctx, uid)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				return err
			}
			var doc userDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("firestore users decode %s: %w", uid, err)
			}
			if doc.SystemAccount {
				return status.Error(codes.FailedPrecondition, fmt.Sprintf("user %s is a protected system account", uid))
			}
			doc.Role = string(change.Role)
			doc.UpdatedAt = now
			staged = append(staged, pending{ref: ref, doc: doc, uid: uid})
		}

		updated = updated[:0]
		for _, entry := range staged {
			if err := tx.Set(entry.ref, entry.doc); err != nil {
				return err
			}
			updated = append(updated, userFromDocument(entry.uid, entry.doc))
		}
		return nil
	})
	if err != nil {
		return nil, pfirestore.WrapError("users.updateRoles", err)
	}
	return updated, nil
}

func userToDocument(account domain.UserAccount) userDocument {
	now := time.Now().UTC()
	createdAt := account.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	return userDocument{
		Email:         strings.ToLower(strings.TrimSpace(account.Email)),
		DisplayName:   strings.TrimSpace(account.DisplayName),
		Phone:         strings.TrimSpace(account.Phone),
		Role:          string(account.Role),
		SystemAccount: account.SystemAccount,
		Disabled:      account.Disabled,
		Preferences: userPreferencesDocument{
			OrderUpdates: account.Preferences.OrderUpdates,
			Marketing:    account.Preferences.Marketing,
		},
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
}

func userFromDocument(id string, doc userDocument) domain.UserAccount {
	return domain.UserAccount{
		ID:            id,
		Email:         doc.Email,
		DisplayName:   doc.DisplayName,
		Phone:         doc.Phone,
		Role:          domain.UserRole(doc.Role),
		SystemAccount: doc.SystemAccount,
		Disabled:      doc.Disabled,
		Preferences: domain.NotificationPreferences{
			OrderUpdates: doc.Preferences.OrderUpdates,
			Marketing:    doc.Preferences.Marketing,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

var _ repositories.UserRepository = (*UserRepository)(nil)
