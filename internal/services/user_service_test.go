package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/repositories"
)

type stubUserRepository struct {
	upsertFunc      func(ctx context.Context, account domain.UserAccount) (domain.UserAccount, error)
	findByIDFunc    func(ctx context.Context, userID string) (domain.UserAccount, error)
	listFunc        func(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.UserAccount], error)
	updateRolesFunc func(ctx context.Context, changes []repositories.RoleChange, changedBy string) ([]domain.UserAccount, error)
}

func (s *stubUserRepository) Upsert(ctx context.Context, account domain.UserAccount) (domain.UserAccount, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, account)
	}
	return account, nil
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.UserAccount, error) {
	if s.findByIDFunc != nil {
		return s.findByIDFunc(ctx, userID)
	}
	return domain.UserAccount{}, &repositoryErrorStub{notFound: true}
}

func (s *stubUserRepository) List(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.UserAccount], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[domain.UserAccount]{}, nil
}

func (s *stubUserRepository) UpdateRoles(ctx context.Context, changes []repositories.RoleChange, changedBy string) ([]domain.UserAccount, error) {
	if s.updateRolesFunc != nil {
		return s.updateRolesFunc(ctx, changes, changedBy)
	}
	return nil, nil
}

type stubAddressRepository struct {
	insertFunc      func(ctx context.Context, address domain.Address) (domain.Address, error)
	updateFunc      func(ctx context.Context, address domain.Address) (domain.Address, error)
	deleteFunc      func(ctx context.Context, ownerID string, addressID string) error
	findByIDFunc    func(ctx context.Context, ownerID string, addressID string) (domain.Address, error)
	listByOwnerFunc func(ctx context.Context, ownerID string) ([]domain.Address, error)
	setDefaultFunc  func(ctx context.Context, ownerID string, addressID string) (domain.Address, error)
}

func (s *stubAddressRepository) Insert(ctx context.Context, address domain.Address) (domain.Address, error) {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, address)
	}
	return address, nil
}

func (s *stubAddressRepository) Update(ctx context.Context, address domain.Address) (domain.Address, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, address)
	}
	return address, nil
}

func (s *stubAddressRepository) Delete(ctx context.Context, ownerID string, addressID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, ownerID, addressID)
	}
	return nil
}

func (s *stubAddressRepository) FindByID(ctx context.Context, ownerID string, addressID string) (domain.Address, error) {
	if s.findByIDFunc != nil {
		return s.findByIDFunc(ctx, ownerID, addressID)
	}
	return domain.Address{}, &repositoryErrorStub{notFound: true}
}

func (s *stubAddressRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Address, error) {
	if s.listByOwnerFunc != nil {
		return s.listByOwnerFunc(ctx, ownerID)
	}
	return nil, nil
}

func (s *stubAddressRepository) SetDefault(ctx context.Context, ownerID string, addressID string) (domain.Address, error) {
	if s.setDefaultFunc != nil {
		return s.setDefaultFunc(ctx, ownerID, addressID)
	}
	return domain.Address{ID: addressID, OwnerID: ownerID, IsDefault: true}, nil
}

type stubRoleClaimSetter struct {
	setFunc func(ctx context.Context, uid string, role string) error
}

func (s *stubRoleClaimSetter) SetRoleClaim(ctx context.Context, uid string, role string) error {
	if s.setFunc != nil {
		return s.setFunc(ctx, uid, role)
	}
	return nil
}

func newTestUserService(t *testing.T, deps UserServiceDeps) UserService {
	t.Helper()
	if deps.Users == nil {
		deps.Users = &stubUserRepository{}
	}
	if deps.Addresses == nil {
		deps.Addresses = &stubAddressRepository{}
	}
	service, err := NewUserService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing user service: %v", err)
	}
	return service
}

func TestUserServiceUpsertProfilePreservesRoleAndFlags(t *testing.T) {
	created := time.Date(2024, 11, 5, 8, 0, 0, 0, time.UTC)
	var saved domain.UserAccount

	users := &stubUserRepository{
		findByIDFunc: func(ctx context.Context, userID string) (domain.UserAccount, error) {
			return domain.UserAccount{
				ID:            userID,
				Email:         "old@example.co.uk",
				Role:          domain.RoleManager,
				SystemAccount: true,
				CreatedAt:     created,
			}, nil
		},
		upsertFunc: func(ctx context.Context, account domain.UserAccount) (domain.UserAccount, error) {
			saved = account
			return account, nil
		},
	}
	service := newTestUserService(t, UserServiceDeps{Users: users})

	_, err := service.UpsertProfile(context.Background(), UpsertProfileCommand{
		UserID:      "user-1",
		DisplayName: "Jo Bloggs",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if saved.Role != domain.RoleManager {
		t.Fatalf("expected the stored role to survive, got %q", saved.Role)
	}
	if !saved.SystemAccount {
		t.Fatalf("expected the system account flag to survive")
	}
	if saved.Email != "old@example.co.uk" {
		t.Fatalf("expected the stored email to survive, got %q", saved.Email)
	}
	if saved.CreatedAt != created {
		t.Fatalf("expected the creation time to survive, got %v", saved.CreatedAt)
	}
}

func TestUserServiceUpsertProfileFirstTimeDefaultsToCustomer(t *testing.T) {
	var saved domain.UserAccount
	users := &stubUserRepository{
		upsertFunc: func(ctx context.Context, account domain.UserAccount) (domain.UserAccount, error) {
			saved = account
			return account, nil
		},
	}
	service := newTestUserService(t, UserServiceDeps{Users: users})

	_, err := service.UpsertProfile(context.Background(), UpsertProfileCommand{
		UserID: "user-1",
		Email:  "new@example.co.uk",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Role != domain.RoleCustomer {
		t.Fatalf("expected the customer role, got %q", saved.Role)
	}
}

func TestUserServiceUpsertProfileRejectsBadEmail(t *testing.T) {
	service := newTestUserService(t, UserServiceDeps{})

	_, err := service.UpsertProfile(context.Background(), UpsertProfileCommand{
		UserID: "user-1",
		Email:  "not-an-email",
	})
	if !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}

func TestUserServiceBatchUpdateRolesProtectedAccountBlocksWholeBatch(t *testing.T) {
	updates := 0
	users := &stubUserRepository{
		findByIDFunc: func(ctx context.Context, userID string) (domain.UserAccount, error) {
			if userID == "system-1" {
				return domain.UserAccount{ID: userID, SystemAccount: true}, nil
			}
			return domain.UserAccount{ID: userID}, nil
		},
		updateRolesFunc: func(ctx context.Context, changes []repositories.RoleChange, changedBy string) ([]domain.UserAccount, error) {
			updates++
			return nil, nil
		},
	}
	service := newTestUserService(t, UserServiceDeps{Users: users})

	_, err := service.BatchUpdateRoles(context.Background(), BatchUpdateRolesCommand{
		Assignments: []RoleAssignment{
			{UserID: "user-1", Role: domain.RoleManager},
			{UserID: "system-1", Role: domain.RoleAdmin},
		},
		ChangedBy: "admin-1",
	})
	if !errors.Is(err, ErrUserProtectedAccount) {
		t.Fatalf("expected ErrUserProtectedAccount, got %v", err)
	}
	if updates != 0 {
		t.Fatalf("expected no role writes, got %d", updates)
	}
}

func TestUserServiceBatchUpdateRolesRejectsDuplicates(t *testing.T) {
	service := newTestUserService(t, UserServiceDeps{})

	_, err := service.BatchUpdateRoles(context.Background(), BatchUpdateRolesCommand{
		Assignments: []RoleAssignment{
			{UserID: "user-1", Role: domain.RoleManager},
			{UserID: "user-1", Role: domain.RoleAdmin},
		},
	})
	if !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}

func TestUserServiceBatchUpdateRolesSyncsClaims(t *testing.T) {
	claims := make(map[string]string)
	users := &stubUserRepository{
		findByIDFunc: func(ctx context.Context, userID string) (domain.UserAccount, error) {
			return domain.UserAccount{ID: userID}, nil
		},
		updateRolesFunc: func(ctx context.Context, changes []repositories.RoleChange, changedBy string) ([]domain.UserAccount, error) {
			updated := make([]domain.UserAccount, 0, len(changes))
			for _, change := range changes {
				updated = append(updated, domain.UserAccount{ID: change.UserID, Role: change.Role})
			}
			return updated, nil
		},
	}
	roleClaims := &stubRoleClaimSetter{
		setFunc: func(ctx context.Context, uid string, role string) error {
			claims[uid] = role
			return nil
		},
	}
	service := newTestUserService(t, UserServiceDeps{Users: users, RoleClaims: roleClaims})

	updated, err := service.BatchUpdateRoles(context.Background(), BatchUpdateRolesCommand{
		Assignments: []RoleAssignment{
			{UserID: "user-1", Role: domain.RoleManager},
			{UserID: "user-2", Role: domain.RoleAdmin},
		},
		ChangedBy: "admin-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated accounts, got %d", len(updated))
	}
	if claims["user-1"] != "manager" || claims["user-2"] != "admin" {
		t.Fatalf("expected role claims to sync, got %v", claims)
	}
}

func TestUserServiceDeactivateUserDisablesAccount(t *testing.T) {
	var saved domain.UserAccount
	users := &stubUserRepository{
		findByIDFunc: func(ctx context.Context, userID string) (domain.UserAccount, error) {
			return domain.UserAccount{ID: userID, Role: domain.RoleCustomer}, nil
		},
		upsertFunc: func(ctx context.Context, account domain.UserAccount) (domain.UserAccount, error) {
			saved = account
			return account, nil
		},
	}
	service := newTestUserService(t, UserServiceDeps{Users: users})

	account, err := service.DeactivateUser(context.Background(), DeactivateUserCommand{
		UserID:    "user-1",
		ChangedBy: "admin-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !saved.Disabled || !account.Disabled {
		t.Fatalf("expected the account disabled, saved %+v returned %+v", saved, account)
	}
	if saved.Role != domain.RoleCustomer {
		t.Fatalf("expected the role unchanged, got %q", saved.Role)
	}
}

func TestUserServiceDeactivateUserProtectsSystemAccounts(t *testing.T) {
	writes := 0
	users := &stubUserRepository{
		findByIDFunc: func(ctx context.Context, userID string) (domain.UserAccount, error) {
			return domain.UserAccount{ID: userID, SystemAccount: true}, nil
		},
		upsertFunc: func(ctx context.Context, account domain.UserAccount) (domain.UserAccount, error) {
			writes++
			return account, nil
		},
	}
	service := newTestUserService(t, UserServiceDeps{Users: users})

	_, err := service.DeactivateUser(context.Background(), DeactivateUserCommand{UserID: "system-1"})
	if !errors.Is(err, ErrUserProtectedAccount) {
		t.Fatalf("expected ErrUserProtectedAccount, got %v", err)
	}
	if writes != 0 {
		t.Fatalf("expected no writes, got %d", writes)
	}
}

func TestUserServiceDeactivateUserAlreadyDisabledIsNoOp(t *testing.T) {
	writes := 0
	users := &stubUserRepository{
		findByIDFunc: func(ctx context.Context, userID string) (domain.UserAccount, error) {
			return domain.UserAccount{ID: userID, Disabled: true}, nil
		},
		upsertFunc: func(ctx context.Context, account domain.UserAccount) (domain.UserAccount, error) {
			writes++
			return account, nil
		},
	}
	service := newTestUserService(t, UserServiceDeps{Users: users})

	account, err := service.DeactivateUser(context.Background(), DeactivateUserCommand{UserID: "user-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !account.Disabled {
		t.Fatalf("expected the disabled flag preserved")
	}
	if writes != 0 {
		t.Fatalf("expected no writes, got %d", writes)
	}
}

func TestUserServiceAddAddressValidation(t *testing.T) {
	service := newTestUserService(t, UserServiceDeps{})

	_, err := service.AddAddress(context.Background(), UpsertAddressCommand{
		OwnerID:  "user-1",
		Name:     "Jo Bloggs",
		Postcode: "nope",
	})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	fields := make(map[string]struct{}, len(validationErr.Violations))
	for _, violation := range validationErr.Violations {
		fields[violation.Field] = struct{}{}
	}
	for _, field := range []string{"line1", "city", "postcode"} {
		if _, ok := fields[field]; !ok {
			t.Fatalf("expected a violation for %s, got %v", field, validationErr.Violations)
		}
	}
}

func TestUserServiceAddAddressAssignsIDAndNormalises(t *testing.T) {
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	var inserted domain.Address
	addresses := &stubAddressRepository{
		insertFunc: func(ctx context.Context, address domain.Address) (domain.Address, error) {
			inserted = address
			return address, nil
		},
	}
	service := newTestUserService(t, UserServiceDeps{
		Addresses:   addresses,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "addr-1" },
	})

	_, err := service.AddAddress(context.Background(), UpsertAddressCommand{
		OwnerID:  "user-1",
		Name:     "Jo Bloggs",
		Line1:    "1 Mill Lane",
		City:     "York",
		Postcode: "yo1 7hh",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted.ID != "addr-1" {
		t.Fatalf("expected id addr-1, got %q", inserted.ID)
	}
	if inserted.Postcode != "YO1 7HH" {
		t.Fatalf("expected the postcode uppercased, got %q", inserted.Postcode)
	}
	if inserted.Country != "GB" {
		t.Fatalf("expected GB as the default country, got %q", inserted.Country)
	}
	if inserted.Type != domain.AddressTypeBoth {
		t.Fatalf("expected the both address type by default, got %q", inserted.Type)
	}
	if inserted.CreatedAt != now {
		t.Fatalf("expected creation time %v, got %v", now, inserted.CreatedAt)
	}
}

func TestUserServiceDeleteDefaultAddressPromotesOldestRemaining(t *testing.T) {
	promoted := ""
	addresses := &stubAddressRepository{
		findByIDFunc: func(ctx context.Context, ownerID string, addressID string) (domain.Address, error) {
			return domain.Address{ID: addressID, OwnerID: ownerID, IsDefault: true}, nil
		},
		listByOwnerFunc: func(ctx context.Context, ownerID string) ([]domain.Address, error) {
			return []domain.Address{
				{ID: "addr-2", OwnerID: ownerID},
				{ID: "addr-3", OwnerID: ownerID},
			}, nil
		},
		setDefaultFunc: func(ctx context.Context, ownerID string, addressID string) (domain.Address, error) {
			promoted = addressID
			return domain.Address{ID: addressID, OwnerID: ownerID, IsDefault: true}, nil
		},
	}
	service := newTestUserService(t, UserServiceDeps{Addresses: addresses})

	if err := service.DeleteAddress(context.Background(), "user-1", "addr-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if promoted != "addr-2" {
		t.Fatalf("expected addr-2 to become the default, got %q", promoted)
	}
}

func TestUserServiceDeleteNonDefaultAddressLeavesDefaultAlone(t *testing.T) {
	promotions := 0
	addresses := &stubAddressRepository{
		findByIDFunc: func(ctx context.Context, ownerID string, addressID string) (domain.Address, error) {
			return domain.Address{ID: addressID, OwnerID: ownerID}, nil
		},
		setDefaultFunc: func(ctx context.Context, ownerID string, addressID string) (domain.Address, error) {
			promotions++
			return domain.Address{}, nil
		},
	}
	service := newTestUserService(t, UserServiceDeps{Addresses: addresses})

	if err := service.DeleteAddress(context.Background(), "user-1", "addr-4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if promotions != 0 {
		t.Fatalf("expected no default promotion, got %d", promotions)
	}
}

func TestUserServiceListUsersRejectsUnknownRole(t *testing.T) {
	service := newTestUserService(t, UserServiceDeps{})

	_, err := service.ListUsers(context.Background(), repositories.UserListFilter{
		Role: domain.UserRole("overlord"),
	})
	if !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}
