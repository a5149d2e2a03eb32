package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/repositories"
)

// ErrUserInvalidInput indicates the caller supplied invalid input.
var ErrUserInvalidInput = errors.New("user service: invalid input")

// ErrUserNotFound indicates the requested account or address does not exist.
var ErrUserNotFound = errors.New("user service: not found")

// ErrUserConflict indicates the account could not be updated due to concurrent modification.
var ErrUserConflict = errors.New("user service: conflict")

// ErrUserProtectedAccount indicates a role change targeted a protected system account.
var ErrUserProtectedAccount = errors.New("user service: protected system account")

// ErrUserUnavailable indicates the user service cannot fulfil the request.
var ErrUserUnavailable = errors.New("user service: unavailable")

var userEmailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type roleClaimSetter interface {
	SetRoleClaim(ctx context.Context, uid string, role string) error
}

// UserServiceDeps wires the repositories and the Firebase claim writer.
type UserServiceDeps struct {
	Users       repositories.UserRepository
	Addresses   repositories.AddressRepository
	RoleClaims  roleClaimSetter
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type userService struct {
	users      repositories.UserRepository
	addresses  repositories.AddressRepository
	roleClaims roleClaimSetter
	now        func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewUserService constructs a UserService enforcing dependency validation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("user service: address repository is required")
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

	return &userService{
		users:      deps.Users,
		addresses:  deps.Addresses,
		roleClaims: deps.RoleClaims,
		now:        func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

// GetProfile loads the account profile. A first-time caller without a stored
// profile is reported as not found so the handler can bootstrap one.
func (s *userService) GetProfile(ctx context.Context, userID string) (domain.UserAccount, error) {
	if s == nil || s.users == nil {
		return domain.UserAccount{}, ErrUserUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.UserAccount{}, ErrUserInvalidInput
	}
	account, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return domain.UserAccount{}, s.translateRepoError(err)
	}
	return account, nil
}

// UpsertProfile creates or updates the caller's own profile. The role and
// system-account flag are never writable through this path.
func (s *userService) UpsertProfile(ctx context.Context, cmd UpsertProfileCommand) (domain.UserAccount, error) {
	if s == nil || s.users == nil {
		return domain.UserAccount{}, ErrUserUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return domain.UserAccount{}, ErrUserInvalidInput
	}
	email := strings.TrimSpace(cmd.Email)
	if email != "" && !userEmailPattern.MatchString(email) {
		return domain.UserAccount{}, ErrUserInvalidInput
	}

	account := domain.UserAccount{
		ID:          uid,
		Email:       email,
		DisplayName: strings.TrimSpace(cmd.DisplayName),
		Phone:       strings.TrimSpace(cmd.Phone),
		Role:        domain.RoleCustomer,
		Preferences: cmd.Preferences,
	}

	if existing, err := s.users.FindByID(ctx, uid); err == nil {
		account.Role = existing.Role
		account.SystemAccount = existing.SystemAccount
		account.Disabled = existing.Disabled
		account.CreatedAt = existing.CreatedAt
		if account.Email == "" {
			account.Email = existing.Email
		}
	} else if !isRepoNotFound(err) {
		return domain.UserAccount{}, s.translateRepoError(err)
	}

	saved, err := s.users.Upsert(ctx, account)
	if err != nil {
		return domain.UserAccount{}, s.translateRepoError(err)
	}
	return saved, nil
}

// ListUsers returns accounts matching the back-office filter.
func (s *userService) ListUsers(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.UserAccount], error) {
	if s == nil || s.users == nil {
		return domain.CursorPage[domain.UserAccount]{}, ErrUserUnavailable
	}
	if filter.Role != "" && !domain.ValidUserRole(filter.Role) {
		return domain.CursorPage[domain.UserAccount]{}, ErrUserInvalidInput
	}
	page, err := s.users.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.UserAccount]{}, s.translateRepoError(err)
	}
	return page, nil
}

// BatchUpdateRoles applies every role assignment or none of them. Protected
// system accounts reject the whole batch before any write happens, and the
// repository transaction enforces the same rule against racing writers.
func (s *userService) BatchUpdateRoles(ctx context.Context, cmd BatchUpdateRolesCommand) ([]domain.UserAccount, error) {
	if s == nil || s.users == nil {
		return nil, ErrUserUnavailable
	}
	if len(cmd.Assignments) == 0 {
		return nil, ErrUserInvalidInput
	}

	changes := make([]repositories.RoleChange, 0, len(cmd.Assignments))
	seen := make(map[string]struct{}, len(cmd.Assignments))
	for _, assignment := range cmd.Assignments {
		uid := strings.TrimSpace(assignment.UserID)
		if uid == "" || !domain.ValidUserRole(assignment.Role) {
			return nil, ErrUserInvalidInput
		}
		if _, dup := seen[uid]; dup {
			return nil, ErrUserInvalidInput
		}
		seen[uid] = struct{}{}
		changes = append(changes, repositories.RoleChange{UserID: uid, Role: assignment.Role})
	}

	for _, change := range changes {
		account, err := s.users.FindByID(ctx, change.UserID)
		if err != nil {
			return nil, s.translateRepoError(err)
		}
		if account.SystemAccount {
			return nil, ErrUserProtectedAccount
		}
	}

	updated, err := s.users.UpdateRoles(ctx, changes, strings.TrimSpace(cmd.ChangedBy))
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return nil, ErrUserProtectedAccount
		}
		return nil, s.translateRepoError(err)
	}

	s.logger(ctx, "users.roles.updated", map[string]any{
		"count":     len(updated),
		"changedBy": strings.TrimSpace(cmd.ChangedBy),
	})

	if s.roleClaims != nil {
		for _, account := range updated {
			if err := s.roleClaims.SetRoleClaim(ctx, account.ID, string(account.Role)); err != nil {
				s.logger(ctx, "users.roles.claim_failed", map[string]any{
					"userId": account.ID,
					"error":  err.Error(),
				})
			}
		}
	}
	return updated, nil
}

// DeactivateUser disables the account. Protected system accounts cannot be
// deactivated, and deactivating an already disabled account is a no-op.
func (s *userService) DeactivateUser(ctx context.Context, cmd DeactivateUserCommand) (domain.UserAccount, error) {
	if s == nil || s.users == nil {
		return domain.UserAccount{}, ErrUserUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return domain.UserAccount{}, ErrUserInvalidInput
	}

	account, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return domain.UserAccount{}, s.translateRepoError(err)
	}
	if account.SystemAccount {
		return domain.UserAccount{}, ErrUserProtectedAccount
	}
	if account.Disabled {
		return account, nil
	}

	account.Disabled = true
	saved, err := s.users.Upsert(ctx, account)
	if err != nil {
		return domain.UserAccount{}, s.translateRepoError(err)
	}

	s.logger(ctx, "users.deactivated", map[string]any{
		"userId":    saved.ID,
		"changedBy": strings.TrimSpace(cmd.ChangedBy),
	})
	return saved, nil
}

// ListAddresses returns the caller's saved addresses, default first.
func (s *userService) ListAddresses(ctx context.Context, ownerID string) ([]domain.Address, error) {
	if s == nil || s.addresses == nil {
		return nil, ErrUserUnavailable
	}
	uid := strings.TrimSpace(ownerID)
	if uid == "" {
		return nil, ErrUserInvalidInput
	}
	addresses, err := s.addresses.ListByOwner(ctx, uid)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return addresses, nil
}

// AddAddress validates and stores a new address for the caller.
func (s *userService) AddAddress(ctx context.Context, cmd UpsertAddressCommand) (domain.Address, error) {
	if s == nil || s.addresses == nil {
		return domain.Address{}, ErrUserUnavailable
	}
	address, err := s.addressFromCommand(cmd)
	if err != nil {
		return domain.Address{}, err
	}
	address.ID = s.newID()
	address.CreatedAt = s.now()

	saved, err := s.addresses.Insert(ctx, address)
	if err != nil {
		return domain.Address{}, s.translateRepoError(err)
	}
	return saved, nil
}

// UpdateAddress validates and overwrites an existing address.
func (s *userService) UpdateAddress(ctx context.Context, cmd UpsertAddressCommand) (domain.Address, error) {
	if s == nil || s.addresses == nil {
		return domain.Address{}, ErrUserUnavailable
	}
	address, err := s.addressFromCommand(cmd)
	if err != nil {
		return domain.Address{}, err
	}
	address.ID = strings.TrimSpace(cmd.AddressID)
	if address.ID == "" {
		return domain.Address{}, ErrUserInvalidInput
	}

	saved, err := s.addresses.Update(ctx, address)
	if err != nil {
		return domain.Address{}, s.translateRepoError(err)
	}
	return saved, nil
}

// DeleteAddress removes the address. Deleting the default address promotes
// the oldest remaining address to default.
func (s *userService) DeleteAddress(ctx context.Context, ownerID string, addressID string) error {
	if s == nil || s.addresses == nil {
		return ErrUserUnavailable
	}
	uid := strings.TrimSpace(ownerID)
	id := strings.TrimSpace(addressID)
	if uid == "" || id == "" {
		return ErrUserInvalidInput
	}

	existing, err := s.addresses.FindByID(ctx, uid, id)
	if err != nil {
		return s.translateRepoError(err)
	}
	if err := s.addresses.Delete(ctx, uid, id); err != nil {
		return s.translateRepoError(err)
	}

	if existing.IsDefault {
		remaining, err := s.addresses.ListByOwner(ctx, uid)
		if err != nil {
			return s.translateRepoError(err)
		}
		if len(remaining) > 0 {
			if _, err := s.addresses.SetDefault(ctx, uid, remaining[0].ID); err != nil {
				return s.translateRepoError(err)
			}
		}
	}
	return nil
}

// SetDefaultAddress marks one address as the default.
func (s *userService) SetDefaultAddress(ctx context.Context, ownerID string, addressID string) (domain.Address, error) {
	if s == nil || s.addresses == nil {
		return domain.Address{}, ErrUserUnavailable
	}
	uid := strings.TrimSpace(ownerID)
	id := strings.TrimSpace(addressID)
	if uid == "" || id == "" {
		return domain.Address{}, ErrUserInvalidInput
	}
	updated, err := s.addresses.SetDefault(ctx, uid, id)
	if err != nil {
		return domain.Address{}, s.translateRepoError(err)
	}
	return updated, nil
}

func (s *userService) addressFromCommand(cmd UpsertAddressCommand) (domain.Address, error) {
	uid := strings.TrimSpace(cmd.OwnerID)
	if uid == "" {
		return domain.Address{}, ErrUserInvalidInput
	}

	addressType := cmd.Type
	if addressType == "" {
		addressType = domain.AddressTypeBoth
	}
	if !domain.ValidAddressType(addressType) {
		return domain.Address{}, ErrUserInvalidInput
	}

	validationErr := &ValidationError{}
	if strings.TrimSpace(cmd.Name) == "" {
		validationErr.Add("name", "name is required")
	}
	if strings.TrimSpace(cmd.Line1) == "" {
		validationErr.Add("line1", "address line is required")
	}
	if strings.TrimSpace(cmd.City) == "" {
		validationErr.Add("city", "city is required")
	}
	postcode := strings.TrimSpace(cmd.Postcode)
	if postcode == "" {
		validationErr.Add("postcode", "postcode is required")
	} else if isUKCountry(cmd.Country) && !ukPostcodePattern.MatchString(postcode) {
		validationErr.Add("postcode", "postcode is not a valid UK postcode")
	}
	if validationErr.HasViolations() {
		return domain.Address{}, validationErr
	}

	country := strings.TrimSpace(cmd.Country)
	if country == "" {
		country = "GB"
	}
	return domain.Address{
		OwnerID:  uid,
		Label:    strings.TrimSpace(cmd.Label),
		Type:     addressType,
		Name:     strings.TrimSpace(cmd.Name),
		Line1:    strings.TrimSpace(cmd.Line1),
		Line2:    strings.TrimSpace(cmd.Line2),
		City:     strings.TrimSpace(cmd.City),
		County:   strings.TrimSpace(cmd.County),
		Postcode: strings.ToUpper(postcode),
		Country:  country,
		Phone:    strings.TrimSpace(cmd.Phone),
	}, nil
}

func (s *userService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrUserNotFound
		case repoErr.IsConflict():
			return ErrUserConflict
		case repoErr.IsUnavailable():
			return ErrUserUnavailable
		}
		return ErrUserUnavailable
	}
	return ErrUserUnavailable
}
