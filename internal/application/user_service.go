package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/availability-scheduler/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user
// service. An empty passwordHash on update keeps the stored hash.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User, passwordHash string) (User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)
}

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users        UserRepository
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, hashPassword PasswordHasher, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, hashPassword, idGenerator, now, nil)
}

// NewUserServiceWithLogger constructs a UserService with a specified logger.
func NewUserServiceWithLogger(users UserRepository, hashPassword PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hashPassword == nil {
		hashPassword = func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:        users,
		hashPassword: hashPassword,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input and persists a new user for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !params.Principal.IsAdmin() {
		return User{}, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal_id", params.Principal.UserID)

	normalized := normalizeUserInput(params.Input)
	vErr := validateUserInput(normalized, true)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hashPassword(normalized.Password)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	createdAt := s.now().UTC()
	user := User{
		ID:          s.idGenerator(),
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		Role:        normalized.Role,
		Disabled:    normalized.Disabled,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	if s.users == nil {
		return user, nil
	}

	persisted, err := s.users.CreateUser(ctx, user, hash)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
		return User{}, mapUserRepoError(err)
	}

	logger.With("user_id", persisted.ID).InfoContext(ctx, "user created")
	return persisted, nil
}

// UpdateUser validates input and updates an existing user. Administrators
// may update anyone; other users may update only their own display name and
// password.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	principal := params.Principal
	if !principal.IsAdmin() && principal.UserID != params.UserID {
		return User{}, ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "UpdateUser", "user_id", params.UserID)

	existing, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}

	normalized := normalizeUserInput(params.Input)
	if !principal.IsAdmin() {
		// Self-service updates cannot change role, email, or disabled state.
		normalized.Email = existing.Email
		normalized.Role = existing.Role
		normalized.Disabled = existing.Disabled
	}

	vErr := validateUserInput(normalized, false)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash := ""
	if normalized.Password != "" {
		hash, err = s.hashPassword(normalized.Password)
		if err != nil {
			return User{}, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	updated := existing
	updated.Email = normalized.Email
	updated.DisplayName = normalized.DisplayName
	updated.Role = normalized.Role
	updated.Disabled = normalized.Disabled
	updated.UpdatedAt = s.now().UTC()

	persisted, err := s.users.UpdateUser(ctx, updated, hash)
	if err != nil {
		logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
		return User{}, mapUserRepoError(err)
	}

	logger.InfoContext(ctx, "user updated")
	return persisted, nil
}

// GetUser returns one user. Administrators may read anyone; other users may
// read only themselves.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if !principal.IsAdmin() && principal.UserID != userID {
		return User{}, ErrUnauthorized
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

// DeleteUser removes a user when requested by an administrator.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	if principal.UserID == userID {
		vErr := &ValidationError{}
		vErr.add("user_id", "administrators cannot delete their own account")
		return vErr
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteUser", "user_id", userID)

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return mapUserRepoError(err)
	}

	logger.InfoContext(ctx, "user deleted")
	return nil
}

// ListUsers returns all users for administrators, ordered by email.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	out := make([]User, len(users))
	copy(out, users)
	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})
	return out, nil
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Role:        input.Role,
		Password:    input.Password,
		Disabled:    input.Disabled,
	}
}

func validateUserInput(input UserInput, passwordRequired bool) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}

	if !input.Role.Valid() {
		vErr.add("role", "role must be admin, organizer, or member")
	}

	if input.Password == "" {
		if passwordRequired {
			vErr.add("password", "password is required")
		}
	} else if len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}

	return vErr
}

func mapUserRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		vErr := &ValidationError{}
		vErr.add("email", "email is already registered")
		return vErr
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("role", "role must be admin, organizer, or member")
		return vErr
	}
	return err
}
