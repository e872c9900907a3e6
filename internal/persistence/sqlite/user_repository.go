package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/availability-scheduler/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateUser inserts a new user account.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, role, password_hash, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.DisplayName,
		user.Role,
		user.PasswordHash,
		user.Disabled,
		encodeTime(user.CreatedAt),
		encodeTime(user.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateUser updates an existing user account.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrNotFound
	}

	user.UpdatedAt = time.Now().UTC()

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, display_name = ?, role = ?, password_hash = ?, disabled = ?, updated_at = ?
		WHERE id = ?
	`,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.DisplayName,
		user.Role,
		user.PasswordHash,
		user.Disabled,
		encodeTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getUser(ctx, "id = ?", id)
}

// GetUserByEmail retrieves a user by email address, case-insensitively.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getUser(ctx, "email = ?", normalized)
}

func (r *UserRepository) getUser(ctx context.Context, cond string, arg any) (persistence.User, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, role, password_hash, disabled, created_at, updated_at
		FROM users
		WHERE `+cond, arg)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// ListUsers returns all users ordered by email.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, email, display_name, role, password_hash, disabled, created_at, updated_at
		FROM users
		ORDER BY email, id
	`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser removes a user; owned sessions and slots cascade.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user       persistence.User
		createdRaw string
		updatedRaw string
	)

	if err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.Role,
		&user.PasswordHash, &user.Disabled, &createdRaw, &updatedRaw,
	); err != nil {
		return persistence.User{}, err
	}

	var err error
	if user.CreatedAt, err = decodeTime(createdRaw); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = decodeTime(updatedRaw); err != nil {
		return persistence.User{}, err
	}

	return user, nil
}
