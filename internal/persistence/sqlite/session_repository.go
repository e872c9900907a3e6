package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/availability-scheduler/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateSession persists a new session and returns the stored record.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID,
		session.UserID,
		session.Token,
		session.Fingerprint,
		encodeTime(session.ExpiresAt),
		nullTime(session.RevokedAt),
		encodeTime(session.CreatedAt),
		encodeTime(session.UpdatedAt),
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	return session, nil
}

// GetSession retrieves a session by its token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, user_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at
		FROM sessions
		WHERE token = ?
	`, token)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Session{}, persistence.ErrNotFound
		}
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// UpdateSession rewrites a session record, keyed by ID. Used when a
// refresh rotates the token or extends the expiry.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	session.UpdatedAt = time.Now().UTC()

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE sessions
		SET token = ?, fingerprint = ?, expires_at = ?, revoked_at = ?, updated_at = ?
		WHERE id = ?
	`,
		session.Token,
		session.Fingerprint,
		encodeTime(session.ExpiresAt),
		nullTime(session.RevokedAt),
		encodeTime(session.UpdatedAt),
		session.ID,
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.Session{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}

	return session, nil
}

// RevokeSession marks the session identified by token as revoked.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	revokedAt = revokedAt.UTC()

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE sessions
		SET revoked_at = ?, updated_at = ?
		WHERE token = ? AND revoked_at IS NULL
	`,
		encodeTime(revokedAt),
		encodeTime(revokedAt),
		token,
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	if _, err := result.RowsAffected(); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to get rows affected: %w", err)
	}

	// Unknown tokens surface as ErrNotFound; already revoked sessions are
	// returned unchanged so callers can inspect RevokedAt.
	return r.GetSession(ctx, token)
}

// DeleteExpiredSessions removes sessions whose expiry is before reference.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.pool.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at < ?
	`, encodeTime(reference.UTC()))
	return r.mapper.MapError(err)
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session    persistence.Session
		expiresRaw string
		revokedRaw sql.NullString
		createdRaw string
		updatedRaw string
	)

	if err := row.Scan(
		&session.ID, &session.UserID, &session.Token, &session.Fingerprint,
		&expiresRaw, &revokedRaw, &createdRaw, &updatedRaw,
	); err != nil {
		return persistence.Session{}, err
	}

	var err error
	if session.ExpiresAt, err = decodeTime(expiresRaw); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = decodeTime(createdRaw); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = decodeTime(updatedRaw); err != nil {
		return persistence.Session{}, err
	}
	if revokedRaw.Valid {
		revoked, err := decodeTime(revokedRaw.String)
		if err != nil {
			return persistence.Session{}, err
		}
		session.RevokedAt = &revoked
	}

	return session, nil
}
