package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/pkg/database"
)

// sessionRepository implements SessionRepository interface
type sessionRepository struct {
	q database.Querier
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(q database.Querier) SessionRepository {
	return &sessionRepository{q: q}
}

// Create persists a new session
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, tenant_id, user_id, created_at, modified_at, refresh_token_jti, previous_refresh_token_jti,
			refresh_token_version, login_method, device_type, user_agent, ip_address, revoked_at, revoked_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.q.ExecContext(ctx, query,
		session.ID,
		session.TenantID,
		session.UserID,
		session.CreatedAt,
		session.ModifiedAt,
		session.RefreshTokenJti,
		session.PreviousRefreshTokenJti,
		session.RefreshTokenVersion,
		string(session.LoginMethod),
		session.DeviceType,
		session.UserAgent,
		session.IPAddress,
		session.RevokedAt,
		revocationReasonValue(session.RevokedReason),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by id
func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, tenant_id, user_id, created_at, modified_at, refresh_token_jti, previous_refresh_token_jti,
			refresh_token_version, login_method, device_type, user_agent, ip_address, revoked_at, revoked_reason
		FROM sessions
		WHERE id = $1
	`

	session := &domain.Session{}
	var loginMethod string
	var previousJti, revokedReason sql.NullString
	var revokedAt sql.NullTime

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.TenantID,
		&session.UserID,
		&session.CreatedAt,
		&session.ModifiedAt,
		&session.RefreshTokenJti,
		&previousJti,
		&session.RefreshTokenVersion,
		&loginMethod,
		&session.DeviceType,
		&session.UserAgent,
		&session.IPAddress,
		&revokedAt,
		&revokedReason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.LoginMethod = domain.LoginMethod(loginMethod)
	if previousJti.Valid {
		session.PreviousRefreshTokenJti = &previousJti.String
	}
	if revokedAt.Valid {
		session.RevokedAt = &revokedAt.Time
	}
	if revokedReason.Valid {
		reason := domain.RevocationReason(revokedReason.String)
		session.RevokedReason = &reason
	}
	return session, nil
}

// Update persists a mutated session with an optimistic concurrency guard so
// two concurrent rotations can never both succeed.
func (r *sessionRepository) Update(ctx context.Context, session *domain.Session, expectedModifiedAt time.Time) error {
	query := `
		UPDATE sessions
		SET modified_at = $2, refresh_token_jti = $3, previous_refresh_token_jti = $4, refresh_token_version = $5,
			revoked_at = $6, revoked_reason = $7
		WHERE id = $1 AND modified_at = $8
	`

	result, err := r.q.ExecContext(ctx, query,
		session.ID,
		session.ModifiedAt,
		session.RefreshTokenJti,
		session.PreviousRefreshTokenJti,
		session.RefreshTokenVersion,
		session.RevokedAt,
		revocationReasonValue(session.RevokedReason),
		expectedModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session %s: %w", session.ID, ErrConcurrentUpdate)
	}
	return nil
}

func revocationReasonValue(reason *domain.RevocationReason) any {
	if reason == nil {
		return nil
	}
	return string(*reason)
}
