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

// emailLoginRepository implements EmailLoginRepository interface
type emailLoginRepository struct {
	q database.Querier
}

// NewEmailLoginRepository creates a new email login repository
func NewEmailLoginRepository(q database.Querier) EmailLoginRepository {
	return &emailLoginRepository{q: q}
}

// Create persists a new email login attempt
func (r *emailLoginRepository) Create(ctx context.Context, login *domain.EmailLogin) error {
	query := `
		INSERT INTO email_logins (id, created_at, modified_at, type, email, one_time_password_hash, retry_count, resend_count, completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		login.ID,
		login.CreatedAt,
		login.ModifiedAt,
		string(login.Type),
		login.Email,
		login.OneTimePasswordHash,
		login.RetryCount,
		login.ResendCount,
		login.Completed,
	)
	if err != nil {
		return fmt.Errorf("failed to create email login: %w", err)
	}
	return nil
}

// GetByID retrieves an email login attempt by id
func (r *emailLoginRepository) GetByID(ctx context.Context, id string) (*domain.EmailLogin, error) {
	query := `
		SELECT id, created_at, modified_at, type, email, one_time_password_hash, retry_count, resend_count, completed
		FROM email_logins
		WHERE id = $1
	`

	login := &domain.EmailLogin{}
	var loginType string

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&login.ID,
		&login.CreatedAt,
		&login.ModifiedAt,
		&loginType,
		&login.Email,
		&login.OneTimePasswordHash,
		&login.RetryCount,
		&login.ResendCount,
		&login.Completed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("email login %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get email login: %w", err)
	}

	login.Type = domain.LoginType(loginType)
	return login, nil
}

// Update persists a mutated email login attempt. The expectedModifiedAt guard
// serializes concurrent completion attempts against the same record.
func (r *emailLoginRepository) Update(ctx context.Context, login *domain.EmailLogin, expectedModifiedAt time.Time) error {
	query := `
		UPDATE email_logins
		SET created_at = $2, modified_at = $3, one_time_password_hash = $4, retry_count = $5, resend_count = $6, completed = $7
		WHERE id = $1 AND modified_at = $8
	`

	result, err := r.q.ExecContext(ctx, query,
		login.ID,
		login.CreatedAt,
		login.ModifiedAt,
		login.OneTimePasswordHash,
		login.RetryCount,
		login.ResendCount,
		login.Completed,
		expectedModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update email login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("email login %s: %w", login.ID, ErrConcurrentUpdate)
	}
	return nil
}
