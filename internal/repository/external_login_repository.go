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

// externalLoginRepository implements ExternalLoginRepository interface
type externalLoginRepository struct {
	q database.Querier
}

// NewExternalLoginRepository creates a new external login repository
func NewExternalLoginRepository(q database.Querier) ExternalLoginRepository {
	return &externalLoginRepository{q: q}
}

// Create persists a new external login attempt
func (r *externalLoginRepository) Create(ctx context.Context, login *domain.ExternalLogin) error {
	query := `
		INSERT INTO external_logins (id, created_at, modified_at, type, provider_type, email, code_verifier, nonce, browser_fingerprint, login_result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		login.ID,
		login.CreatedAt,
		login.ModifiedAt,
		string(login.Type),
		string(login.Provider),
		login.Email,
		login.CodeVerifier,
		login.Nonce,
		login.BrowserFingerprint,
		loginResultValue(login.Result),
	)
	if err != nil {
		return fmt.Errorf("failed to create external login: %w", err)
	}
	return nil
}

// GetByID retrieves an external login attempt by id
func (r *externalLoginRepository) GetByID(ctx context.Context, id string) (*domain.ExternalLogin, error) {
	query := `
		SELECT id, created_at, modified_at, type, provider_type, email, code_verifier, nonce, browser_fingerprint, login_result
		FROM external_logins
		WHERE id = $1
	`

	login := &domain.ExternalLogin{}
	var loginType, provider string
	var email, result sql.NullString

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&login.ID,
		&login.CreatedAt,
		&login.ModifiedAt,
		&loginType,
		&provider,
		&email,
		&login.CodeVerifier,
		&login.Nonce,
		&login.BrowserFingerprint,
		&result,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("external login %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get external login: %w", err)
	}

	login.Type = domain.LoginType(loginType)
	login.Provider = domain.ProviderType(provider)
	if email.Valid {
		login.Email = &email.String
	}
	if result.Valid {
		r := domain.LoginResult(result.String)
		login.Result = &r
	}
	return login, nil
}

// Update persists a mutated external login attempt with an optimistic
// concurrency guard.
func (r *externalLoginRepository) Update(ctx context.Context, login *domain.ExternalLogin, expectedModifiedAt time.Time) error {
	query := `
		UPDATE external_logins
		SET modified_at = $2, email = $3, login_result = $4
		WHERE id = $1 AND modified_at = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		login.ID,
		login.ModifiedAt,
		login.Email,
		loginResultValue(login.Result),
		expectedModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update external login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("external login %s: %w", login.ID, ErrConcurrentUpdate)
	}
	return nil
}

func loginResultValue(result *domain.LoginResult) any {
	if result == nil {
		return nil
	}
	return string(*result)
}
