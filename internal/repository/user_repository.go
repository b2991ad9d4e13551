package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/pkg/database"
)

// userRepository implements UserRepository interface
type userRepository struct {
	q database.Querier
}

// NewUserRepository creates a new user repository
func NewUserRepository(q database.Querier) UserRepository {
	return &userRepository{q: q}
}

const userColumns = `id, tenant_id, email, email_confirmed, first_name, last_name, avatar_url, role, created_at, modified_at`

// Create creates a new user in the database
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, tenant_id, email, email_confirmed, first_name, last_name, avatar_url, role, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if user.ID == "" {
		user.ID = domain.NewUserID()
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.ModifiedAt.IsZero() {
		user.ModifiedAt = now
	}

	_, err := r.q.ExecContext(ctx, query,
		user.ID,
		user.TenantID,
		user.Email,
		user.EmailConfirmed,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.Role,
		user.CreatedAt,
		user.ModifiedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("user with email %s already exists in tenant %s: %w", user.Email, user.TenantID, ErrDuplicateEmail)
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID, including external identity links
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := r.scanUser(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	if err := r.loadIdentities(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetAllByEmail retrieves every user owning this email across tenants, in
// deterministic order (creation time, ties broken by id).
func (r *userRepository) GetAllByEmail(ctx context.Context, email string) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 ORDER BY created_at, id`

	rows, err := r.q.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by email: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	for _, user := range users {
		if err := r.loadIdentities(ctx, user); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// Update updates an existing user's mutable fields
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email_confirmed = $2, first_name = $3, last_name = $4, avatar_url = $5, modified_at = $6
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		user.ID,
		user.EmailConfirmed,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", user.ID, ErrNotFound)
	}
	return nil
}

// LinkIdentity inserts an external identity link for a user
func (r *userRepository) LinkIdentity(ctx context.Context, userID string, identity domain.ExternalIdentity) error {
	query := `
		INSERT INTO user_external_identities (user_id, provider, provider_user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.q.ExecContext(ctx, query,
		userID,
		string(identity.Provider),
		identity.ProviderUserID,
		identity.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("identity %s for user %s: %w", identity.Provider, userID, ErrDuplicateIdentity)
			}
		}
		return fmt.Errorf("failed to link identity: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *userRepository) scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.TenantID,
		&user.Email,
		&user.EmailConfirmed,
		&user.FirstName,
		&user.LastName,
		&user.AvatarURL,
		&user.Role,
		&user.CreatedAt,
		&user.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) loadIdentities(ctx context.Context, user *domain.User) error {
	query := `
		SELECT provider, provider_user_id, created_at
		FROM user_external_identities
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.q.QueryContext(ctx, query, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load identities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var identity domain.ExternalIdentity
		var provider string
		if err := rows.Scan(&provider, &identity.ProviderUserID, &identity.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan identity: %w", err)
		}
		identity.Provider = domain.ProviderType(provider)
		user.Identities = append(user.Identities, identity)
	}
	return rows.Err()
}
