package repository

import (
	"context"
	"time"

	"github.com/platformplatform/identity-service/internal/domain"
)

// EmailLoginRepository persists email login attempts. Updates carry the
// modified_at observed at load time; a mismatch means a concurrent completion
// attempt won the race and ErrConcurrentUpdate is returned.
type EmailLoginRepository interface {
	Create(ctx context.Context, login *domain.EmailLogin) error
	GetByID(ctx context.Context, id string) (*domain.EmailLogin, error)
	Update(ctx context.Context, login *domain.EmailLogin, expectedModifiedAt time.Time) error
}

// ExternalLoginRepository persists external login attempts.
type ExternalLoginRepository interface {
	Create(ctx context.Context, login *domain.ExternalLogin) error
	GetByID(ctx context.Context, id string) (*domain.ExternalLogin, error)
	Update(ctx context.Context, login *domain.ExternalLogin, expectedModifiedAt time.Time) error
}

// SessionRepository persists sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Update(ctx context.Context, session *domain.Session, expectedModifiedAt time.Time) error
}

// UserRepository persists users and their external identity links.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetAllByEmail returns every user owning this email across all tenants,
	// ordered deterministically by creation time (ties broken by id).
	GetAllByEmail(ctx context.Context, email string) ([]*domain.User, error)

	Update(ctx context.Context, user *domain.User) error
	LinkIdentity(ctx context.Context, userID string, identity domain.ExternalIdentity) error
}

// TenantRepository persists tenants. The signup flow is its only caller in
// this service; tenant management proper lives elsewhere.
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
}
