package repository

import (
	"context"
	"database/sql"

	"github.com/platformplatform/identity-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	EmailLogin    EmailLoginRepository
	ExternalLogin ExternalLoginRepository
	Session       SessionRepository
	User          UserRepository
	Tenant        TenantRepository
}

// NewRepositories creates all repositories bound to the given querier.
func newRepositories(q database.Querier) *Repositories {
	return &Repositories{
		EmailLogin:    NewEmailLoginRepository(q),
		ExternalLogin: NewExternalLoginRepository(q),
		Session:       NewSessionRepository(q),
		User:          NewUserRepository(q),
		Tenant:        NewTenantRepository(q),
	}
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return newRepositories(db.DB)
}

// WithTx returns repositories rebound to tx so every write of one command
// commits or rolls back atomically.
func (r *Repositories) WithTx(tx *sql.Tx) *Repositories {
	return newRepositories(tx)
}

// UnitOfWork runs a command's data access as one atomic unit. The callback
// receives repositories bound to the unit; returning an error discards every
// write, returning nil commits them.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(repos *Repositories) error) error
}

type unitOfWork struct {
	db *database.Postgres
}

// NewUnitOfWork creates a transaction-backed unit of work.
func NewUnitOfWork(db *database.Postgres) UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Execute(ctx context.Context, fn func(repos *Repositories) error) error {
	return u.db.WithinTransaction(ctx, func(tx *sql.Tx) error {
		return fn(newRepositories(tx))
	})
}
