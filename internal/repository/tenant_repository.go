package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/pkg/database"
)

// tenantRepository implements TenantRepository interface
type tenantRepository struct {
	q database.Querier
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(q database.Querier) TenantRepository {
	return &tenantRepository{q: q}
}

// Create persists a new tenant
func (r *tenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	query := `INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)`

	if tenant.ID == "" {
		tenant.ID = domain.NewTenantID()
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now()
	}

	_, err := r.q.ExecContext(ctx, query, tenant.ID, tenant.Name, tenant.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}
