// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
)

// AuthUserStore persists credential entities. Email is the unique key.
type AuthUserStore interface {
	GetAuthUserByEmail(ctx context.Context, email string) (*domain.AuthUser, error)
	CreateAuthUser(ctx context.Context, user *domain.AuthUser) error
	UpdateAuthUser(ctx context.Context, user *domain.AuthUser) error
	DeleteAuthUser(ctx context.Context, email string) error
}

// TenantStore persists tenant aggregates. Tenants are the root of the
// isolation boundary, so no further scoping applies. Concurrent updates to
// the same tenant are serialized by the storage layer, not here. GetTenant
// hands the caller an aggregate it owns and may mutate freely.
type TenantStore interface {
	GetTenant(ctx context.Context, id string) (*domain.Tenant, error)
	FindTenantsByUserEmail(ctx context.Context, email string) ([]domain.Tenant, error)
	CreateTenant(ctx context.Context, tenant *domain.Tenant) error
	UpdateTenant(ctx context.Context, tenant *domain.Tenant) error
	DeleteTenant(ctx context.Context, id string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// TokenVerifier extracts a verified identity from a bearer token.
// Implemented by the JWT token service; consumed by the HTTP middleware.
type TokenVerifier interface {
	Verify(token string) (*domain.Identity, error)
}
