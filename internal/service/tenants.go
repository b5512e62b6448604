package service

import (
	"context"
	"fmt"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
	"github.com/dmeireles/escolar-iam-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tenantsTracer = otel.Tracer("service/tenants")

// TenantService manages the role-grant registry of a tenant. Every
// operation runs through the policy engine before touching the store.
type TenantService struct {
	store    port.TenantStore
	cache    port.Cache[*domain.Tenant]
	policies *PoliciesService
	logger   *zap.Logger
}

// NewTenantService creates the tenant grant-management service.
func NewTenantService(store port.TenantStore, cache port.Cache[*domain.Tenant], policies *PoliciesService, logger *zap.Logger) *TenantService {
	return &TenantService{store: store, cache: cache, policies: policies, logger: logger}
}

// GrantRole appends a new active role grant for email in the tenant.
func (s *TenantService) GrantRole(ctx context.Context, caller *domain.Identity, tenantID, email, role string) ([]domain.RoleGrant, error) {
	ctx, span := tenantsTracer.Start(ctx, "TenantService.GrantRole")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if err := s.policies.Verify(ctx, Decision{
		Identity:       caller,
		TargetMasterID: tenantID,
		Action:         ActionManageGrants,
	}); err != nil {
		return nil, err
	}

	tenant, err := s.loadTenantForUpdate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := tenant.AddUserRole(email, role); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTenant(ctx, tenant); err != nil {
		return nil, fmt.Errorf("update tenant: %w", err)
	}
	s.cache.Delete(tenantID)

	s.logger.Info("role granted",
		zap.String("tenant_id", tenantID),
		zap.String("email", email),
		zap.String("role", role),
		zap.String("granted_by", caller.Email),
	)
	return tenant.UserGrants(email), nil
}

// DeactivateGrant flips the grant at index to INACTIVE, keeping the entry
// for the audit trail.
func (s *TenantService) DeactivateGrant(ctx context.Context, caller *domain.Identity, tenantID, email string, index int) error {
	ctx, span := tenantsTracer.Start(ctx, "TenantService.DeactivateGrant")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if err := s.policies.Verify(ctx, Decision{
		Identity:       caller,
		TargetMasterID: tenantID,
		Action:         ActionManageGrants,
	}); err != nil {
		return err
	}

	tenant, err := s.loadTenantForUpdate(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := tenant.DeactivateGrant(email, index); err != nil {
		return err
	}
	if err := s.store.UpdateTenant(ctx, tenant); err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	s.cache.Delete(tenantID)

	s.logger.Info("grant deactivated",
		zap.String("tenant_id", tenantID),
		zap.String("email", email),
		zap.Int("index", index),
		zap.String("deactivated_by", caller.Email),
	)
	return nil
}

// Grants lists the grant history for an email. Callers may always read
// their own grants; reading someone else's requires administrator.
func (s *TenantService) Grants(ctx context.Context, caller *domain.Identity, tenantID, email string) ([]domain.RoleGrant, error) {
	ctx, span := tenantsTracer.Start(ctx, "TenantService.Grants")
	defer span.End()

	action := ActionReadGrants
	if caller != nil && caller.Email == email {
		action = ActionReadOwn
	}
	if err := s.policies.Verify(ctx, Decision{
		Identity:       caller,
		TargetMasterID: tenantID,
		Action:         action,
	}); err != nil {
		return nil, err
	}

	tenant, err := s.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return tenant.UserGrants(email), nil
}

// loadTenant reads through the cache; policy checks hit tenants on every
// request, so misses are the exception. The cached aggregate is shared
// between requests and must never be mutated.
func (s *TenantService) loadTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	if tenant, ok := s.cache.Get(id); ok {
		return tenant, nil
	}
	tenant, err := s.loadTenantForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(id, tenant)
	return tenant, nil
}

// loadTenantForUpdate bypasses the cache and returns a private copy from
// the store. Mutations work on this copy so a failed write never leaves
// half-applied state behind for cached reads to serve.
func (s *TenantService) loadTenantForUpdate(ctx context.Context, id string) (*domain.Tenant, error) {
	tenant, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if tenant == nil {
		return nil, &domain.ErrNotFound{Resource: "tenant", ID: id}
	}
	return tenant, nil
}
