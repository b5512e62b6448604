package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/dmeireles/escolar-iam-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// tenantRow mirrors the tenants table.
type tenantRow struct {
	ID   string `json:"id"`
	CNPJ string `json:"cnpj"`
}

// grantRow mirrors the tenant_user_roles table. Position preserves the
// order grants were issued in, so the audit trail survives round-trips.
type grantRow struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	State    string `json:"state"`
	Verified bool   `json:"verified"`
	Position int    `json:"position"`
}

// TenantStore implements port.TenantStore on top of PostgREST, spreading
// the tenant aggregate over the tenants and tenant_user_roles tables.
type TenantStore struct {
	client *Client
	logger *zap.Logger
}

// NewTenantStore creates a tenant store.
func NewTenantStore(client *Client, logger *zap.Logger) *TenantStore {
	return &TenantStore{client: client, logger: logger}
}

// GetTenant loads a tenant and its full grant registry, or nil when the
// tenant does not exist.
func (s *TenantStore) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "TenantStore.GetTenant")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", id))

	path := fmt.Sprintf("tenants?id=eq.%s&limit=1", url.QueryEscape(id))

	var body []byte
	err := s.client.execute(ctx, func() error {
		var err error
		body, err = s.client.doGet(ctx, path)
		return err
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, nil
	}

	var rows []tenantRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	tenant := &domain.Tenant{
		ID:     rows[0].ID,
		CNPJ:   rows[0].CNPJ,
		Grants: make(map[string][]domain.RoleGrant),
	}
	if err := s.loadGrants(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// FindTenantsByUserEmail returns every tenant holding at least one grant
// (active or not) for the email.
func (s *TenantStore) FindTenantsByUserEmail(ctx context.Context, email string) ([]domain.Tenant, error) {
	ctx, span := tracer.Start(ctx, "TenantStore.FindTenantsByUserEmail")
	defer span.End()

	path := fmt.Sprintf("tenant_user_roles?email=eq.%s&select=tenant_id", url.QueryEscape(email))

	var body []byte
	err := s.client.execute(ctx, func() error {
		var err error
		body, err = s.client.doGet(ctx, path)
		return err
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, nil
	}

	var refs []struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.Unmarshal(body, &refs); err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest", Err: err}
	}

	seen := make(map[string]bool, len(refs))
	tenants := make([]domain.Tenant, 0, len(refs))
	for _, ref := range refs {
		if seen[ref.TenantID] {
			continue
		}
		seen[ref.TenantID] = true

		tenant, err := s.GetTenant(ctx, ref.TenantID)
		if err != nil {
			return nil, err
		}
		if tenant == nil {
			s.logger.Warn("postgrest: dangling grant rows", zap.String("tenant_id", ref.TenantID))
			continue
		}
		tenants = append(tenants, *tenant)
	}
	return tenants, nil
}

// CreateTenant inserts the tenant row and its grant rows.
func (s *TenantStore) CreateTenant(ctx context.Context, tenant *domain.Tenant) error {
	ctx, span := tracer.Start(ctx, "TenantStore.CreateTenant")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenant.ID))

	row := tenantRow{ID: tenant.ID, CNPJ: tenant.CNPJ}
	err := s.client.execute(ctx, func() error {
		return s.client.doPost(ctx, "tenants", row)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return s.writeGrants(ctx, tenant)
}

// UpdateTenant rewrites the tenant row and replaces its grant rows with
// the aggregate's current registry.
func (s *TenantStore) UpdateTenant(ctx context.Context, tenant *domain.Tenant) error {
	ctx, span := tracer.Start(ctx, "TenantStore.UpdateTenant")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenant.ID))

	path := fmt.Sprintf("tenants?id=eq.%s", url.QueryEscape(tenant.ID))
	err := s.client.execute(ctx, func() error {
		return s.client.doPatch(ctx, path, map[string]any{"cnpj": tenant.CNPJ})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}

	grantsPath := fmt.Sprintf("tenant_user_roles?tenant_id=eq.%s", url.QueryEscape(tenant.ID))
	err = s.client.execute(ctx, func() error {
		return s.client.doDelete(ctx, grantsPath)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return s.writeGrants(ctx, tenant)
}

// DeleteTenant removes the tenant row and its grant rows.
func (s *TenantStore) DeleteTenant(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "TenantStore.DeleteTenant")
	defer span.End()

	grantsPath := fmt.Sprintf("tenant_user_roles?tenant_id=eq.%s", url.QueryEscape(id))
	err := s.client.execute(ctx, func() error {
		return s.client.doDelete(ctx, grantsPath)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}

	path := fmt.Sprintf("tenants?id=eq.%s", url.QueryEscape(id))
	err = s.client.execute(ctx, func() error {
		return s.client.doDelete(ctx, path)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}

// loadGrants fills the tenant's registry from tenant_user_roles.
func (s *TenantStore) loadGrants(ctx context.Context, tenant *domain.Tenant) error {
	path := fmt.Sprintf("tenant_user_roles?tenant_id=eq.%s&order=position.asc", url.QueryEscape(tenant.ID))

	var body []byte
	err := s.client.execute(ctx, func() error {
		var err error
		body, err = s.client.doGet(ctx, path)
		return err
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil
	}

	var rows []grantRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}

	for _, r := range rows {
		role, err := domain.ParseRole(r.Role)
		if err != nil {
			s.logger.Error("postgrest: corrupt grant row",
				zap.String("tenant_id", r.TenantID),
				zap.String("email", r.Email),
				zap.Error(err),
			)
			return &domain.ErrExternalService{Service: "postgrest", Err: err}
		}
		lc, err := domain.LifecycleFrom(r.State, r.Verified)
		if err != nil {
			return &domain.ErrExternalService{Service: "postgrest", Err: err}
		}
		tenant.Grants[r.Email] = append(tenant.Grants[r.Email], domain.RoleGrant{
			Role:      role,
			Lifecycle: lc,
		})
	}
	return nil
}

// writeGrants inserts one row per grant. Emails are written in sorted
// order so batch contents are deterministic.
func (s *TenantStore) writeGrants(ctx context.Context, tenant *domain.Tenant) error {
	if len(tenant.Grants) == 0 {
		return nil
	}

	emails := make([]string, 0, len(tenant.Grants))
	for email := range tenant.Grants {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	rows := make([]grantRow, 0, len(emails))
	for _, email := range emails {
		for i, g := range tenant.Grants[email] {
			rows = append(rows, grantRow{
				TenantID: tenant.ID,
				Email:    email,
				Role:     g.Role.String(),
				State:    string(g.Lifecycle.State),
				Verified: g.Lifecycle.Verified,
				Position: i,
			})
		}
	}

	err := s.client.execute(ctx, func() error {
		return s.client.doPost(ctx, "tenant_user_roles", rows)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "postgrest", Err: err}
	}
	return nil
}
