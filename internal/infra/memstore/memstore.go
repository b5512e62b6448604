// Package memstore is an in-memory implementation of the storage ports.
// It backs local development and tests when no PostgREST endpoint is
// configured. Data does not survive a restart.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
)

// Store holds all aggregates behind a single RWMutex.
type Store struct {
	mu      sync.RWMutex
	users   map[string]domain.AuthUser // keyed by lowercased email
	tenants map[string]domain.Tenant   // keyed by id
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:   make(map[string]domain.AuthUser),
		tenants: make(map[string]domain.Tenant),
	}
}

// GetAuthUserByEmail returns a copy of the credential record, or nil.
func (s *Store) GetAuthUserByEmail(_ context.Context, email string) (*domain.AuthUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userKey(email)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// CreateAuthUser stores a new credential record.
func (s *Store) CreateAuthUser(_ context.Context, user *domain.AuthUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(user.Email)
	if _, exists := s.users[key]; exists {
		return &domain.ErrConflict{Message: "email already registered"}
	}
	s.users[key] = *user
	return nil
}

// UpdateAuthUser overwrites an existing credential record.
func (s *Store) UpdateAuthUser(_ context.Context, user *domain.AuthUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(user.Email)
	if _, exists := s.users[key]; !exists {
		return &domain.ErrNotFound{Resource: "auth user", ID: user.Email}
	}
	s.users[key] = *user
	return nil
}

// DeleteAuthUser removes the credential record for an email.
func (s *Store) DeleteAuthUser(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(email)
	if _, exists := s.users[key]; !exists {
		return &domain.ErrNotFound{Resource: "auth user", ID: email}
	}
	delete(s.users, key)
	return nil
}

// GetTenant returns a deep copy of the tenant, or nil.
func (s *Store) GetTenant(_ context.Context, id string) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, nil
	}
	out := cloneTenant(t)
	return &out, nil
}

// FindTenantsByUserEmail returns every tenant with a grant for the email.
func (s *Store) FindTenantsByUserEmail(_ context.Context, email string) ([]domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := userKey(email)
	var out []domain.Tenant
	for _, t := range s.tenants {
		if len(t.Grants[key]) > 0 {
			out = append(out, cloneTenant(t))
		}
	}
	return out, nil
}

// CreateTenant stores a new tenant aggregate.
func (s *Store) CreateTenant(_ context.Context, tenant *domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenant.ID]; exists {
		return &domain.ErrConflict{Message: "tenant already exists"}
	}
	s.tenants[tenant.ID] = cloneTenant(*tenant)
	return nil
}

// UpdateTenant overwrites an existing tenant aggregate.
func (s *Store) UpdateTenant(_ context.Context, tenant *domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenant.ID]; !exists {
		return &domain.ErrNotFound{Resource: "tenant", ID: tenant.ID}
	}
	s.tenants[tenant.ID] = cloneTenant(*tenant)
	return nil
}

// DeleteTenant removes a tenant aggregate.
func (s *Store) DeleteTenant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[id]; !exists {
		return &domain.ErrNotFound{Resource: "tenant", ID: id}
	}
	delete(s.tenants, id)
	return nil
}

func userKey(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// cloneTenant copies the aggregate so callers cannot mutate stored state.
func cloneTenant(t domain.Tenant) domain.Tenant {
	grants := make(map[string][]domain.RoleGrant, len(t.Grants))
	for email, gs := range t.Grants {
		copied := make([]domain.RoleGrant, len(gs))
		copy(copied, gs)
		grants[email] = copied
	}
	t.Grants = grants
	return t
}
