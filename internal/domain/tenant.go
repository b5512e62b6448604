package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RoleGrant is one grant event of a role to an email within a tenant.
// Grants are history-preserving: deactivation flips the Lifecycle, the
// entry itself is never removed.
type RoleGrant struct {
	Role      Role      `json:"role"`
	Lifecycle Lifecycle `json:"lifecycle"`
}

// Tenant is the isolation boundary every domain resource lives under.
// It owns the legal identifier (CNPJ) and the registry mapping user email
// to the ordered list of role grants issued in that tenant.
type Tenant struct {
	ID     string                 `json:"id"`
	CNPJ   string                 `json:"cnpj"`
	Grants map[string][]RoleGrant `json:"grants"`
}

// NewTenant validates the CNPJ and builds an empty tenant registry.
// An empty id gets a generated one.
func NewTenant(id, cnpj string) (*Tenant, error) {
	if err := ValidateCNPJ(cnpj); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.New().String()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, &ErrValidation{Field: "id", Message: "tenant id is not a valid id"}
	}
	return &Tenant{
		ID:     id,
		CNPJ:   onlyDigits(cnpj),
		Grants: make(map[string][]RoleGrant),
	}, nil
}

// SetCNPJ validates the checksum and replaces the legal identifier.
func (t *Tenant) SetCNPJ(cnpj string) error {
	if err := ValidateCNPJ(cnpj); err != nil {
		return err
	}
	t.CNPJ = onlyDigits(cnpj)
	return nil
}

// AddUserRole appends a new active grant for the email. Multiple grants of
// the same role are permitted; each represents a separate grant event.
func (t *Tenant) AddUserRole(email, rawRole string) error {
	role, err := ParseRole(rawRole)
	if err != nil {
		return err
	}
	email, err = NormalizeEmail(email)
	if err != nil {
		return err
	}
	if t.Grants == nil {
		t.Grants = make(map[string][]RoleGrant)
	}
	t.Grants[email] = append(t.Grants[email], RoleGrant{
		Role:      role,
		Lifecycle: NewLifecycle(),
	})
	return nil
}

// UserGrants returns the grant history for an email, empty when none.
func (t *Tenant) UserGrants(email string) []RoleGrant {
	email = strings.TrimSpace(strings.ToLower(email))
	return t.Grants[email]
}

// HasActiveGrant reports whether the email holds at least one grant in the
// ACTIVE state.
func (t *Tenant) HasActiveGrant(email string) bool {
	for _, g := range t.UserGrants(email) {
		if g.Lifecycle.IsActive() {
			return true
		}
	}
	return false
}

// DeactivateGrant transitions the grant at index to INACTIVE without
// removing it, preserving the audit trail.
func (t *Tenant) DeactivateGrant(email string, index int) error {
	email = strings.TrimSpace(strings.ToLower(email))
	grants := t.Grants[email]
	if index < 0 || index >= len(grants) {
		return &ErrNotFound{Resource: "role grant", ID: fmt.Sprintf("%s[%d]", email, index)}
	}
	grants[index].Lifecycle = grants[index].Lifecycle.Deactivate()
	return nil
}
