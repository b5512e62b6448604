package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
	"github.com/dmeireles/escolar-iam-go/internal/infra/memstore"
)

func seedTenant(t *testing.T, store *memstore.Store, email string) *domain.Tenant {
	t.Helper()
	tenant, err := domain.NewTenant("", "11.222.333/0001-81")
	if err != nil {
		t.Fatalf("new tenant: %v", err)
	}
	if err := tenant.AddUserRole(email, "master"); err != nil {
		t.Fatalf("add grant: %v", err)
	}
	if err := store.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tenant
}

func TestStore_AuthUserCRUD(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	user, err := domain.NewAuthUser("Owner@School.com", "s3cret", "master", "", false)
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := store.CreateAuthUser(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	var conflict *domain.ErrConflict
	if err := store.CreateAuthUser(ctx, user); !errors.As(err, &conflict) {
		t.Errorf("expected conflict on duplicate, got %v", err)
	}

	// lookup is case-insensitive on email
	got, err := store.GetAuthUserByEmail(ctx, "OWNER@school.com")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}

	got.Role = domain.RoleWorker
	if err := store.UpdateAuthUser(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _ := store.GetAuthUserByEmail(ctx, "owner@school.com")
	if updated.Role != domain.RoleWorker {
		t.Errorf("expected updated role, got %s", updated.Role)
	}

	if err := store.DeleteAuthUser(ctx, "owner@school.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, _ := store.GetAuthUserByEmail(ctx, "owner@school.com")
	if gone != nil {
		t.Error("expected nil after delete")
	}

	var notFound *domain.ErrNotFound
	if err := store.DeleteAuthUser(ctx, "owner@school.com"); !errors.As(err, &notFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestStore_FindTenantsByUserEmail(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	a := seedTenant(t, store, "shared@school.com")
	b := seedTenant(t, store, "shared@school.com")
	seedTenant(t, store, "other@school.com")

	tenants, err := store.FindTenantsByUserEmail(ctx, "shared@school.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(tenants) != 2 {
		t.Fatalf("expected 2 tenants, got %d", len(tenants))
	}
	ids := map[string]bool{tenants[0].ID: true, tenants[1].ID: true}
	if !ids[a.ID] || !ids[b.ID] {
		t.Errorf("unexpected tenant ids: %v", ids)
	}

	none, err := store.FindTenantsByUserEmail(ctx, "nobody@school.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no tenants, got %d", len(none))
	}
}

func TestStore_GetTenantReturnsCopy(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	tenant := seedTenant(t, store, "owner@school.com")

	loaded, _ := store.GetTenant(ctx, tenant.ID)
	if err := loaded.DeactivateGrant("owner@school.com", 0); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// mutation of the copy must not leak into the store
	fresh, _ := store.GetTenant(ctx, tenant.ID)
	if !fresh.HasActiveGrant("owner@school.com") {
		t.Error("stored tenant was mutated through a returned copy")
	}
}
