package postgrest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
	"github.com/dmeireles/escolar-iam-go/internal/infra/postgrest"
	"github.com/dmeireles/escolar-iam-go/internal/infra/resilience"

	"go.uber.org/zap"
)

func newClient(t *testing.T, handler http.Handler) (*postgrest.Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := postgrest.NewClient(
		srv.Client(),
		srv.URL,
		"anon-key",
		"service-key",
		resilience.NewCircuitBreaker("postgrest-test"),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
	return client, srv.Close
}

func TestAuthUserStore_GetAuthUserByEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/auth_users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("missing apikey header")
		}
		if r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("missing service key header")
		}
		switch r.URL.Query().Get("email") {
		case "eq.owner@school.com":
			json.NewEncoder(w).Encode([]map[string]any{{
				"id":            "user-1",
				"email":         "owner@school.com",
				"password_hash": "hashed",
				"is_hashed":     true,
				"role":          "master",
				"master_id":     "tenant-1",
			}})
		default:
			w.Write([]byte("[]"))
		}
	})

	client, closeSrv := newClient(t, mux)
	defer closeSrv()
	store := postgrest.NewAuthUserStore(client, zap.NewNop())

	user, err := store.GetAuthUserByEmail(context.Background(), "owner@school.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user == nil || user.ID != "user-1" || user.Role != domain.RoleMaster || !user.IsHashed {
		t.Fatalf("unexpected user: %+v", user)
	}

	missing, err := store.GetAuthUserByEmail(context.Background(), "nobody@school.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown email, got %+v", missing)
	}
}

func TestAuthUserStore_GetAuthUserByEmail_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/auth_users", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	client, closeSrv := newClient(t, mux)
	defer closeSrv()
	store := postgrest.NewAuthUserStore(client, zap.NewNop())

	_, err := store.GetAuthUserByEmail(context.Background(), "owner@school.com")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected external-service error, got %v", err)
	}
}

func TestTenantStore_RoundTrip(t *testing.T) {
	var tenantRows []map[string]any
	var grantRows []map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/tenants", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var row map[string]any
			json.NewDecoder(r.Body).Decode(&row)
			tenantRows = append(tenantRows, row)
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			id := r.URL.Query().Get("id")
			out := []map[string]any{}
			for _, row := range tenantRows {
				if "eq."+row["id"].(string) == id {
					out = append(out, row)
				}
			}
			json.NewEncoder(w).Encode(out)
		}
	})
	mux.HandleFunc("/rest/v1/tenant_user_roles", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var rows []map[string]any
			json.NewDecoder(r.Body).Decode(&rows)
			grantRows = append(grantRows, rows...)
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			id := r.URL.Query().Get("tenant_id")
			out := []map[string]any{}
			for _, row := range grantRows {
				if "eq."+row["tenant_id"].(string) == id {
					out = append(out, row)
				}
			}
			json.NewEncoder(w).Encode(out)
		}
	})

	client, closeSrv := newClient(t, mux)
	defer closeSrv()
	store := postgrest.NewTenantStore(client, zap.NewNop())

	tenant, err := domain.NewTenant("", "11.222.333/0001-81")
	if err != nil {
		t.Fatalf("new tenant: %v", err)
	}
	if err := tenant.AddUserRole("owner@school.com", "master"); err != nil {
		t.Fatalf("add grant: %v", err)
	}

	if err := store.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("create: %v", err)
	}

	loaded, err := store.GetTenant(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected tenant, got nil")
	}
	if loaded.CNPJ != "11222333000181" {
		t.Errorf("expected digits-only CNPJ, got %q", loaded.CNPJ)
	}
	if !loaded.HasActiveGrant("owner@school.com") {
		t.Errorf("expected active grant, got %+v", loaded.Grants)
	}

	missing, err := store.GetTenant(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown tenant, got %+v", missing)
	}
}
