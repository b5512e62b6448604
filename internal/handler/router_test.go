package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
	"github.com/dmeireles/escolar-iam-go/internal/handler"
	"github.com/dmeireles/escolar-iam-go/internal/infra/cache"
	"github.com/dmeireles/escolar-iam-go/internal/infra/memstore"
	"github.com/dmeireles/escolar-iam-go/internal/infra/observability"
	"github.com/dmeireles/escolar-iam-go/internal/service"

	"go.uber.org/zap"
)

const testCNPJ = "11.222.333/0001-81"

// cheapHasher keeps HTTP tests fast.
type cheapHasher struct{}

func (cheapHasher) Hash(plaintext string) (string, error) { return "hashed:" + plaintext, nil }
func (cheapHasher) Verify(plaintext, hashed string) bool  { return hashed == "hashed:"+plaintext }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := memstore.New()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	tenantCache := cache.New[*domain.Tenant](time.Minute)
	tokens := service.NewTokenService("test-secret", time.Minute)
	policies := service.NewPoliciesService(metrics, logger)

	authSvc := service.NewAuthService(store, store, tenantCache, cheapHasher{}, tokens, 60, 4, metrics, logger)
	tenantSvc := service.NewTenantService(store, tenantCache, policies, logger)

	return handler.NewRouter(authSvc, tenantSvc, tokens, metrics, logger)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func registerAndLogin(t *testing.T, router http.Handler, email, role, masterID string) (token string, master string) {
	t.Helper()
	reg := map[string]string{"email": email, "password": "s3cret", "role": role}
	if role == "master" {
		reg["cnpj"] = testCNPJ
	} else {
		reg["masterId"] = masterID
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/auth/register", "", reg)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	regResp := decode[service.RegisterResponse](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": email, "password": "s3cret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	loginResp := decode[service.LoginResponse](t, rec)
	return loginResp.Token, regResp.MasterID
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/v1/metrics/auth"} {
		rec := doJSON(t, router, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouter_RegisterAndLogin(t *testing.T) {
	router := newTestRouter(t)
	token, masterID := registerAndLogin(t, router, "owner@school.com", "master", "")
	if token == "" || masterID == "" {
		t.Fatal("expected token and masterId")
	}

	// wrong password
	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "owner@school.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	// duplicate registration
	rec = doJSON(t, router, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": "owner@school.com", "password": "x", "role": "master", "cnpj": testCNPJ,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	// malformed body
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRouter_Me(t *testing.T) {
	router := newTestRouter(t)
	token, masterID := registerAndLogin(t, router, "owner@school.com", "master", "")

	rec := doJSON(t, router, http.MethodGet, "/v1/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	identity := decode[domain.Identity](t, rec)
	if identity.Email != "owner@school.com" || identity.MasterID != masterID {
		t.Errorf("unexpected identity: %+v", identity)
	}

	// no token
	rec = doJSON(t, router, http.MethodGet, "/v1/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	// garbage token
	rec = doJSON(t, router, http.MethodGet, "/v1/auth/me", "garbage", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestRouter_GrantLifecycle(t *testing.T) {
	router := newTestRouter(t)
	token, masterID := registerAndLogin(t, router, "owner@school.com", "master", "")

	// grant a role
	rec := doJSON(t, router, http.MethodPost, "/v1/tenants/"+masterID+"/grants", token, map[string]string{
		"email": "t@school.com", "role": "teacher",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("grant: expected 201, got %d body %s", rec.Code, rec.Body.String())
	}

	// read it back
	rec = doJSON(t, router, http.MethodGet, "/v1/tenants/"+masterID+"/grants/t@school.com", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list grants: expected 200, got %d", rec.Code)
	}
	listed := decode[map[string][]domain.RoleGrant](t, rec)
	if len(listed["grants"]) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(listed["grants"]))
	}

	// deactivate it
	rec = doJSON(t, router, http.MethodDelete, "/v1/tenants/"+masterID+"/grants/t@school.com/0", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: expected 204, got %d body %s", rec.Code, rec.Body.String())
	}

	// history is kept, state flipped
	rec = doJSON(t, router, http.MethodGet, "/v1/tenants/"+masterID+"/grants/t@school.com", token, nil)
	listed = decode[map[string][]domain.RoleGrant](t, rec)
	if len(listed["grants"]) != 1 {
		t.Fatalf("expected grant kept, got %d", len(listed["grants"]))
	}
	if listed["grants"][0].Lifecycle.IsActive() {
		t.Error("expected INACTIVE grant after deactivation")
	}

	// bad index
	rec = doJSON(t, router, http.MethodDelete, "/v1/tenants/"+masterID+"/grants/t@school.com/abc", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-integer index, got %d", rec.Code)
	}
}

func TestRouter_TenantIsolation(t *testing.T) {
	router := newTestRouter(t)
	tokenA, _ := registerAndLogin(t, router, "owner-a@school.com", "master", "")
	_, masterB := registerAndLogin(t, router, "owner-b@school.com", "master", "")

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/tenants/%s/grants", masterB), tokenA, map[string]string{
		"email": "x@school.com", "role": "student",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 across tenants, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_GrantDeniedForInsufficientRole(t *testing.T) {
	router := newTestRouter(t)
	_, masterID := registerAndLogin(t, router, "owner@school.com", "master", "")
	teacherToken, _ := registerAndLogin(t, router, "t@school.com", "teacher", masterID)

	rec := doJSON(t, router, http.MethodPost, "/v1/tenants/"+masterID+"/grants", teacherToken, map[string]string{
		"email": "x@school.com", "role": "student",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for teacher, got %d body %s", rec.Code, rec.Body.String())
	}
}
