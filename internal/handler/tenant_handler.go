package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
	"github.com/dmeireles/escolar-iam-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// grantRoleHandler — POST /v1/tenants/{tenantId}/grants
func grantRoleHandler(tenantSvc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tenants/{tenantId}/grants")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		var req struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		grants, err := tenantSvc.GrantRole(ctx, IdentityFromContext(ctx), tenantID, req.Email, req.Role)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"grants": grants})
	}
}

// listGrantsHandler — GET /v1/tenants/{tenantId}/grants/{email}
func listGrantsHandler(tenantSvc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tenants/{tenantId}/grants/{email}")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		email := chi.URLParam(r, "email")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		grants, err := tenantSvc.Grants(ctx, IdentityFromContext(ctx), tenantID, email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if grants == nil {
			grants = []domain.RoleGrant{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
	}
}

// deactivateGrantHandler — DELETE /v1/tenants/{tenantId}/grants/{email}/{index}
// The grant is flipped to INACTIVE, never removed.
func deactivateGrantHandler(tenantSvc *service.TenantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/tenants/{tenantId}/grants/{email}/{index}")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		email := chi.URLParam(r, "email")
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "index must be an integer")
			return
		}

		if err := tenantSvc.DeactivateGrant(ctx, IdentityFromContext(ctx), tenantID, email, index); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
