package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmeireles/escolar-iam-go/internal/domain"
	"github.com/dmeireles/escolar-iam-go/internal/infra/observability"
	"github.com/dmeireles/escolar-iam-go/internal/port"

	"go.uber.org/zap"
)

type contextKey string

const identityContextKey contextKey = "identity"

// JWTAuthMiddleware extracts and verifies the Bearer token and injects the
// resulting identity into the request context. Requests without a valid
// token are rejected with 401.
func JWTAuthMiddleware(verifier port.TokenVerifier, metrics *observability.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				writeError(w, http.StatusUnauthorized, "authorization header must be a Bearer token")
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				if metrics != nil {
					metrics.IncrTokenCheck("failure")
				}
				logger.Warn("token rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if metrics != nil {
				metrics.IncrTokenCheck("success")
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the verified identity set by the auth
// middleware, or nil on unauthenticated requests.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(identityContextKey).(*domain.Identity)
	return identity
}
