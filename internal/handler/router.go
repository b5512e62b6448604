package handler

import (
	"net/http"

	"github.com/dmeireles/escolar-iam-go/internal/infra/observability"
	"github.com/dmeireles/escolar-iam-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	authSvc *service.AuthService,
	tenantSvc *service.TenantService,
	tokens *service.TokenService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Auth metrics snapshot
		r.Get("/metrics/auth", authMetricsHandler(metrics))

		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authRegisterHandler(authSvc, logger))
			r.Post("/login", authLoginHandler(authSvc, logger))

			// Protected
			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(tokens, metrics, logger))
				r.Get("/me", authMeHandler(logger))
			})
		})

		// Tenant grant registry (protected)
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(tokens, metrics, logger))
			r.Post("/tenants/{tenantId}/grants", grantRoleHandler(tenantSvc, logger))
			r.Get("/tenants/{tenantId}/grants/{email}", listGrantsHandler(tenantSvc, logger))
			r.Delete("/tenants/{tenantId}/grants/{email}/{index}", deactivateGrantHandler(tenantSvc, logger))
		})
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func authMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAuthSnapshot())
	}
}
