package api

import (
	"encoding/json"
	"net/http"

	"gatekeeper/internal/models"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/validate"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// SetupRoutes configures the HTTP routes and the governance middleware chain:
// recovery → request stats/logging → validator → rate limiting (general for
// everything, api for /api/v1, ai for /generate) → authentication where a
// route requires it.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	byClientIP := ratelimit.KeyFunc(validate.ClientIP)

	router.Use(recoveryMiddleware)
	router.Use(statsMiddleware(handlers.stats))
	router.Use(validationMiddleware(handlers.validator))
	router.Use(ratelimit.Middleware("general", handlers.limiters["general"], byClientIP, handlers.auditLog))

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/echo", handlers.Echo).Methods("GET")

	// The health alias is registered on the root router above, so the
	// api-tier limiter never applies to it.
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(ratelimit.Middleware("api", handlers.limiters["api"], byClientIP, handlers.auditLog))

	api.HandleFunc("/auth/login", handlers.Login).Methods("POST")
	api.HandleFunc("/auth/logout", handlers.Logout).Methods("POST")
	api.HandleFunc("/upload", handlers.Upload).Methods("POST")

	generateAPI := api.PathPrefix("/generate").Subrouter()
	generateAPI.Use(ratelimit.Middleware("ai", handlers.limiters["ai"], byClientIP, handlers.auditLog))
	generateAPI.Use(authMiddleware(handlers))
	generateAPI.HandleFunc("", handlers.Generate).Methods("POST")

	adminAPI := api.PathPrefix("").Subrouter()
	adminAPI.Use(authMiddleware(handlers))
	adminAPI.Use(requirePermission("admin"))
	adminAPI.HandleFunc("/audit/{ip}", handlers.AuditQuery).Methods("GET")
	adminAPI.HandleFunc("/ratelimit/{scope}/{identifier}", handlers.RateLimitReset).Methods("DELETE")
	adminAPI.HandleFunc("/reputation", handlers.ReputationList).Methods("GET")
	adminAPI.HandleFunc("/reputation/block", handlers.ReputationBlock).Methods("POST")
	adminAPI.HandleFunc("/reputation/{ip}", handlers.ReputationUnblock).Methods("DELETE")

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		errorResp := models.NewErrorResponse("Method not allowed", models.ErrorCodeBadRequest)
		json.NewEncoder(w).Encode(errorResp)
	})

	return router
}
