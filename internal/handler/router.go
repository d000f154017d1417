package handler

import (
	"net/http"
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/observability"
	"github.com/clouddrive/clouddrive-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract defined for the CloudDrive frontend.
func NewRouter(subSvc *service.SubscriptionService, adminSvc *service.AdminService, authSvc *service.AuthService, contactSvc *service.ContactService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(subSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Public: authentication
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authSignUpHandler(authSvc, logger))
			r.Post("/login", authLoginHandler(authSvc, logger))
			r.Post("/password/recover", authRecoverPasswordHandler(authSvc, logger))
			r.Post("/confirmation/resend", authResendConfirmationHandler(authSvc, logger))
		})

		// Public: contact form
		r.Post("/contact", contactSubmitHandler(contactSvc, logger))

		// Metrics snapshot for the admin dashboard
		r.Get("/metrics/requests", requestMetricsHandler(metrics, logger))

		// Protected: the signed-in user's own profile and subscription
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			r.Get("/me/profile", getMyProfileHandler(subSvc, logger))
			r.Put("/me/profile", updateMyProfileHandler(subSvc, logger))
			r.Post("/me/subscription", chooseFirstPlanHandler(subSvc, logger))
			r.Put("/me/subscription", requestPlanChangeHandler(subSvc, logger))
		})

		// Protected: admin request management
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			r.Get("/admin/requests", listPendingRequestsHandler(adminSvc, logger))
			r.Post("/admin/requests/{userId}/accept", adminAcceptHandler(adminSvc, logger))
			r.Post("/admin/requests/{userId}/refuse", adminRefuseHandler(adminSvc, logger))
			r.Get("/admin/overview", adminOverviewHandler(adminSvc, logger))
		})
	})

	return r
}

// ============================================================
// Probes
// ============================================================

func healthzHandler(subSvc *service.SubscriptionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "clouddrive-bfa", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if subSvc != nil {
			start := time.Now()
			err := subSvc.Ping(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthResponse{
			Status:    overallStatus,
			Services:  services,
			Timestamp: now,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
