package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/observability"
	"github.com/clouddrive/clouddrive-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Admin — pending request management
// ============================================================

func listPendingRequestsHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/requests")
		defer span.End()

		identity := IdentityFromContext(ctx)
		pending, err := svc.ListPendingRequests(ctx, identity)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		out := make([]profileResponse, 0, len(pending))
		for i := range pending {
			out = append(out, toProfileResponse(&pending[i]))
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"requests": out,
			"count":    len(out),
		})
	}
}

func adminAcceptHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/requests/{userId}/accept")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		span.SetAttributes(attribute.String("target.user_id", userID))

		identity := IdentityFromContext(ctx)
		profile, err := svc.Accept(ctx, identity, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, toProfileResponse(profile))
	}
}

func adminRefuseHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/requests/{userId}/refuse")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		span.SetAttributes(attribute.String("target.user_id", userID))

		// The note is optional; an absent or empty body means the default
		// refusal text.
		var req struct {
			Note string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		identity := IdentityFromContext(ctx)
		profile, err := svc.Refuse(ctx, identity, userID, req.Note)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, toProfileResponse(profile))
	}
}

func adminOverviewHandler(svc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/overview")
		defer span.End()

		identity := IdentityFromContext(ctx)
		overview, err := svc.Overview(ctx, identity)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		pending := make([]profileResponse, 0, len(overview.PendingRequests))
		for i := range overview.PendingRequests {
			pending = append(pending, toProfileResponse(&overview.PendingRequests[i]))
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"pending_requests": pending,
			"recent_messages":  overview.RecentMessages,
			"generated_at":     overview.GeneratedAt,
		})
	}
}

// ============================================================
// Metrics — GET /v1/metrics/requests
// ============================================================

func requestMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.GetRequestsSnapshot()
		writeJSON(w, http.StatusOK, snapshot)
	}
}
