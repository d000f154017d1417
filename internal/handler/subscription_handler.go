package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// profileResponse is the wire shape of a profile, including the derived
// lifecycle state and display label the frontend renders directly.
type profileResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsAdmin   bool   `json:"is_admin"`

	CurrentPlan      string `json:"current_plan"`
	CurrentPlanLabel string `json:"current_plan_label"`
	PendingPlan      string `json:"pending_plan,omitempty"`
	RequestStatus    string `json:"request_status"`
	RequestNote      string `json:"request_note,omitempty"`
	State            string `json:"state"`

	RequestCreatedAt *time.Time `json:"request_created_at,omitempty"`
	RequestExpiresAt *time.Time `json:"request_expires_at,omitempty"`
	RequestHandledAt *time.Time `json:"request_handled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProfileResponse(p *domain.Profile) profileResponse {
	return profileResponse{
		UserID:           p.UserID,
		Email:            p.Email,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		IsAdmin:          p.IsAdmin,
		CurrentPlan:      string(p.CurrentPlan),
		CurrentPlanLabel: p.CurrentPlan.Label(),
		PendingPlan:      string(p.PendingPlan),
		RequestStatus:    string(p.RequestStatus),
		RequestNote:      p.RequestNote,
		State:            string(p.State()),
		RequestCreatedAt: p.RequestCreatedAt,
		RequestExpiresAt: p.RequestExpiresAt,
		RequestHandledAt: p.RequestHandledAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// ============================================================
// Profile — GET/PUT /v1/me/profile
// ============================================================

func getMyProfileHandler(svc *service.SubscriptionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/profile")
		defer span.End()

		identity := IdentityFromContext(ctx)
		profile, err := svc.Profile(ctx, identity)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, toProfileResponse(profile))
	}
}

func updateMyProfileHandler(svc *service.SubscriptionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/me/profile")
		defer span.End()

		var req struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		identity := IdentityFromContext(ctx)
		profile, err := svc.UpdateProfile(ctx, identity, req.FirstName, req.LastName)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, toProfileResponse(profile))
	}
}

// ============================================================
// Subscription — POST/PUT /v1/me/subscription
// ============================================================

// chooseFirstPlanHandler activates an initial plan for a user who has none.
func chooseFirstPlanHandler(svc *service.SubscriptionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/me/subscription")
		defer span.End()

		var req struct {
			Plan string `json:"plan"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("plan", req.Plan))

		identity := IdentityFromContext(ctx)
		profile, err := svc.ChooseFirstPlan(ctx, identity, domain.Plan(req.Plan))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, toProfileResponse(profile))
	}
}

// requestPlanChangeHandler files a change request that an admin must resolve.
func requestPlanChangeHandler(svc *service.SubscriptionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/me/subscription")
		defer span.End()

		var req struct {
			Plan string `json:"plan"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("plan", req.Plan))

		identity := IdentityFromContext(ctx)
		profile, err := svc.RequestPlanChange(ctx, identity, domain.Plan(req.Plan))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusAccepted, toProfileResponse(profile))
	}
}
