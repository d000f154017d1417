// Package service contains the application controllers sitting between the
// HTTP handlers and the store ports: the user-side subscription workflow,
// the admin request queue, delegated auth, and the contact form.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/observability"
	"github.com/clouddrive/clouddrive-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var subTracer = otel.Tracer("service/subscription")

// SubscriptionService orchestrates the user-side subscription operations.
type SubscriptionService struct {
	store      port.ProfileStore
	cache      port.Cache[domain.Profile]
	metrics    *observability.Metrics
	logger     *zap.Logger
	pendingTTL time.Duration
}

// NewSubscriptionService creates the client-facing controller. pendingTTL is
// how long a change request may wait for an admin before expiring.
func NewSubscriptionService(store port.ProfileStore, cache port.Cache[domain.Profile], metrics *observability.Metrics, logger *zap.Logger, pendingTTL time.Duration) *SubscriptionService {
	if pendingTTL <= 0 {
		pendingTTL = domain.DefaultPendingTTL
	}
	return &SubscriptionService{
		store:      store,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		pendingTTL: pendingTTL,
	}
}

// Profile returns the caller's profile, creating the row lazily on first
// sign-in and healing a stale pending request before anything is shown.
func (s *SubscriptionService) Profile(ctx context.Context, identity domain.Identity) (*domain.Profile, error) {
	ctx, span := subTracer.Start(ctx, "SubscriptionService.Profile")
	defer span.End()

	return s.loadProfile(ctx, identity)
}

// ChooseFirstPlan activates the first subscription. Immediate, no admin
// mediation: only plan changes go through the request workflow.
func (s *SubscriptionService) ChooseFirstPlan(ctx context.Context, identity domain.Identity, plan domain.Plan) (*domain.Profile, error) {
	ctx, span := subTracer.Start(ctx, "SubscriptionService.ChooseFirstPlan")
	defer span.End()
	span.SetAttributes(attribute.String("plan", string(plan)))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("choose_first_plan", time.Since(start)) }()

	profile, err := s.loadProfile(ctx, identity)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := profile.Activate(plan, now); err != nil {
		return nil, err
	}

	updated, err := s.persistRequestState(ctx, profile, now)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrRequestOutcome(observability.OutcomeActivated)
	s.logger.Info("first plan activated",
		zap.String("user_id", identity.UserID),
		zap.String("plan", string(plan)),
	)

	return updated, nil
}

// RequestPlanChange opens a change request awaiting an admin decision within
// the pending TTL. A request for the already-active plan is rejected without
// touching the store.
func (s *SubscriptionService) RequestPlanChange(ctx context.Context, identity domain.Identity, plan domain.Plan) (*domain.Profile, error) {
	ctx, span := subTracer.Start(ctx, "SubscriptionService.RequestPlanChange")
	defer span.End()
	span.SetAttributes(attribute.String("plan", string(plan)))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("request_plan_change", time.Since(start)) }()

	profile, err := s.loadProfile(ctx, identity)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := profile.RequestChange(plan, now, s.pendingTTL); err != nil {
		return nil, err
	}

	updated, err := s.persistRequestState(ctx, profile, now)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrRequestOutcome(observability.OutcomeRequested)
	s.logger.Info("plan change requested",
		zap.String("user_id", identity.UserID),
		zap.String("from", string(updated.CurrentPlan)),
		zap.String("to", string(plan)),
		zap.Timep("expires_at", updated.RequestExpiresAt),
	)

	return updated, nil
}

// UpdateProfile changes the caller's display fields. No state logic.
func (s *SubscriptionService) UpdateProfile(ctx context.Context, identity domain.Identity, firstName, lastName string) (*domain.Profile, error) {
	ctx, span := subTracer.Start(ctx, "SubscriptionService.UpdateProfile")
	defer span.End()

	if identity.Anonymous() {
		return nil, &domain.ErrNotAuthenticated{}
	}

	updates := map[string]any{}
	if v := strings.TrimSpace(firstName); v != "" {
		updates["first_name"] = v
	}
	if v := strings.TrimSpace(lastName); v != "" {
		updates["last_name"] = v
	}
	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}
	updates["updated_at"] = time.Now().Format(time.RFC3339)

	updated, err := s.store.UpdateProfile(ctx, identity.UserID, updates)
	if err != nil {
		s.metrics.IncrExternalError("supabase/profiles")
		return nil, err
	}

	s.cache.Set(identity.UserID, *updated)
	s.logger.Info("profile updated", zap.String("user_id", identity.UserID))
	return updated, nil
}

// Ping checks the profile store, used by the health endpoint.
func (s *SubscriptionService) Ping(ctx context.Context) error {
	_, err := s.store.ListPendingRequests(ctx)
	return err
}

// loadProfile is the shared read path: cache, then store with lazy creation,
// then the expiry sweep. A sweep that fires is persisted immediately so
// every later observer sees the healed row.
func (s *SubscriptionService) loadProfile(ctx context.Context, identity domain.Identity) (*domain.Profile, error) {
	if identity.Anonymous() {
		return nil, &domain.ErrNotAuthenticated{}
	}

	now := time.Now()
	var profile *domain.Profile

	if cached, ok := s.cache.Get(identity.UserID); ok {
		s.metrics.IncrCacheHit("profile")
		profile = &cached
	} else {
		s.metrics.IncrCacheMiss("profile")

		stored, err := s.store.GetProfile(ctx, identity.UserID)
		if err != nil {
			s.metrics.IncrExternalError("supabase/profiles")
			return nil, err
		}
		if stored == nil {
			created, err := s.store.CreateProfile(ctx, domain.NewProfile(identity.UserID, identity.Email, now))
			if err != nil {
				s.metrics.IncrExternalError("supabase/profiles")
				return nil, err
			}
			s.logger.Info("profile created on first sign-in",
				zap.String("user_id", identity.UserID),
			)
			stored = created
		}
		profile = stored
	}

	if profile.SweepExpiry(now) {
		updated, err := s.persistRequestState(ctx, profile, now)
		if err != nil {
			return nil, err
		}
		profile = updated

		s.metrics.IncrRequestOutcome(observability.OutcomeExpired)
		s.logger.Info("pending request expired on read",
			zap.String("user_id", identity.UserID),
		)
	}

	s.cache.Set(identity.UserID, *profile)
	return profile, nil
}

// persistRequestState writes the full plan/request field set produced by a
// transition in one row update, then refreshes the cache. Writing the whole
// set keeps the stored invariants in lockstep with the state machine instead
// of re-deriving partial updates per call site.
func (s *SubscriptionService) persistRequestState(ctx context.Context, p *domain.Profile, now time.Time) (*domain.Profile, error) {
	updated, err := s.store.UpdateProfile(ctx, p.UserID, requestStateFields(p, now))
	if err != nil {
		s.metrics.IncrExternalError("supabase/profiles")
		return nil, err
	}
	s.cache.Set(p.UserID, *updated)
	return updated, nil
}

// requestStateFields maps a profile's plan/request state to table columns.
func requestStateFields(p *domain.Profile, now time.Time) map[string]any {
	return map[string]any{
		"plan":               string(p.CurrentPlan),
		"pending_plan":       nullablePlan(p.PendingPlan),
		"request_status":     string(p.RequestStatus),
		"request_note":       nullableString(p.RequestNote),
		"request_created_at": nullableTime(p.RequestCreatedAt),
		"request_expires_at": nullableTime(p.RequestExpiresAt),
		"request_handled_at": nullableTime(p.RequestHandledAt),
		"updated_at":         now.Format(time.RFC3339),
	}
}

func nullablePlan(p domain.Plan) any {
	if p == "" {
		return nil
	}
	return string(p)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
