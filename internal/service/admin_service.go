package service

import (
	"context"
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/observability"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/resilience"
	"github.com/clouddrive/clouddrive-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var adminTracer = otel.Tracer("service/admin")

const overviewMessageLimit = 10

// AdminService is the admin-side controller: listing pending plan-change
// requests and resolving them. Every operation requires the
// request-management capability, sourced from the caller's profile row.
type AdminService struct {
	store    port.ProfileStore
	contacts port.ContactStore
	cache    port.Cache[domain.Profile]
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAdminService creates the admin controller. The cache is shared with the
// client-facing controller so resolved requests are visible immediately.
func NewAdminService(store port.ProfileStore, contacts port.ContactStore, cache port.Cache[domain.Profile], bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *AdminService {
	return &AdminService{
		store:    store,
		contacts: contacts,
		cache:    cache,
		bulkhead: bulkhead,
		metrics:  metrics,
		logger:   logger,
	}
}

// ListPendingRequests returns outstanding requests, newest first. Rows whose
// deadline passed are healed to expired on the way through and excluded.
func (s *AdminService) ListPendingRequests(ctx context.Context, identity domain.Identity) ([]domain.Profile, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ListPendingRequests")
	defer span.End()

	if _, err := s.authorize(ctx, identity); err != nil {
		return nil, err
	}

	return s.listPending(ctx)
}

// Accept resolves a pending request in the user's favor. The expiry sweep
// runs first: an already-expired request self-heals and cannot be accepted.
func (s *AdminService) Accept(ctx context.Context, identity domain.Identity, userID string) (*domain.Profile, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.Accept")
	defer span.End()
	span.SetAttributes(attribute.String("target.user_id", userID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("admin_accept", time.Since(start)) }()

	if _, err := s.authorize(ctx, identity); err != nil {
		return nil, err
	}

	profile, err := s.loadTarget(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := profile.AcceptRequest(now); err != nil {
		return nil, err
	}

	updated, err := s.persist(ctx, profile, now)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrRequestOutcome(observability.OutcomeAccepted)
	s.logger.Info("plan change accepted",
		zap.String("admin_id", identity.UserID),
		zap.String("user_id", userID),
		zap.String("plan", string(updated.CurrentPlan)),
	)

	return updated, nil
}

// Refuse resolves a pending request against the user; the current plan is
// untouched. An empty note falls back to the default refusal text.
func (s *AdminService) Refuse(ctx context.Context, identity domain.Identity, userID, note string) (*domain.Profile, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.Refuse")
	defer span.End()
	span.SetAttributes(attribute.String("target.user_id", userID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("admin_refuse", time.Since(start)) }()

	if _, err := s.authorize(ctx, identity); err != nil {
		return nil, err
	}

	profile, err := s.loadTarget(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := profile.RefuseRequest(note, now); err != nil {
		return nil, err
	}

	updated, err := s.persist(ctx, profile, now)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrRequestOutcome(observability.OutcomeRefused)
	s.logger.Info("plan change refused",
		zap.String("admin_id", identity.UserID),
		zap.String("user_id", userID),
	)

	return updated, nil
}

// Overview loads the admin dashboard aggregate: pending requests and recent
// contact messages, fetched concurrently.
func (s *AdminService) Overview(ctx context.Context, identity domain.Identity) (*domain.AdminOverview, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.Overview")
	defer span.End()

	if _, err := s.authorize(ctx, identity); err != nil {
		return nil, err
	}

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.bulkhead.Release()

	overview := &domain.AdminOverview{GeneratedAt: time.Now()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pending, err := s.listPending(gctx)
		if err != nil {
			return err
		}
		overview.PendingRequests = pending
		return nil
	})
	g.Go(func() error {
		messages, err := s.contacts.ListRecentContactMessages(gctx, overviewMessageLimit)
		if err != nil {
			return err
		}
		overview.RecentMessages = messages
		return nil
	})

	if err := g.Wait(); err != nil {
		s.metrics.IncrExternalError("supabase/overview")
		return nil, err
	}

	return overview, nil
}

// authorize resolves the caller's capability. The admin flag comes from the
// caller's own profile row, not from the token.
func (s *AdminService) authorize(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	if identity.Anonymous() {
		return identity, &domain.ErrNotAuthenticated{}
	}

	if !identity.Admin {
		profile, err := s.store.GetProfile(ctx, identity.UserID)
		if err != nil {
			return identity, err
		}
		if profile != nil {
			identity.Admin = profile.IsAdmin
		}
	}

	if !identity.Can(domain.CapabilityManageRequests) {
		s.logger.Warn("admin operation forbidden",
			zap.String("user_id", identity.UserID),
		)
		return identity, &domain.ErrForbidden{Capability: domain.CapabilityManageRequests}
	}
	return identity, nil
}

func (s *AdminService) loadTarget(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}

	// Sweep before any decision. The healed row is persisted even when the
	// admin action then fails, so the store converges either way.
	now := time.Now()
	if profile.SweepExpiry(now) {
		updated, err := s.persist(ctx, profile, now)
		if err != nil {
			return nil, err
		}
		s.metrics.IncrRequestOutcome(observability.OutcomeExpired)
		s.logger.Info("pending request expired before admin action",
			zap.String("user_id", userID),
		)
		return updated, nil
	}
	return profile, nil
}

func (s *AdminService) listPending(ctx context.Context) ([]domain.Profile, error) {
	rows, err := s.store.ListPendingRequests(ctx)
	if err != nil {
		s.metrics.IncrExternalError("supabase/profiles")
		return nil, err
	}

	now := time.Now()
	pending := make([]domain.Profile, 0, len(rows))
	for i := range rows {
		p := rows[i]
		if p.SweepExpiry(now) {
			if _, err := s.persist(ctx, &p, now); err != nil {
				return nil, err
			}
			s.metrics.IncrRequestOutcome(observability.OutcomeExpired)
			continue
		}
		pending = append(pending, p)
	}
	return pending, nil
}

func (s *AdminService) persist(ctx context.Context, p *domain.Profile, now time.Time) (*domain.Profile, error) {
	updated, err := s.store.UpdateProfile(ctx, p.UserID, requestStateFields(p, now))
	if err != nil {
		s.metrics.IncrExternalError("supabase/profiles")
		return nil, err
	}
	s.cache.Set(p.UserID, *updated)
	return updated, nil
}
