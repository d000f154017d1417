package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/cache"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/observability"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/resilience"
	"github.com/clouddrive/clouddrive-bfa-go/internal/service"

	"go.uber.org/zap"
)

type mockContactStore struct {
	messages []domain.ContactMessage
	err      error
}

func (m *mockContactStore) InsertContactMessage(_ context.Context, msg *domain.ContactMessage) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *mockContactStore) ListRecentContactMessages(_ context.Context, _ int) ([]domain.ContactMessage, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.messages, nil
}

func newAdminService(store *mockProfileStore, contacts *mockContactStore) *service.AdminService {
	return service.NewAdminService(
		store,
		contacts,
		cache.New[domain.Profile](5*time.Minute),
		resilience.NewBulkhead(4),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func adminIdentity() domain.Identity {
	return domain.Identity{UserID: "admin-1", Email: "admin@clouddrive.test", Admin: true}
}

// --- Authorization ---

func TestAdmin_RequiresAuthentication(t *testing.T) {
	svc := newAdminService(newMockProfileStore(), &mockContactStore{})

	_, err := svc.ListPendingRequests(context.Background(), domain.Identity{})
	var notAuth *domain.ErrNotAuthenticated
	if !errors.As(err, &notAuth) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestAdmin_ForbiddenWithoutCapability(t *testing.T) {
	store := newMockProfileStore(storedActiveProfile("user-1", domain.PlanBasic))
	svc := newAdminService(store, &mockContactStore{})

	_, err := svc.ListPendingRequests(context.Background(), identityFor("user-1"))
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if forbidden.Capability != domain.CapabilityManageRequests {
		t.Errorf("expected manage-requests capability, got %q", forbidden.Capability)
	}
}

func TestAdmin_CapabilityResolvedFromProfileRow(t *testing.T) {
	admin := storedActiveProfile("admin-1", domain.PlanBasic)
	admin.IsAdmin = true
	store := newMockProfileStore(admin)
	svc := newAdminService(store, &mockContactStore{})

	// The token carries no admin claim; the flag comes from the profile row.
	identity := domain.Identity{UserID: "admin-1", Email: "admin@clouddrive.test"}
	if _, err := svc.ListPendingRequests(context.Background(), identity); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

// --- Listing ---

func TestListPendingRequests_ExcludesStaleRows(t *testing.T) {
	fresh := storedPendingProfile("user-1", domain.PlanBasic, domain.PlanPro, time.Now().Add(24*time.Hour))
	stale := storedPendingProfile("user-2", domain.PlanPro, domain.PlanPremium, time.Now().Add(-time.Hour))
	store := newMockProfileStore(fresh, stale)
	svc := newAdminService(store, &mockContactStore{})

	pending, err := svc.ListPendingRequests(context.Background(), adminIdentity())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}
	if pending[0].UserID != "user-1" {
		t.Errorf("expected user-1, got %q", pending[0].UserID)
	}

	// The stale row is healed in the store, not just hidden.
	if store.profiles["user-2"].RequestStatus != domain.RequestStatusExpired {
		t.Errorf("expected stale row persisted as expired, got %q", store.profiles["user-2"].RequestStatus)
	}
}

// --- Accept ---

func TestAccept_AppliesPendingPlan(t *testing.T) {
	pending := storedPendingProfile("user-1", domain.PlanBasic, domain.PlanPro, time.Now().Add(24*time.Hour))
	store := newMockProfileStore(pending)
	svc := newAdminService(store, &mockContactStore{})

	profile, err := svc.Accept(context.Background(), adminIdentity(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if profile.CurrentPlan != domain.PlanPro {
		t.Errorf("expected current plan pro, got %q", profile.CurrentPlan)
	}
	if profile.RequestStatus != domain.RequestStatusAccepted {
		t.Errorf("expected status accepted, got %q", profile.RequestStatus)
	}
	if profile.RequestNote != domain.NoteAccepted {
		t.Errorf("expected acceptance note, got %q", profile.RequestNote)
	}
}

func TestAccept_UnknownUser(t *testing.T) {
	svc := newAdminService(newMockProfileStore(), &mockContactStore{})

	_, err := svc.Accept(context.Background(), adminIdentity(), "ghost")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccept_ExpiredRequestFailsAndHeals(t *testing.T) {
	stale := storedPendingProfile("user-1", domain.PlanBasic, domain.PlanPro, time.Now().Add(-time.Hour))
	store := newMockProfileStore(stale)
	svc := newAdminService(store, &mockContactStore{})

	_, err := svc.Accept(context.Background(), adminIdentity(), "user-1")
	var invalid *domain.ErrInvalidTransition
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// The failed accept still persists the sweep.
	row := store.profiles["user-1"]
	if row.RequestStatus != domain.RequestStatusExpired {
		t.Errorf("expected row healed to expired, got %q", row.RequestStatus)
	}
	if row.CurrentPlan != domain.PlanBasic {
		t.Errorf("plan must be unchanged, got %q", row.CurrentPlan)
	}
}

func TestAccept_NoPendingRequest(t *testing.T) {
	store := newMockProfileStore(storedActiveProfile("user-1", domain.PlanBasic))
	svc := newAdminService(store, &mockContactStore{})

	_, err := svc.Accept(context.Background(), adminIdentity(), "user-1")
	var invalid *domain.ErrInvalidTransition
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

// --- Refuse ---

func TestRefuse_KeepsPlanAndWritesNote(t *testing.T) {
	pending := storedPendingProfile("user-1", domain.PlanBasic, domain.PlanPro, time.Now().Add(24*time.Hour))
	store := newMockProfileStore(pending)
	svc := newAdminService(store, &mockContactStore{})

	profile, err := svc.Refuse(context.Background(), adminIdentity(), "user-1", "Capacité insuffisante")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if profile.CurrentPlan != domain.PlanBasic {
		t.Errorf("refusal must keep the plan, got %q", profile.CurrentPlan)
	}
	if profile.RequestStatus != domain.RequestStatusRefused {
		t.Errorf("expected status refused, got %q", profile.RequestStatus)
	}
	if profile.RequestNote != "Capacité insuffisante" {
		t.Errorf("expected custom note, got %q", profile.RequestNote)
	}
}

func TestRefuse_DefaultNote(t *testing.T) {
	pending := storedPendingProfile("user-1", domain.PlanBasic, domain.PlanPro, time.Now().Add(24*time.Hour))
	store := newMockProfileStore(pending)
	svc := newAdminService(store, &mockContactStore{})

	profile, err := svc.Refuse(context.Background(), adminIdentity(), "user-1", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if profile.RequestNote != domain.NoteRefusedDefault {
		t.Errorf("expected default refusal note, got %q", profile.RequestNote)
	}
}

// --- Overview ---

func TestOverview_AggregatesRequestsAndMessages(t *testing.T) {
	pending := storedPendingProfile("user-1", domain.PlanBasic, domain.PlanPro, time.Now().Add(24*time.Hour))
	store := newMockProfileStore(pending)
	contacts := &mockContactStore{messages: []domain.ContactMessage{
		{ID: "msg-1", Name: "Jean", Email: "jean@clouddrive.test", Message: "Bonjour"},
	}}
	svc := newAdminService(store, contacts)

	overview, err := svc.Overview(context.Background(), adminIdentity())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(overview.PendingRequests) != 1 {
		t.Errorf("expected 1 pending request, got %d", len(overview.PendingRequests))
	}
	if len(overview.RecentMessages) != 1 {
		t.Errorf("expected 1 contact message, got %d", len(overview.RecentMessages))
	}
}

func TestOverview_PropagatesStoreError(t *testing.T) {
	store := newMockProfileStore()
	store.listErr = &domain.ErrStoreUnavailable{Op: "profiles.list", Err: errors.New("timeout")}
	svc := newAdminService(store, &mockContactStore{})

	_, err := svc.Overview(context.Background(), adminIdentity())
	var unavailable *domain.ErrStoreUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
