package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/handler"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/cache"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/observability"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/resilience"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/supabase"
	"github.com/clouddrive/clouddrive-bfa-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const integrationJWTSecret = "integration-test-secret"

// fakeSupabase emulates the two Supabase surfaces the service talks to:
// PostgREST for the profiles and contact_messages tables, and GoTrue for
// credential flows.
type fakeSupabase struct {
	mu       sync.Mutex
	profiles map[string]map[string]any
	contacts []map[string]any
}

func newFakeSupabase() *fakeSupabase {
	return &fakeSupabase{profiles: map[string]map[string]any{}}
}

func (f *fakeSupabase) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/profiles", f.handleProfiles)
	mux.HandleFunc("/rest/v1/contact_messages", f.handleContacts)
	mux.HandleFunc("/auth/v1/token", f.handleToken)
	mux.HandleFunc("/auth/v1/signup", f.handleToken)
	return mux
}

func (f *fakeSupabase) handleProfiles(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		if id, ok := strings.CutPrefix(r.URL.Query().Get("id"), "eq."); ok {
			row, found := f.profiles[id]
			if !found {
				json.NewEncoder(w).Encode([]any{})
				return
			}
			json.NewEncoder(w).Encode([]any{row})
			return
		}
		if status, ok := strings.CutPrefix(r.URL.Query().Get("request_status"), "eq."); ok {
			var rows []map[string]any
			for _, row := range f.profiles {
				if row["request_status"] == status {
					rows = append(rows, row)
				}
			}
			if rows == nil {
				rows = []map[string]any{}
			}
			json.NewEncoder(w).Encode(rows)
			return
		}
		json.NewEncoder(w).Encode([]any{})

	case http.MethodPost:
		var row map[string]any
		json.NewDecoder(r.Body).Decode(&row)
		id := row["id"].(string)
		f.profiles[id] = row
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]any{row})

	case http.MethodPatch:
		id, _ := strings.CutPrefix(r.URL.Query().Get("id"), "eq.")
		row, found := f.profiles[id]
		if !found {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		var updates map[string]any
		json.NewDecoder(r.Body).Decode(&updates)
		for k, v := range updates {
			row[k] = v
		}
		json.NewEncoder(w).Encode([]any{row})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeSupabase) handleContacts(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodPost:
		var row map[string]any
		json.NewDecoder(r.Body).Decode(&row)
		f.contacts = append(f.contacts, row)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]any{row})
	case http.MethodGet:
		rows := f.contacts
		if rows == nil {
			rows = []map[string]any{}
		}
		json.NewEncoder(w).Encode(rows)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeSupabase) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&creds)

	if creds.Password == "wrong-password" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error_description": "Invalid login credentials"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "fake-access-token",
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": "fake-refresh-token",
		"user":          map[string]string{"id": "user-gotrue-1", "email": creds.Email},
	})
}

// seedProfile inserts a row the way PostgREST would return it.
func (f *fakeSupabase) seedProfile(id string, columns map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row := map[string]any{
		"id":             id,
		"email":          id + "@clouddrive.test",
		"first_name":     "",
		"last_name":      "",
		"is_admin":       false,
		"plan":           "none",
		"request_status": "none",
		"created_at":     time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
		"updated_at":     time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
	}
	for k, v := range columns {
		row[k] = v
	}
	f.profiles[id] = row
}

func newStack(t *testing.T, fake *fakeSupabase) http.Handler {
	t.Helper()

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cb := resilience.NewCircuitBreaker("integration")
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	client := supabase.NewClient(httpClient, srv.URL, "anon-key", "service-key", cb, cfg, logger)
	profileCache := cache.New[domain.Profile](5 * time.Minute)

	subSvc := service.NewSubscriptionService(client, profileCache, metrics, logger, 48*time.Hour)
	adminSvc := service.NewAdminService(client, client, profileCache, resilience.NewBulkhead(4), metrics, logger)
	authSvc := service.NewAuthService(client, integrationJWTSecret, logger)
	contactSvc := service.NewContactService(client, metrics, logger)

	return handler.NewRouter(subSvc, adminSvc, authSvc, contactSvc, metrics, logger)
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@clouddrive.test",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(integrationJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

// TestIntegration_SubscriptionLifecycle drives the full flow end to end:
// first read creates the profile, the user activates a plan, requests a
// change, and an admin accepts it.
func TestIntegration_SubscriptionLifecycle(t *testing.T) {
	fake := newFakeSupabase()
	fake.seedProfile("admin-1", map[string]any{"is_admin": true, "plan": "pro"})
	router := newStack(t, fake)

	userToken := bearerToken(t, "user-1")
	adminToken := bearerToken(t, "admin-1")

	// First read creates the row lazily.
	rec, profile := doJSON(t, router, http.MethodGet, "/v1/me/profile", userToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile read: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if profile["state"] != "no_plan" {
		t.Fatalf("expected state no_plan, got %v", profile["state"])
	}

	// Activate the first plan.
	rec, profile = doJSON(t, router, http.MethodPost, "/v1/me/subscription", userToken, map[string]string{"plan": "basic"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("activation: expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if profile["current_plan"] != "basic" || profile["state"] != "active" {
		t.Fatalf("expected active basic plan, got %v / %v", profile["current_plan"], profile["state"])
	}

	// A second activation is rejected.
	rec, _ = doJSON(t, router, http.MethodPost, "/v1/me/subscription", userToken, map[string]string{"plan": "pro"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("second activation: expected 422, got %d", rec.Code)
	}

	// Request an upgrade.
	rec, profile = doJSON(t, router, http.MethodPut, "/v1/me/subscription", userToken, map[string]string{"plan": "pro"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("change request: expected 202, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if profile["state"] != "pending_change" || profile["pending_plan"] != "pro" {
		t.Fatalf("expected pending change to pro, got %v / %v", profile["state"], profile["pending_plan"])
	}

	// A second request while one is pending conflicts.
	rec, _ = doJSON(t, router, http.MethodPut, "/v1/me/subscription", userToken, map[string]string{"plan": "premium"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate request: expected 409, got %d", rec.Code)
	}

	// A regular user cannot see the admin queue.
	rec, _ = doJSON(t, router, http.MethodGet, "/v1/admin/requests", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin queue as user: expected 403, got %d", rec.Code)
	}

	// The admin sees the request.
	rec, list := doJSON(t, router, http.MethodGet, "/v1/admin/requests", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin queue: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if count, _ := list["count"].(float64); count != 1 {
		t.Fatalf("expected 1 pending request, got %v", list["count"])
	}

	// Accept it.
	rec, profile = doJSON(t, router, http.MethodPost, "/v1/admin/requests/user-1/accept", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if profile["current_plan"] != "pro" || profile["request_status"] != "accepted" {
		t.Fatalf("expected accepted pro plan, got %v / %v", profile["current_plan"], profile["request_status"])
	}

	// The user sees the new plan and the acceptance note.
	rec, profile = doJSON(t, router, http.MethodGet, "/v1/me/profile", userToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile after accept: expected 200, got %d", rec.Code)
	}
	if profile["current_plan"] != "pro" {
		t.Fatalf("expected plan pro, got %v", profile["current_plan"])
	}
	if profile["request_note"] != domain.NoteAccepted {
		t.Fatalf("expected acceptance note, got %v", profile["request_note"])
	}
}

// TestIntegration_RefuseFlow verifies a refused request keeps the old plan
// and the user can immediately file a new one.
func TestIntegration_RefuseFlow(t *testing.T) {
	fake := newFakeSupabase()
	fake.seedProfile("admin-1", map[string]any{"is_admin": true})
	fake.seedProfile("user-1", map[string]any{
		"plan":               "basic",
		"pending_plan":       "premium",
		"request_status":     "pending",
		"request_created_at": time.Now().Format(time.RFC3339),
		"request_expires_at": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	router := newStack(t, fake)

	userToken := bearerToken(t, "user-1")
	adminToken := bearerToken(t, "admin-1")

	rec, profile := doJSON(t, router, http.MethodPost, "/v1/admin/requests/user-1/refuse", adminToken,
		map[string]string{"note": "Offre indisponible dans votre région"})
	if rec.Code != http.StatusOK {
		t.Fatalf("refuse: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if profile["current_plan"] != "basic" || profile["request_status"] != "refused" {
		t.Fatalf("expected refused with basic kept, got %v / %v", profile["current_plan"], profile["request_status"])
	}
	if profile["request_note"] != "Offre indisponible dans votre région" {
		t.Fatalf("expected custom note, got %v", profile["request_note"])
	}

	// The refusal does not block a new request.
	rec, profile = doJSON(t, router, http.MethodPut, "/v1/me/subscription", userToken, map[string]string{"plan": "pro"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("new request after refusal: expected 202, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if profile["pending_plan"] != "pro" {
		t.Fatalf("expected pending plan pro, got %v", profile["pending_plan"])
	}
}

// TestIntegration_ExpiredRequestHealsOnRead verifies the lazy expiry sweep:
// a stale pending request resolves to expired on the next profile read and
// the healed row is persisted.
func TestIntegration_ExpiredRequestHealsOnRead(t *testing.T) {
	fake := newFakeSupabase()
	fake.seedProfile("user-1", map[string]any{
		"plan":               "basic",
		"pending_plan":       "pro",
		"request_status":     "pending",
		"request_created_at": time.Now().Add(-50 * time.Hour).Format(time.RFC3339),
		"request_expires_at": time.Now().Add(-2 * time.Hour).Format(time.RFC3339),
	})
	router := newStack(t, fake)

	rec, profile := doJSON(t, router, http.MethodGet, "/v1/me/profile", bearerToken(t, "user-1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if profile["request_status"] != "expired" {
		t.Fatalf("expected status expired, got %v", profile["request_status"])
	}
	if profile["current_plan"] != "basic" {
		t.Fatalf("expiry must keep the plan, got %v", profile["current_plan"])
	}
	if profile["request_note"] != domain.NoteExpired {
		t.Fatalf("expected expiry note, got %v", profile["request_note"])
	}

	fake.mu.Lock()
	stored := fake.profiles["user-1"]["request_status"]
	fake.mu.Unlock()
	if stored != "expired" {
		t.Fatalf("expected healed row persisted, got %v", stored)
	}
}

// TestIntegration_AuthAndContact exercises the public surfaces: GoTrue
// delegation and the contact form.
func TestIntegration_AuthAndContact(t *testing.T) {
	fake := newFakeSupabase()
	router := newStack(t, fake)

	rec, session := doJSON(t, router, http.MethodPost, "/v1/auth/login", "",
		map[string]string{"email": "user@clouddrive.test", "password": "secret123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if session["access_token"] != "fake-access-token" {
		t.Fatalf("expected session token, got %v", session["access_token"])
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/v1/auth/login", "",
		map[string]string{"email": "user@clouddrive.test", "password": "wrong-password"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}

	rec, msg := doJSON(t, router, http.MethodPost, "/v1/contact", "",
		map[string]string{"name": "Jean", "email": "jean@clouddrive.test", "message": "Bonjour"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("contact: expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	if msg["id"] == "" || msg["id"] == nil {
		t.Fatal("expected a generated message id")
	}

	fake.mu.Lock()
	stored := len(fake.contacts)
	fake.mu.Unlock()
	if stored != 1 {
		t.Fatalf("expected 1 stored contact message, got %d", stored)
	}
}
