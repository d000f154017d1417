package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Profile store — profiles table via PostgREST
// (implements port.ProfileStore)
// ============================================================

// profileRow maps the profiles table columns to our domain.
// Timestamps come back as strings; PostgREST is not strict about the
// fraction/zone format, so they are parsed leniently below.
type profileRow struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	IsAdmin          bool    `json:"is_admin"`
	Plan             *string `json:"plan"`
	PendingPlan      *string `json:"pending_plan"`
	RequestStatus    *string `json:"request_status"`
	RequestNote      *string `json:"request_note"`
	RequestCreatedAt *string `json:"request_created_at"`
	RequestExpiresAt *string `json:"request_expires_at"`
	RequestHandledAt *string `json:"request_handled_at"`
	CreatedAt        *string `json:"created_at"`
	UpdatedAt        *string `json:"updated_at"`
}

func (r *profileRow) toDomain() domain.Profile {
	p := domain.Profile{
		UserID:        r.ID,
		Email:         r.Email,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		IsAdmin:       r.IsAdmin,
		CurrentPlan:   domain.PlanNone,
		RequestStatus: domain.RequestStatusNone,
	}
	if r.Plan != nil && *r.Plan != "" {
		p.CurrentPlan = domain.Plan(*r.Plan)
	}
	if r.PendingPlan != nil && *r.PendingPlan != "" {
		p.PendingPlan = domain.Plan(*r.PendingPlan)
	}
	if r.RequestStatus != nil && *r.RequestStatus != "" {
		p.RequestStatus = domain.RequestStatus(*r.RequestStatus)
	}
	if r.RequestNote != nil {
		p.RequestNote = *r.RequestNote
	}
	p.RequestCreatedAt = parseTimePtr(r.RequestCreatedAt)
	p.RequestExpiresAt = parseTimePtr(r.RequestExpiresAt)
	p.RequestHandledAt = parseTimePtr(r.RequestHandledAt)
	if t := parseTimePtr(r.CreatedAt); t != nil {
		p.CreatedAt = *t
	}
	if t := parseTimePtr(r.UpdatedAt); t != nil {
		p.UpdatedAt = *t
	}
	return p
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}

// GetProfile fetches one profile by user id. Returns nil, nil when no row
// exists, so the caller can create it lazily.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var profile *domain.Profile

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("profiles?id=eq.%s&limit=1", url.QueryEscape(userID))
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				profile = nil
				return nil
			}

			var rows []profileRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode profile: %w", err)
			}
			if len(rows) == 0 {
				profile = nil
				return nil
			}

			p := rows[0].toDomain()
			profile = &p
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrStoreUnavailable{Op: "profiles.get", Err: err}
	}

	return profile, nil
}

// CreateProfile inserts the blank row written on first sign-in.
func (c *Client) CreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", p.UserID))

	row := map[string]any{
		"id":             p.UserID,
		"email":          p.Email,
		"first_name":     p.FirstName,
		"last_name":      p.LastName,
		"is_admin":       p.IsAdmin,
		"plan":           string(p.CurrentPlan),
		"request_status": string(p.RequestStatus),
		"created_at":     p.CreatedAt.Format(time.RFC3339),
		"updated_at":     p.UpdatedAt.Format(time.RFC3339),
	}

	body, err := c.doPost(ctx, "profiles", row)
	if err != nil {
		return nil, &domain.ErrStoreUnavailable{Op: "profiles.create", Err: err}
	}

	var rows []profileRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStoreUnavailable{Op: "profiles.create", Err: fmt.Errorf("no row returned from insert")}
	}

	created := rows[0].toDomain()
	return &created, nil
}

// UpdateProfile patches the given columns on one row and returns the updated
// profile. Mutations go through the circuit breaker but are never retried.
func (c *Client) UpdateProfile(ctx context.Context, userID string, updates map[string]any) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		var execErr error
		path := fmt.Sprintf("profiles?id=eq.%s", url.QueryEscape(userID))
		body, execErr = c.doPatch(ctx, path, updates)
		return nil, execErr
	})
	if err != nil {
		return nil, &domain.ErrStoreUnavailable{Op: "profiles.update", Err: err}
	}

	var rows []profileRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode updated profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}

	updated := rows[0].toDomain()
	return &updated, nil
}

// ListPendingRequests returns every profile with an outstanding request,
// newest request first.
func (c *Client) ListPendingRequests(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPendingRequests")
	defer span.End()

	var profiles []domain.Profile

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := "profiles?request_status=eq.pending&order=request_created_at.desc"
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				profiles = []domain.Profile{}
				return nil
			}

			var rows []profileRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode pending profiles: %w", err)
			}

			profiles = make([]domain.Profile, 0, len(rows))
			for i := range rows {
				profiles = append(profiles, rows[i].toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrStoreUnavailable{Op: "profiles.list_pending", Err: err}
	}

	return profiles, nil
}
