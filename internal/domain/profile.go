// Package domain contains the core types of the CloudDrive subscription
// system: plans, per-user profiles, and the plan-change request state machine.
package domain

import "time"

// Plan is a subscription tier.
type Plan string

const (
	PlanNone    Plan = "none"
	PlanBasic   Plan = "basic"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// Selectable reports whether p is a tier a user can subscribe to.
func (p Plan) Selectable() bool {
	switch p {
	case PlanBasic, PlanPro, PlanPremium:
		return true
	}
	return false
}

// Label returns the marketing name shown by the frontend.
func (p Plan) Label() string {
	switch p {
	case PlanBasic:
		return "Basique"
	case PlanPro:
		return "Pro"
	case PlanPremium:
		return "Premium"
	}
	return "Aucun"
}

// RequestStatus is the stored status of a plan-change request.
type RequestStatus string

const (
	RequestStatusNone     RequestStatus = "none"
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRefused  RequestStatus = "refused"
	RequestStatusExpired  RequestStatus = "expired"
)

// RequestState is the derived, user-visible position in the lifecycle.
type RequestState string

const (
	StateNoPlan        RequestState = "no_plan"
	StateActive        RequestState = "active"
	StatePendingChange RequestState = "pending_change"
)

// Profile is the per-user aggregate: one row in the profiles table holding
// the current plan and the outstanding plan-change request, if any.
// All mutation goes through the transition methods in request.go so the
// request invariants stay enforced in one place.
type Profile struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	IsAdmin   bool

	CurrentPlan   Plan
	PendingPlan   Plan
	RequestStatus RequestStatus
	RequestNote   string

	RequestCreatedAt *time.Time
	RequestExpiresAt *time.Time
	RequestHandledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfile returns the blank profile inserted lazily on first sign-in.
func NewProfile(userID, email string, now time.Time) *Profile {
	return &Profile{
		UserID:        userID,
		Email:         email,
		CurrentPlan:   PlanNone,
		RequestStatus: RequestStatusNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// State derives the user-visible lifecycle state from the stored fields.
// Terminal request statuses (accepted/refused/expired) still count as Active:
// the note they carry is informational and never blocks a new request.
func (p *Profile) State() RequestState {
	if p.RequestStatus == RequestStatusPending {
		return StatePendingChange
	}
	if p.CurrentPlan == "" || p.CurrentPlan == PlanNone {
		return StateNoPlan
	}
	return StateActive
}
