package domain

import "time"

// DefaultPendingTTL is how long a request may wait for an admin decision
// before it expires. Matches the 48h promise made by the pricing page.
const DefaultPendingTTL = 48 * time.Hour

// User-visible request notes. French, like the rest of the frontend copy.
const (
	NoteAccepted       = "Demande acceptée, votre abonnement a été mis à jour"
	NoteRefusedDefault = "Demande refusée par l'équipe technique"
	NoteExpired        = "Aucune réponse sous 48h, merci de soumettre une nouvelle demande"
)

// Activate sets the first plan. Legal only while no plan is active; the
// first subscription is immediate and needs no admin decision.
func (p *Profile) Activate(plan Plan, now time.Time) error {
	if !plan.Selectable() {
		return &ErrValidation{Field: "plan", Message: "unknown plan '" + string(plan) + "'"}
	}
	if p.RequestStatus == RequestStatusPending {
		return &ErrRequestAlreadyPending{PendingPlan: p.PendingPlan}
	}
	if p.State() != StateNoPlan {
		return &ErrInvalidTransition{
			Event:  "activate",
			From:   p.State(),
			Reason: "a plan is already active, request a change instead",
		}
	}
	p.acknowledgeResolved()
	p.CurrentPlan = plan
	p.UpdatedAt = now
	return nil
}

// RequestChange opens a plan-change request awaiting an admin decision.
// Legal only from Active with no request outstanding; requesting the plan
// that is already active is rejected without mutating anything.
func (p *Profile) RequestChange(plan Plan, now time.Time, ttl time.Duration) error {
	if !plan.Selectable() {
		return &ErrValidation{Field: "plan", Message: "unknown plan '" + string(plan) + "'"}
	}
	if p.RequestStatus == RequestStatusPending {
		return &ErrRequestAlreadyPending{PendingPlan: p.PendingPlan}
	}
	if p.State() == StateNoPlan {
		return &ErrInvalidTransition{
			Event:  "request_change",
			From:   StateNoPlan,
			Reason: "no active plan, choose a first plan instead",
		}
	}
	if plan == p.CurrentPlan {
		return &ErrInvalidTransition{
			Event:  "request_change",
			From:   StateActive,
			Reason: "plan '" + string(plan) + "' is already active",
		}
	}
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}

	p.acknowledgeResolved()
	expires := now.Add(ttl)
	p.PendingPlan = plan
	p.RequestStatus = RequestStatusPending
	p.RequestNote = ""
	p.RequestCreatedAt = &now
	p.RequestExpiresAt = &expires
	p.RequestHandledAt = nil
	p.UpdatedAt = now
	return nil
}

// AcceptRequest resolves a pending request in the user's favor: the pending
// plan becomes the current plan. An expired request cannot be accepted even
// if the expiry sweep has not run yet.
func (p *Profile) AcceptRequest(now time.Time) error {
	if p.RequestStatus != RequestStatusPending {
		return &ErrInvalidTransition{
			Event:  "accept",
			From:   p.State(),
			Reason: "no pending request (status is '" + string(p.RequestStatus) + "')",
		}
	}
	if p.RequestExpiresAt != nil && now.After(*p.RequestExpiresAt) {
		return &ErrInvalidTransition{
			Event:  "accept",
			From:   StatePendingChange,
			Reason: "request has expired",
		}
	}

	p.CurrentPlan = p.PendingPlan
	p.PendingPlan = ""
	p.RequestStatus = RequestStatusAccepted
	p.RequestNote = NoteAccepted
	p.RequestExpiresAt = nil
	p.RequestHandledAt = &now
	p.UpdatedAt = now
	return nil
}

// RefuseRequest resolves a pending request against the user; the current
// plan is untouched. An empty note falls back to the default refusal text.
func (p *Profile) RefuseRequest(note string, now time.Time) error {
	if p.RequestStatus != RequestStatusPending {
		return &ErrInvalidTransition{
			Event:  "refuse",
			From:   p.State(),
			Reason: "no pending request (status is '" + string(p.RequestStatus) + "')",
		}
	}
	if note == "" {
		note = NoteRefusedDefault
	}

	p.PendingPlan = ""
	p.RequestStatus = RequestStatusRefused
	p.RequestNote = note
	p.RequestExpiresAt = nil
	p.RequestHandledAt = &now
	p.UpdatedAt = now
	return nil
}

// SweepExpiry resolves a stale pending request to Expired. It runs lazily on
// every profile load instead of from a background timer, so an expired
// request is only observed (and healed) on the next read. Returns whether
// the profile changed; a second call on an already-expired profile is a
// no-op, so timestamps are never double-written.
func (p *Profile) SweepExpiry(now time.Time) bool {
	if p.RequestStatus != RequestStatusPending || p.RequestExpiresAt == nil {
		return false
	}
	if !now.After(*p.RequestExpiresAt) {
		return false
	}

	p.PendingPlan = ""
	p.RequestStatus = RequestStatusExpired
	p.RequestNote = NoteExpired
	p.RequestExpiresAt = nil
	p.RequestHandledAt = &now
	p.UpdatedAt = now
	return true
}

// acknowledgeResolved clears a resolved (accepted/refused/expired) request
// before a new transition. The terminal note is informational only.
func (p *Profile) acknowledgeResolved() {
	switch p.RequestStatus {
	case RequestStatusAccepted, RequestStatusRefused, RequestStatusExpired:
		p.RequestStatus = RequestStatusNone
		p.RequestNote = ""
		p.RequestCreatedAt = nil
		p.RequestHandledAt = nil
	}
}
