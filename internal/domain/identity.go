package domain

// Capability is a named permission an identity may hold. Authorization is an
// explicit capability check rather than scattered is-admin comparisons.
type Capability string

// CapabilityManageRequests authorizes the admin request-management
// operations: listing, accepting and refusing plan-change requests.
const CapabilityManageRequests Capability = "subscription:manage-requests"

// Identity is the authenticated caller, established by the identity provider
// at call time. The Admin flag is sourced from the caller's profile row, not
// from the token.
type Identity struct {
	UserID string
	Email  string
	Admin  bool
}

// Anonymous reports whether no signed-in identity was supplied.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}

// Can reports whether the identity holds the given capability.
func (i Identity) Can(c Capability) bool {
	switch c {
	case CapabilityManageRequests:
		return i.Admin
	}
	return false
}
