// Package guard gates portal routes on session state. Each protected route
// declares a static Descriptor; the guard evaluates it against the current
// session snapshot and renders exactly one outcome.
package guard

import (
	"academyhub/internal/authz"
	"academyhub/internal/model"
	"academyhub/internal/session"
)

// Outcome is the single decision a guard renders for a request.
type Outcome int

const (
	// OutcomeLoading means the session is not yet settled; no redirect or
	// content decision may be made.
	OutcomeLoading Outcome = iota
	// OutcomeRedirectLogin means authentication is required and absent.
	OutcomeRedirectLogin
	// OutcomeDeniedRole means the user is authenticated but the role or
	// capability check failed. No login prompt is shown.
	OutcomeDeniedRole
	// OutcomeDeniedResource means the ownership check rejected the requested
	// resource id.
	OutcomeDeniedResource
	// OutcomeGranted renders the protected content.
	OutcomeGranted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRedirectLogin:
		return "redirect-login"
	case OutcomeDeniedRole:
		return "denied-role"
	case OutcomeDeniedResource:
		return "denied-resource"
	case OutcomeGranted:
		return "granted"
	}
	return "unknown"
}

// ResourceCheck names the ownership rule a route applies and the URL
// parameter carrying the resource id.
type ResourceCheck struct {
	Kind  authz.ResourceKind
	Param string
}

// Descriptor is the static gate configuration attached to a protected route.
// An empty role set means any authenticated role passes.
type Descriptor struct {
	RequireAuth  bool
	RequireRoles []model.Role
	Capability   authz.Capability
	Resource     *ResourceCheck
}

// Evaluate applies the checks in fixed order: loading, authentication, role,
// capability, resource. The first failing check decides the outcome.
func Evaluate(snap session.Snapshot, d Descriptor, resourceID string) Outcome {
	if !snap.Initialized || snap.Loading {
		return OutcomeLoading
	}

	needsUser := d.RequireAuth || len(d.RequireRoles) > 0 || d.Capability != "" || d.Resource != nil
	if needsUser && !snap.Authenticated() {
		return OutcomeRedirectLogin
	}

	if len(d.RequireRoles) > 0 && !roleIn(snap.User.Role, d.RequireRoles) {
		return OutcomeDeniedRole
	}
	if d.Capability != "" && !authz.Allowed(snap.User.Role, d.Capability) {
		return OutcomeDeniedRole
	}
	if d.Resource != nil && !authz.CanAccessResource(snap.User, d.Resource.Kind, resourceID) {
		return OutcomeDeniedResource
	}
	return OutcomeGranted
}

func roleIn(role model.Role, set []model.Role) bool {
	for _, r := range set {
		if role == r {
			return true
		}
	}
	return false
}
