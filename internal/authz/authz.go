package authz

import "academyhub/internal/model"

// Capability is a named permission gating one slice of the portal.
type Capability string

const (
	CapDashboard  Capability = "dashboard"
	CapRoster     Capability = "roster"
	CapAttendance Capability = "attendance"
	CapStatistics Capability = "statistics"
	CapBilling    Capability = "billing"
	CapQRCheckin  Capability = "qr-checkin"
	CapAdminPanel Capability = "admin-panel"
	CapProfile    Capability = "profile"
)

// ResourceKind identifies the scope of an ownership check.
type ResourceKind string

const (
	ResourceTeam   ResourceKind = "team"
	ResourcePlayer ResourceKind = "player"
)

// permissions is the single source of truth mapping capabilities to the roles
// allowed to use them. A capability missing from this table is denied for
// every role.
var permissions = map[Capability][]model.Role{
	CapDashboard:  {model.RoleAdmin, model.RoleCoach, model.RoleParent, model.RolePlayer},
	CapRoster:     {model.RoleAdmin, model.RoleCoach, model.RoleParent, model.RolePlayer},
	CapAttendance: {model.RoleAdmin, model.RoleCoach},
	CapStatistics: {model.RoleAdmin, model.RoleCoach, model.RolePlayer},
	CapBilling:    {model.RoleAdmin, model.RoleParent},
	CapQRCheckin:  {model.RoleAdmin, model.RoleCoach},
	CapAdminPanel: {model.RoleAdmin},
	CapProfile:    {model.RoleAdmin, model.RoleCoach, model.RoleParent, model.RolePlayer},
}

// Allowed reports whether role may use the capability. Unknown capabilities
// and unknown roles are both denied.
func Allowed(role model.Role, cap Capability) bool {
	for _, allowed := range permissions[cap] {
		if role == allowed {
			return true
		}
	}
	return false
}

// Capabilities returns every capability the role is permitted, for handing to
// UI consumers that render navigation conditionally.
func Capabilities(role model.Role) []Capability {
	var caps []Capability
	for cap := range permissions {
		if Allowed(role, cap) {
			caps = append(caps, cap)
		}
	}
	return caps
}

// CanAccessResource decides ownership-style access to a specific team or
// player. Admins always pass. Coaches pass for their own team and for player
// lookups, which the upstream API re-validates against the coach's roster.
// Parents and players only reach their linked player and team.
func CanAccessResource(user *model.User, kind ResourceKind, id string) bool {
	if user == nil || id == "" {
		return false
	}
	switch user.Role {
	case model.RoleAdmin:
		return true
	case model.RoleCoach:
		if kind == ResourcePlayer {
			return true
		}
		return kind == ResourceTeam && user.TeamID == id
	case model.RoleParent, model.RolePlayer:
		switch kind {
		case ResourcePlayer:
			return user.PlayerID == id
		case ResourceTeam:
			return user.TeamID == id
		}
	}
	return false
}
