package session

import (
	"academyhub/internal/authz"
	"academyhub/internal/model"
)

func (s *Store) currentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.User.Clone()
}

// HasRole reports whether the current user holds exactly the given role.
func (s *Store) HasRole(role model.Role) bool {
	u := s.currentUser()
	return u != nil && u.Role == role
}

// HasAnyRole reports whether the current user's role is in the set.
func (s *Store) HasAnyRole(roles ...model.Role) bool {
	u := s.currentUser()
	if u == nil {
		return false
	}
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// Convenience predicates mirroring the navigation checks consumers make.

func (s *Store) IsAdmin() bool  { return s.HasRole(model.RoleAdmin) }
func (s *Store) IsCoach() bool  { return s.HasRole(model.RoleCoach) }
func (s *Store) IsParent() bool { return s.HasRole(model.RoleParent) }
func (s *Store) IsPlayer() bool { return s.HasRole(model.RolePlayer) }

// CanAccess consults the capability table for the current user.
func (s *Store) CanAccess(cap authz.Capability) bool {
	u := s.currentUser()
	return u != nil && authz.Allowed(u.Role, cap)
}

// CanAccessResource applies the ownership rules for the current user.
func (s *Store) CanAccessResource(kind authz.ResourceKind, id string) bool {
	return authz.CanAccessResource(s.currentUser(), kind, id)
}
