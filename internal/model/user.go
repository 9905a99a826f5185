package model

// Role identifies the baseline capability tier of an academy user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleCoach  Role = "coach"
	RoleParent Role = "parent"
	RolePlayer Role = "player"
)

// Valid reports whether the role is one of the known academy roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoach, RoleParent, RolePlayer:
		return true
	}
	return false
}

// User represents an authenticated academy user as returned by the upstream API.
type User struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	TeamID      string `json:"teamId,omitempty"`
	PlayerID    string `json:"playerId,omitempty"`
}

// Clone returns a copy so snapshot readers never alias store-owned state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
