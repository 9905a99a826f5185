package session

import "academyhub/internal/model"

// Phase distinguishes a tentatively restored identity from a confirmed one,
// so consumers never have to guess what a bare loading flag means.
type Phase string

const (
	// PhaseAnonymous means no user is attached to the session.
	PhaseAnonymous Phase = "anonymous"
	// PhaseHydrating means a persisted identity was restored optimistically
	// and upstream verification is still in flight.
	PhaseHydrating Phase = "hydrating"
	// PhaseVerified means the identity was confirmed by the academy API.
	PhaseVerified Phase = "verified"
)

// Snapshot is a consistent read of the session state. Token is present iff
// User is present.
type Snapshot struct {
	User         *model.User
	Token        string
	RefreshToken string
	Phase        Phase
	Initialized  bool
	Loading      bool
	LastError    string
}

// Authenticated reports whether a user is attached to the session.
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// Result is the outcome handed back to UI callers for login, register and
// profile updates. Operations never propagate errors past this shape.
type Result struct {
	Success bool
	User    *model.User
	Error   string
	// Transport marks failures where the academy API could not be reached,
	// as opposed to the API declining the operation.
	Transport bool
}
