// Package session owns the authenticated identity of one browser session:
// who is logged in, their bearer token, and the persisted copies of both.
// All mutation goes through the Store operations; everything else in the
// portal only reads snapshots and role predicates.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"academyhub/internal/model"
	"academyhub/internal/storage"
	"academyhub/internal/upstream"
)

const (
	// refreshLeeway is how close to expiry the access token may get before a
	// guarded request triggers a proactive refresh.
	refreshLeeway = 2 * time.Minute
	// logoutTimeout bounds the fire-and-forget upstream logout call.
	logoutTimeout = 5 * time.Second
)

// ErrNoSession is returned by Refresh when there is nothing to refresh.
var ErrNoSession = errors.New("no active session")

// AuthAPI is the slice of the academy API the store needs.
type AuthAPI interface {
	Login(ctx context.Context, identifier, secret string) (*upstream.Credentials, error)
	Register(ctx context.Context, payload upstream.RegistrationPayload) (*upstream.Credentials, error)
	Logout(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (*model.User, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	UpdateProfile(ctx context.Context, token string, update upstream.ProfileUpdate) (*model.User, error)
}

// Ensure the upstream client satisfies the store's view of it.
var _ AuthAPI = (*upstream.Client)(nil)

// Store is the single writer of session state for one browser session. It is
// safe for concurrent use; guards and handlers read snapshots while at most
// one operation mutates.
type Store struct {
	api     AuthAPI
	durable storage.Vault
	scoped  storage.Vault

	mu         sync.RWMutex
	snap       Snapshot
	remembered bool

	initOnce sync.Once
}

// NewStore builds a store over the academy API and the two persistence tiers.
func NewStore(api AuthAPI, durable, scoped storage.Vault) *Store {
	return &Store{
		api:     api,
		durable: durable,
		scoped:  scoped,
		snap:    Snapshot{Phase: PhaseAnonymous},
	}
}

// Initialize hydrates the session from persisted storage exactly once per
// store lifetime. Concurrent callers collapse onto a single hydration
// attempt; later callers block until it finished.
func (s *Store) Initialize(ctx context.Context) {
	s.initOnce.Do(func() { s.hydrate(ctx) })
}

func (s *Store) hydrate(ctx context.Context) {
	p := s.readPersisted(ctx)
	if !p.found {
		if p.corrupt {
			storage.Wipe(ctx, s.durable)
			storage.Wipe(ctx, s.scoped)
		}
		s.mu.Lock()
		s.snap = Snapshot{Phase: PhaseAnonymous, Initialized: true}
		s.mu.Unlock()
		return
	}

	// Optimistic restore: show the persisted identity while verification is
	// in flight, so a remembered user does not flash as logged out.
	s.mu.Lock()
	s.remembered = p.remembered
	s.snap = Snapshot{
		User:         p.user,
		Token:        p.token,
		RefreshToken: p.refresh,
		Phase:        PhaseHydrating,
		Loading:      true,
	}
	s.mu.Unlock()

	user, err := s.api.Verify(ctx, p.token)
	if err != nil {
		// Background integrity check: any failure silently clears the
		// session, there is nothing user-actionable to surface.
		s.clear(ctx)
		s.mu.Lock()
		s.snap.Initialized = true
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.snap.User = user
	s.snap.Phase = PhaseVerified
	s.snap.Loading = false
	s.snap.Initialized = true
	s.persistLocked(ctx)
	s.mu.Unlock()
}

type persisted struct {
	token      string
	refresh    string
	user       *model.User
	remembered bool
	found      bool
	corrupt    bool
}

// readPersisted checks the durable tier first, then the session-scoped one.
// A tier with partial or unparsable data is reported corrupt, which the
// caller treats identically to "no session" after wiping storage.
func (s *Store) readPersisted(ctx context.Context) persisted {
	tiers := []struct {
		vault      storage.Vault
		remembered bool
	}{
		{s.durable, true},
		{s.scoped, false},
	}

	for _, tier := range tiers {
		tokenRaw, _ := tier.vault.Get(ctx, storage.KeyToken)
		userRaw, _ := tier.vault.Get(ctx, storage.KeyUser)
		if tokenRaw == nil && userRaw == nil {
			continue
		}

		var user model.User
		if tokenRaw == nil || userRaw == nil ||
			json.Unmarshal(userRaw, &user) != nil || !user.Role.Valid() {
			return persisted{corrupt: true}
		}

		refreshRaw, _ := tier.vault.Get(ctx, storage.KeyRefreshToken)
		return persisted{
			token:      string(tokenRaw),
			refresh:    string(refreshRaw),
			user:       &user,
			remembered: tier.remembered,
			found:      true,
		}
	}
	return persisted{}
}

// Login authenticates against the academy API. On success the session is
// updated and persisted to the tier selected by remember; on failure the
// session is left untouched and the error is carried in the Result, never
// thrown.
func (s *Store) Login(ctx context.Context, identifier, secret string, remember bool) Result {
	s.Initialize(ctx)

	s.mu.Lock()
	s.snap.Loading = true
	s.snap.LastError = ""
	s.mu.Unlock()

	creds, err := s.api.Login(ctx, identifier, secret)
	if err != nil {
		msg, transport := failureText(err, "authentication failed")
		s.mu.Lock()
		s.snap.Loading = false
		s.snap.LastError = msg
		s.mu.Unlock()
		return Result{Error: msg, Transport: transport}
	}

	return s.adopt(ctx, creds, remember)
}

// Register creates an academy account and, like the login path, adopts the
// returned identity. Failures come back as a Result with the server message.
func (s *Store) Register(ctx context.Context, payload upstream.RegistrationPayload) Result {
	s.Initialize(ctx)

	s.mu.Lock()
	s.snap.Loading = true
	s.snap.LastError = ""
	s.mu.Unlock()

	creds, err := s.api.Register(ctx, payload)
	if err != nil {
		msg, transport := failureText(err, "registration failed")
		s.mu.Lock()
		s.snap.Loading = false
		s.snap.LastError = msg
		s.mu.Unlock()
		return Result{Error: msg, Transport: transport}
	}

	// Registration always remembers: the original flow lands the fresh user
	// in durable storage.
	return s.adopt(ctx, creds, true)
}

func (s *Store) adopt(ctx context.Context, creds *upstream.Credentials, remember bool) Result {
	s.mu.Lock()
	s.remembered = remember
	s.snap = Snapshot{
		User:         creds.User,
		Token:        creds.Token,
		RefreshToken: creds.RefreshToken,
		Phase:        PhaseVerified,
		Initialized:  true,
	}
	s.persistLocked(ctx)
	user := s.snap.User.Clone()
	s.mu.Unlock()
	return Result{Success: true, User: user}
}

// Logout clears the session unconditionally. The upstream logout call is
// fire-and-forget: a slow or failing server must never delay local clearing.
func (s *Store) Logout(ctx context.Context) {
	s.Initialize(ctx)

	s.mu.RLock()
	token := s.snap.Token
	s.mu.RUnlock()

	if token != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
			defer cancel()
			if err := s.api.Logout(ctx, token); err != nil {
				log.Printf("session: upstream logout failed: %v", err)
			}
		}()
	}

	s.clear(ctx)
}

// Refresh exchanges the stored refresh token for a new access token. A
// rejected refresh token means the session is gone server-side, so the local
// session is cleared; transport failures leave it intact for a later retry.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	refresh := s.snap.RefreshToken
	s.mu.RUnlock()
	if refresh == "" {
		return ErrNoSession
	}

	token, err := s.api.Refresh(ctx, refresh)
	if err != nil {
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) || errors.Is(err, upstream.ErrUnauthorized) {
			s.clear(ctx)
		}
		return err
	}

	s.mu.Lock()
	s.snap.Token = token
	s.persistLocked(ctx)
	s.mu.Unlock()
	return nil
}

// MaybeRefresh refreshes proactively when the access token is close to
// expiry. An opaque or claim-less token simply skips proactive refresh.
func (s *Store) MaybeRefresh(ctx context.Context) {
	s.mu.RLock()
	token, refresh := s.snap.Token, s.snap.RefreshToken
	s.mu.RUnlock()
	if token == "" || refresh == "" {
		return
	}

	exp, ok := tokenExpiry(token)
	if !ok || time.Until(exp) > refreshLeeway {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		log.Printf("session: proactive refresh failed: %v", err)
	}
}

// UpdateProfile changes the editable profile fields upstream and adopts the
// returned canonical record.
func (s *Store) UpdateProfile(ctx context.Context, update upstream.ProfileUpdate) Result {
	s.mu.RLock()
	token := s.snap.Token
	s.mu.RUnlock()
	if token == "" {
		return Result{Error: "not logged in"}
	}

	s.mu.Lock()
	s.snap.Loading = true
	s.snap.LastError = ""
	s.mu.Unlock()

	user, err := s.api.UpdateProfile(ctx, token, update)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			s.clear(ctx)
			return Result{Error: "session expired"}
		}
		msg, transport := failureText(err, "profile update failed")
		s.mu.Lock()
		s.snap.Loading = false
		s.snap.LastError = msg
		s.mu.Unlock()
		return Result{Error: msg, Transport: transport}
	}

	s.mu.Lock()
	s.snap.User = user
	s.snap.Loading = false
	s.persistLocked(ctx)
	cloned := s.snap.User.Clone()
	s.mu.Unlock()
	return Result{Success: true, User: cloned}
}

// HandleUnauthorized clears the session after any portal request observed a
// 401 from the academy API.
func (s *Store) HandleUnauthorized(ctx context.Context) {
	s.clear(ctx)
}

// Snapshot returns a consistent copy of the session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.User = snap.User.Clone()
	return snap
}

// clear drops the in-memory identity and wipes both persistence tiers. The
// initialized flag survives; clearing never un-initializes a store.
func (s *Store) clear(ctx context.Context) {
	storage.Wipe(ctx, s.durable)
	storage.Wipe(ctx, s.scoped)

	s.mu.Lock()
	initialized := s.snap.Initialized
	s.snap = Snapshot{Phase: PhaseAnonymous, Initialized: initialized}
	s.mu.Unlock()
}

// persistLocked writes the current identity to the selected tier and wipes
// the other, so a stale copy can never resurrect a logged-out session. Must
// be called with s.mu held.
func (s *Store) persistLocked(ctx context.Context) {
	tier, other := s.scoped, s.durable
	if s.remembered {
		tier, other = s.durable, s.scoped
	}
	storage.Wipe(ctx, other)

	if s.snap.Token == "" || s.snap.User == nil {
		storage.Wipe(ctx, tier)
		return
	}

	payload, err := json.Marshal(s.snap.User)
	if err != nil {
		log.Printf("session: persist user: %v", err)
		return
	}
	_ = tier.Set(ctx, storage.KeyToken, []byte(s.snap.Token))
	if s.snap.RefreshToken != "" {
		_ = tier.Set(ctx, storage.KeyRefreshToken, []byte(s.snap.RefreshToken))
	} else {
		_ = tier.Delete(ctx, storage.KeyRefreshToken)
	}
	_ = tier.Set(ctx, storage.KeyUser, payload)
}

// failureText maps an operation error to the user-facing message, reporting
// whether it was a transport failure. Raw error text never leaks to the UI.
func failureText(err error, fallback string) (string, bool) {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message, false
		}
		return fallback, false
	}
	if errors.Is(err, upstream.ErrUnauthorized) {
		return fallback, false
	}
	return "network error, please try again", true
}

// tokenExpiry reads the exp claim without verifying the signature; the portal
// holds no upstream signing key and only uses it to schedule refreshes.
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
