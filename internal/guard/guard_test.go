package guard_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academyhub/internal/auth"
	"academyhub/internal/authz"
	"academyhub/internal/guard"
	"academyhub/internal/model"
	"academyhub/internal/session"
	"academyhub/internal/storage"
	"academyhub/internal/upstream"
)

func snapshotFor(user *model.User) session.Snapshot {
	snap := session.Snapshot{Phase: session.PhaseAnonymous, Initialized: true}
	if user != nil {
		snap.User = user
		snap.Token = "T1"
		snap.Phase = session.PhaseVerified
	}
	return snap
}

func TestEvaluateOrdering(t *testing.T) {
	admin := &model.User{ID: 1, Role: model.RoleAdmin}
	parent := &model.User{ID: 3, Role: model.RoleParent, PlayerID: "p7"}

	adminOnly := guard.Descriptor{RequireAuth: true, RequireRoles: []model.Role{model.RoleAdmin}}

	tests := []struct {
		name       string
		snap       session.Snapshot
		desc       guard.Descriptor
		resourceID string
		outcome    guard.Outcome
	}{
		{
			// Loading wins over every other check while hydration is pending,
			// even when both "no user" and "wrong role" would apply.
			name:    "uninitialized always loads",
			snap:    session.Snapshot{Phase: session.PhaseAnonymous},
			desc:    adminOnly,
			outcome: guard.OutcomeLoading,
		},
		{
			name:    "loading during login",
			snap:    session.Snapshot{Phase: session.PhaseAnonymous, Initialized: true, Loading: true},
			desc:    adminOnly,
			outcome: guard.OutcomeLoading,
		},
		{
			name:    "hydrating counts as loading",
			snap:    session.Snapshot{User: admin, Token: "T1", Phase: session.PhaseHydrating, Initialized: true, Loading: true},
			desc:    adminOnly,
			outcome: guard.OutcomeLoading,
		},
		{
			name:    "unauthenticated redirects",
			snap:    snapshotFor(nil),
			desc:    guard.Descriptor{RequireAuth: true},
			outcome: guard.OutcomeRedirectLogin,
		},
		{
			// Authenticated but wrong role: a denial panel, never a login
			// redirect.
			name:    "parent denied admin page",
			snap:    snapshotFor(parent),
			desc:    adminOnly,
			outcome: guard.OutcomeDeniedRole,
		},
		{
			name:    "capability denial",
			snap:    snapshotFor(parent),
			desc:    guard.Descriptor{RequireAuth: true, Capability: authz.CapQRCheckin},
			outcome: guard.OutcomeDeniedRole,
		},
		{
			name:       "resource denial after role passes",
			snap:       snapshotFor(parent),
			desc:       guard.Descriptor{RequireAuth: true, Resource: &guard.ResourceCheck{Kind: authz.ResourcePlayer, Param: "id"}},
			resourceID: "p9",
			outcome:    guard.OutcomeDeniedResource,
		},
		{
			name:       "granted",
			snap:       snapshotFor(parent),
			desc:       guard.Descriptor{RequireAuth: true, Capability: authz.CapBilling, Resource: &guard.ResourceCheck{Kind: authz.ResourcePlayer, Param: "id"}},
			resourceID: "p7",
			outcome:    guard.OutcomeGranted,
		},
		{
			name:    "open route with empty descriptor",
			snap:    snapshotFor(nil),
			desc:    guard.Descriptor{},
			outcome: guard.OutcomeGranted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.outcome, guard.Evaluate(tt.snap, tt.desc, tt.resourceID))
		})
	}
}

// stubAPI satisfies session.AuthAPI with canned answers.
type stubAPI struct {
	creds *upstream.Credentials
}

func (s *stubAPI) Login(context.Context, string, string) (*upstream.Credentials, error) {
	if s.creds == nil {
		return nil, &upstream.APIError{Status: 400, Message: "invalid credentials"}
	}
	return s.creds, nil
}

func (s *stubAPI) Register(context.Context, upstream.RegistrationPayload) (*upstream.Credentials, error) {
	return nil, errors.New("not supported")
}

func (s *stubAPI) Logout(context.Context, string) error { return nil }

func (s *stubAPI) Verify(context.Context, string) (*model.User, error) {
	if s.creds == nil {
		return nil, upstream.ErrUnauthorized
	}
	return s.creds.User, nil
}

func (s *stubAPI) Refresh(context.Context, string) (string, error) {
	return "", errors.New("not supported")
}

func (s *stubAPI) UpdateProfile(context.Context, string, upstream.ProfileUpdate) (*model.User, error) {
	return nil, errors.New("not supported")
}

func newStore(api session.AuthAPI) *session.Store {
	return session.NewStore(api, storage.NewMemoryVault(), storage.NewMemoryVault())
}

func performGuarded(t *testing.T, store *session.Store, d guard.Descriptor, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	res := httptest.NewRecorder()
	c := e.NewContext(req, res)
	auth.WithStore(c, store)

	handler := guard.Require(d)(func(c echo.Context) error {
		return c.String(http.StatusOK, "content")
	})
	require.NoError(t, handler(c))
	return res
}

func TestMiddlewareRedirectsWithNextParam(t *testing.T) {
	store := newStore(&stubAPI{})

	res := performGuarded(t, store, guard.Descriptor{RequireAuth: true}, "/portal/billing/invoices?month=5")

	assert.Equal(t, http.StatusSeeOther, res.Code)
	location := res.Header().Get(echo.HeaderLocation)
	assert.True(t, strings.HasPrefix(location, guard.LoginRoute+"?next="), "got %q", location)
	assert.Contains(t, location, "%2Fportal%2Fbilling%2Finvoices")
}

func TestMiddlewareRendersRoleDenialPanel(t *testing.T) {
	api := &stubAPI{creds: &upstream.Credentials{
		User:  &model.User{ID: 3, Role: model.RoleParent, PlayerID: "p7"},
		Token: "T1",
	}}
	store := newStore(api)
	require.True(t, store.Login(context.Background(), "parent.b", "pw", false).Success)

	res := performGuarded(t, store, guard.Descriptor{
		RequireAuth:  true,
		RequireRoles: []model.Role{model.RoleAdmin},
	}, "/portal/admin/overview")

	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "ROLE_DENIED")
	assert.NotContains(t, res.Header().Get(echo.HeaderLocation), guard.LoginRoute)
}

func TestMiddlewareGrantsAndRunsHandler(t *testing.T) {
	api := &stubAPI{creds: &upstream.Credentials{
		User:  &model.User{ID: 2, Role: model.RoleCoach, TeamID: "t1"},
		Token: "T1",
	}}
	store := newStore(api)
	require.True(t, store.Login(context.Background(), "coach.a", "pw", false).Success)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/portal/teams/t1/roster", nil)
	res := httptest.NewRecorder()
	c := e.NewContext(req, res)
	c.SetParamNames("id")
	c.SetParamValues("t1")
	auth.WithStore(c, store)

	d := guard.Descriptor{
		RequireAuth: true,
		Capability:  authz.CapRoster,
		Resource:    &guard.ResourceCheck{Kind: authz.ResourceTeam, Param: "id"},
	}
	handler := guard.Require(d)(func(c echo.Context) error {
		return c.String(http.StatusOK, "content")
	})
	require.NoError(t, handler(c))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "content", res.Body.String())
}

func TestMiddlewareResourceDenial(t *testing.T) {
	api := &stubAPI{creds: &upstream.Credentials{
		User:  &model.User{ID: 3, Role: model.RoleParent, PlayerID: "p7", TeamID: "t1"},
		Token: "T1",
	}}
	store := newStore(api)
	require.True(t, store.Login(context.Background(), "parent.b", "pw", false).Success)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/portal/players/p9", nil)
	res := httptest.NewRecorder()
	c := e.NewContext(req, res)
	c.SetParamNames("id")
	c.SetParamValues("p9")
	auth.WithStore(c, store)

	d := guard.Descriptor{
		RequireAuth: true,
		Resource:    &guard.ResourceCheck{Kind: authz.ResourcePlayer, Param: "id"},
	}
	handler := guard.Require(d)(func(c echo.Context) error {
		return c.String(http.StatusOK, "content")
	})
	require.NoError(t, handler(c))

	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "RESOURCE_DENIED")
}

func TestMiddlewareWithoutStoreFailsLoudly(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/portal/dashboard", nil)
	res := httptest.NewRecorder()
	c := e.NewContext(req, res)

	handler := guard.Require(guard.Descriptor{RequireAuth: true})(func(c echo.Context) error {
		return c.String(http.StatusOK, "content")
	})
	err := handler(c)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
}
