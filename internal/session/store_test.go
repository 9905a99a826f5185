package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"academyhub/internal/authz"
	"academyhub/internal/model"
	"academyhub/internal/storage"
	"academyhub/internal/upstream"
)

// MockAuthAPI is a mock implementation of AuthAPI.
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Login(ctx context.Context, identifier, secret string) (*upstream.Credentials, error) {
	args := m.Called(ctx, identifier, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*upstream.Credentials), args.Error(1)
}

func (m *MockAuthAPI) Register(ctx context.Context, payload upstream.RegistrationPayload) (*upstream.Credentials, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*upstream.Credentials), args.Error(1)
}

func (m *MockAuthAPI) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAuthAPI) Verify(ctx context.Context, token string) (*model.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockAuthAPI) Refresh(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *MockAuthAPI) UpdateProfile(ctx context.Context, token string, update upstream.ProfileUpdate) (*model.User, error) {
	args := m.Called(ctx, token, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func newTestStore(api AuthAPI) (*Store, *storage.MemoryVault, *storage.MemoryVault) {
	durable := storage.NewMemoryVault()
	scoped := storage.NewMemoryVault()
	return NewStore(api, durable, scoped), durable, scoped
}

// assertCoupled checks the token/user coupling invariant on a snapshot.
func assertCoupled(t *testing.T, snap Snapshot) {
	t.Helper()
	assert.Equal(t, snap.User != nil, snap.Token != "", "token must be present iff user is present")
}

func assertVaultEmpty(t *testing.T, v storage.Vault) {
	t.Helper()
	for _, key := range storage.SessionKeys {
		got, err := v.Get(context.Background(), key)
		require.NoError(t, err)
		assert.Nil(t, got, "key %s", key)
	}
}

func seedVault(t *testing.T, v storage.Vault, token string, user []byte) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, v.Set(ctx, storage.KeyToken, []byte(token)))
	require.NoError(t, v.Set(ctx, storage.KeyUser, user))
}

func TestInitializeEmptyStorage(t *testing.T) {
	api := new(MockAuthAPI)
	store, _, _ := newTestStore(api)

	store.Initialize(context.Background())

	snap := store.Snapshot()
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	assert.False(t, snap.Authenticated())
	assert.True(t, snap.Initialized)
	assert.False(t, snap.Loading)
	assert.Equal(t, PhaseAnonymous, snap.Phase)
	assertCoupled(t, snap)
	api.AssertExpectations(t) // no network call was made
}

func TestInitializeVerifiesPersistedSession(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, _ := newTestStore(api)
	seedVault(t, durable, "T1", []byte(`{"id":1,"role":"coach"}`))

	canonical := &model.User{ID: 1, Role: model.RoleCoach, DisplayName: "Coach A", TeamID: "t1"}
	api.On("Verify", mock.Anything, "T1").Return(canonical, nil)

	store.Initialize(context.Background())

	snap := store.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, "Coach A", snap.User.DisplayName)
	assert.Equal(t, PhaseVerified, snap.Phase)
	assert.True(t, snap.Initialized)
	assert.False(t, snap.Loading)
	assertCoupled(t, snap)

	// The canonical record was re-persisted to the durable tier.
	raw, err := durable.Get(context.Background(), storage.KeyUser)
	require.NoError(t, err)
	var persisted model.User
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.Equal(t, "Coach A", persisted.DisplayName)

	api.AssertExpectations(t)
}

func TestInitializeConcurrentCallersSingleVerify(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, _ := newTestStore(api)
	seedVault(t, durable, "T1", []byte(`{"id":1,"role":"admin"}`))

	api.On("Verify", mock.Anything, "T1").
		Return(&model.User{ID: 1, Role: model.RoleAdmin}, nil).
		Once()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Initialize(context.Background())
		}()
	}
	wg.Wait()

	assert.True(t, store.Snapshot().Initialized)
	api.AssertExpectations(t)
}

func TestInitializeVerifyRejectionClearsSession(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, scoped := newTestStore(api)
	seedVault(t, durable, "stale", []byte(`{"id":1,"role":"parent"}`))

	api.On("Verify", mock.Anything, "stale").Return(nil, upstream.ErrUnauthorized)

	store.Initialize(context.Background())

	snap := store.Snapshot()
	assert.False(t, snap.Authenticated())
	assert.True(t, snap.Initialized)
	assert.Empty(t, snap.LastError, "background verification is silent")
	assertCoupled(t, snap)
	assertVaultEmpty(t, durable)
	assertVaultEmpty(t, scoped)
}

func TestInitializeVerifyTransportFailureClearsSession(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, _ := newTestStore(api)
	seedVault(t, durable, "T1", []byte(`{"id":1,"role":"player","playerId":"p9"}`))

	api.On("Verify", mock.Anything, "T1").Return(nil, upstream.ErrUnreachable)

	store.Initialize(context.Background())

	snap := store.Snapshot()
	assert.False(t, snap.Authenticated())
	assert.True(t, snap.Initialized)
	assertVaultEmpty(t, durable)
}

func TestInitializeCorruptUserClearsEverything(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, scoped := newTestStore(api)
	seedVault(t, durable, "abc", []byte("not-json"))

	store.Initialize(context.Background())

	snap := store.Snapshot()
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	assert.True(t, snap.Initialized)
	assertCoupled(t, snap)
	assertVaultEmpty(t, durable)
	assertVaultEmpty(t, scoped)
	api.AssertExpectations(t) // corrupt data never reaches the network
}

func TestInitializeTokenWithoutUserIsNoSession(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, _ := newTestStore(api)
	require.NoError(t, durable.Set(context.Background(), storage.KeyToken, []byte("T1")))

	store.Initialize(context.Background())

	snap := store.Snapshot()
	assert.False(t, snap.Authenticated())
	assertVaultEmpty(t, durable)
	api.AssertExpectations(t)
}

func TestLoginSuccessPersistsToDurableTier(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, scoped := newTestStore(api)

	admin := &model.User{ID: 1, Username: "admin", Role: model.RoleAdmin}
	api.On("Login", mock.Anything, "admin", "admin123").Return(&upstream.Credentials{
		User:         admin,
		Token:        "T2",
		RefreshToken: "R2",
	}, nil)

	res := store.Login(context.Background(), "admin", "admin123", true)

	require.True(t, res.Success)
	require.NotNil(t, res.User)
	assert.Equal(t, model.RoleAdmin, res.User.Role)

	snap := store.Snapshot()
	assert.Equal(t, "T2", snap.Token)
	assert.Equal(t, PhaseVerified, snap.Phase)
	assert.False(t, snap.Loading)
	assertCoupled(t, snap)

	token, err := durable.Get(context.Background(), storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("T2"), token)
	assertVaultEmpty(t, scoped)
}

func TestLoginWithoutRememberUsesSessionScopedTier(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, scoped := newTestStore(api)

	api.On("Login", mock.Anything, "coach.a", "pw").Return(&upstream.Credentials{
		User:  &model.User{ID: 2, Role: model.RoleCoach},
		Token: "T3",
	}, nil)

	res := store.Login(context.Background(), "coach.a", "pw", false)

	require.True(t, res.Success)
	token, err := scoped.Get(context.Background(), storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("T3"), token)
	assertVaultEmpty(t, durable)
}

func TestLoginRejectionLeavesSessionUntouched(t *testing.T) {
	api := new(MockAuthAPI)
	store, _, _ := newTestStore(api)

	api.On("Login", mock.Anything, "admin", "admin123").Return(&upstream.Credentials{
		User:  &model.User{ID: 1, Role: model.RoleAdmin},
		Token: "T1",
	}, nil)
	api.On("Login", mock.Anything, "bad", "bad").Return(nil, &upstream.APIError{
		Status:  400,
		Message: "Invalid credentials",
	})

	require.True(t, store.Login(context.Background(), "admin", "admin123", true).Success)
	before := store.Snapshot()

	res := store.Login(context.Background(), "bad", "bad", true)

	assert.False(t, res.Success)
	assert.Equal(t, "Invalid credentials", res.Error)
	assert.False(t, res.Transport)

	after := store.Snapshot()
	assert.Equal(t, before.Token, after.Token)
	assert.Equal(t, before.User.ID, after.User.ID)
	assert.Equal(t, "Invalid credentials", after.LastError)
	assert.False(t, after.Loading)
	assertCoupled(t, after)
}

func TestLoginTransportFailureUsesGenericMessage(t *testing.T) {
	api := new(MockAuthAPI)
	store, _, _ := newTestStore(api)

	api.On("Login", mock.Anything, "admin", "admin123").Return(nil, upstream.ErrUnreachable)

	res := store.Login(context.Background(), "admin", "admin123", true)

	assert.False(t, res.Success)
	assert.True(t, res.Transport)
	assert.Contains(t, res.Error, "network error")
	assert.False(t, strings.Contains(res.Error, "unreachable"), "raw error text must not leak")
	assert.False(t, store.Snapshot().Authenticated())
}

func TestLogoutIsUnconditional(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, scoped := newTestStore(api)

	api.On("Login", mock.Anything, "admin", "admin123").Return(&upstream.Credentials{
		User:  &model.User{ID: 1, Role: model.RoleAdmin},
		Token: "T1",
	}, nil)

	logoutCalled := make(chan struct{})
	api.On("Logout", mock.Anything, "T1").
		Return(errors.New("upstream exploded")).
		Run(func(mock.Arguments) { close(logoutCalled) })

	require.True(t, store.Login(context.Background(), "admin", "admin123", true).Success)

	store.Logout(context.Background())

	// Local state is cleared immediately, regardless of the upstream call.
	snap := store.Snapshot()
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Token)
	assert.True(t, snap.Initialized)
	assertCoupled(t, snap)
	assertVaultEmpty(t, durable)
	assertVaultEmpty(t, scoped)

	select {
	case <-logoutCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream logout was never attempted")
	}
}

func TestRegisterRejectionBecomesResult(t *testing.T) {
	api := new(MockAuthAPI)
	store, _, _ := newTestStore(api)

	payload := upstream.RegistrationPayload{Email: "dup@example.com", Role: model.RoleParent}
	api.On("Register", mock.Anything, payload).Return(nil, &upstream.APIError{
		Status:  409,
		Message: "email already registered",
	})

	res := store.Register(context.Background(), payload)

	assert.False(t, res.Success)
	assert.Equal(t, "email already registered", res.Error)
	assert.False(t, store.Snapshot().Authenticated())
}

func TestRegisterSuccessBehavesLikeLogin(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, _ := newTestStore(api)

	payload := upstream.RegistrationPayload{Username: "parent.b", Email: "b@example.com", Role: model.RoleParent}
	api.On("Register", mock.Anything, payload).Return(&upstream.Credentials{
		User:         &model.User{ID: 5, Role: model.RoleParent, PlayerID: "p7"},
		Token:        "T5",
		RefreshToken: "R5",
	}, nil)

	res := store.Register(context.Background(), payload)

	require.True(t, res.Success)
	snap := store.Snapshot()
	assert.Equal(t, PhaseVerified, snap.Phase)
	assertCoupled(t, snap)

	token, err := durable.Get(context.Background(), storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("T5"), token)
}

func TestRefreshUpdatesTokenAndPersists(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, _ := newTestStore(api)

	api.On("Login", mock.Anything, "admin", "pw").Return(&upstream.Credentials{
		User:         &model.User{ID: 1, Role: model.RoleAdmin},
		Token:        "T1",
		RefreshToken: "R1",
	}, nil)
	api.On("Refresh", mock.Anything, "R1").Return("T2", nil)

	require.True(t, store.Login(context.Background(), "admin", "pw", true).Success)
	require.NoError(t, store.Refresh(context.Background()))

	assert.Equal(t, "T2", store.Snapshot().Token)
	token, err := durable.Get(context.Background(), storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("T2"), token)
}

func TestRefreshRejectionClearsSession(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, _ := newTestStore(api)

	api.On("Login", mock.Anything, "admin", "pw").Return(&upstream.Credentials{
		User:         &model.User{ID: 1, Role: model.RoleAdmin},
		Token:        "T1",
		RefreshToken: "R1",
	}, nil)
	api.On("Refresh", mock.Anything, "R1").Return("", &upstream.APIError{Status: 400, Message: "refresh token revoked"})

	require.True(t, store.Login(context.Background(), "admin", "pw", true).Success)
	require.Error(t, store.Refresh(context.Background()))

	assert.False(t, store.Snapshot().Authenticated())
	assertVaultEmpty(t, durable)
}

func TestRefreshTransportFailureKeepsSession(t *testing.T) {
	api := new(MockAuthAPI)
	store, _, _ := newTestStore(api)

	api.On("Login", mock.Anything, "admin", "pw").Return(&upstream.Credentials{
		User:         &model.User{ID: 1, Role: model.RoleAdmin},
		Token:        "T1",
		RefreshToken: "R1",
	}, nil)
	api.On("Refresh", mock.Anything, "R1").Return("", upstream.ErrUnreachable)

	require.True(t, store.Login(context.Background(), "admin", "pw", true).Success)
	require.Error(t, store.Refresh(context.Background()))

	snap := store.Snapshot()
	assert.True(t, snap.Authenticated())
	assert.Equal(t, "T1", snap.Token)
}

func signedToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unit-secret"))
	require.NoError(t, err)
	return token
}

func TestMaybeRefreshOnlyNearExpiry(t *testing.T) {
	tests := []struct {
		name          string
		token         func(t *testing.T) string
		expectRefresh bool
	}{
		{"near expiry", func(t *testing.T) string { return signedToken(t, time.Minute) }, true},
		{"fresh token", func(t *testing.T) string { return signedToken(t, time.Hour) }, false},
		{"opaque token", func(t *testing.T) string { return "not-a-jwt" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(MockAuthAPI)
			store, _, _ := newTestStore(api)

			token := tt.token(t)
			api.On("Login", mock.Anything, "admin", "pw").Return(&upstream.Credentials{
				User:         &model.User{ID: 1, Role: model.RoleAdmin},
				Token:        token,
				RefreshToken: "R1",
			}, nil)
			if tt.expectRefresh {
				api.On("Refresh", mock.Anything, "R1").Return("T2", nil).Once()
			}

			require.True(t, store.Login(context.Background(), "admin", "pw", true).Success)
			store.MaybeRefresh(context.Background())

			api.AssertExpectations(t)
		})
	}
}

func TestHandleUnauthorizedClearsSession(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, _ := newTestStore(api)

	api.On("Login", mock.Anything, "admin", "pw").Return(&upstream.Credentials{
		User:  &model.User{ID: 1, Role: model.RoleAdmin},
		Token: "T1",
	}, nil)

	require.True(t, store.Login(context.Background(), "admin", "pw", true).Success)
	store.HandleUnauthorized(context.Background())

	snap := store.Snapshot()
	assert.False(t, snap.Authenticated())
	assert.True(t, snap.Initialized)
	assertVaultEmpty(t, durable)
}

func TestUpdateProfileAdoptsCanonicalUser(t *testing.T) {
	api := new(MockAuthAPI)
	store, durable, _ := newTestStore(api)

	api.On("Login", mock.Anything, "parent.b", "pw").Return(&upstream.Credentials{
		User:  &model.User{ID: 5, Role: model.RoleParent, DisplayName: "Old Name"},
		Token: "T1",
	}, nil)
	update := upstream.ProfileUpdate{DisplayName: "New Name"}
	api.On("UpdateProfile", mock.Anything, "T1", update).Return(
		&model.User{ID: 5, Role: model.RoleParent, DisplayName: "New Name"}, nil)

	require.True(t, store.Login(context.Background(), "parent.b", "pw", true).Success)
	res := store.UpdateProfile(context.Background(), update)

	require.True(t, res.Success)
	assert.Equal(t, "New Name", store.Snapshot().User.DisplayName)

	raw, err := durable.Get(context.Background(), storage.KeyUser)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "New Name")
}

func TestRolePredicates(t *testing.T) {
	api := new(MockAuthAPI)
	store, _, _ := newTestStore(api)

	// Anonymous store: everything is denied.
	assert.False(t, store.HasRole(model.RoleAdmin))
	assert.False(t, store.HasAnyRole(model.RoleAdmin, model.RoleCoach))
	assert.False(t, store.CanAccess(authz.CapDashboard))
	assert.False(t, store.CanAccessResource(authz.ResourcePlayer, "p7"))

	api.On("Login", mock.Anything, "coach.a", "pw").Return(&upstream.Credentials{
		User:  &model.User{ID: 2, Role: model.RoleCoach, TeamID: "t1"},
		Token: "T1",
	}, nil)
	require.True(t, store.Login(context.Background(), "coach.a", "pw", true).Success)

	assert.True(t, store.IsCoach())
	assert.False(t, store.IsAdmin())
	assert.True(t, store.HasAnyRole(model.RoleAdmin, model.RoleCoach))
	assert.True(t, store.CanAccess(authz.CapQRCheckin))
	assert.False(t, store.CanAccess(authz.CapBilling))
	assert.True(t, store.CanAccessResource(authz.ResourceTeam, "t1"))
	assert.False(t, store.CanAccessResource(authz.ResourceTeam, "t2"))
}
