package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"academyhub/internal/auth"
	"academyhub/internal/authz"
	"academyhub/internal/errors"
	"academyhub/internal/guard"
	"academyhub/internal/model"
	"academyhub/internal/session"
	"academyhub/internal/upstream"
)

// AuthHandler handles the portal's login, logout, registration and session
// endpoints. All state lives in the browser's session store; the handler only
// translates between HTTP and store operations.
type AuthHandler struct {
	registry *auth.Registry
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(registry *auth.Registry) *AuthHandler {
	return &AuthHandler{registry: registry}
}

// LoginRequest represents a portal login request.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Secret     string `json:"secret" validate:"required"`
	Remember   bool   `json:"remember"`
}

// RegisterRequest represents a portal registration request.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3"`
	DisplayName string `json:"displayName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	Role        string `json:"role" validate:"required,oneof=admin coach parent player"`
	TeamID      string `json:"teamId"`
	PlayerID    string `json:"playerId"`
}

// ProfileRequest carries the editable profile fields.
type ProfileRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email" validate:"omitempty,email"`
}

// SessionResponse describes the session as the front-end sees it.
type SessionResponse struct {
	Authenticated bool               `json:"authenticated"`
	Phase         string             `json:"phase"`
	User          *model.User        `json:"user,omitempty"`
	Capabilities  []authz.Capability `json:"capabilities,omitempty"`
	LastError     string             `json:"lastError,omitempty"`
}

func sessionResponse(snap session.Snapshot) SessionResponse {
	res := SessionResponse{
		Authenticated: snap.Authenticated(),
		Phase:         string(snap.Phase),
		User:          snap.User,
		LastError:     snap.LastError,
	}
	if snap.User != nil {
		res.Capabilities = authz.Capabilities(snap.User.Role)
	}
	return res
}

// sessionStore resolves the request's store, failing loudly when a route was
// wired without the session middleware chain.
func sessionStore(c echo.Context) (*session.Store, error) {
	store := auth.SessionStore(c)
	if store == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "session store not attached")
	}
	return store, nil
}

// loginFailure maps a failed store result onto HTTP: 502 when the academy API
// could not be reached, 401 with the server's message otherwise.
func loginFailure(c echo.Context, result session.Result) error {
	httpErr := errors.NewHTTPError(http.StatusUnauthorized, result.Error, "INVALID_CREDENTIALS")
	if result.Transport {
		httpErr = errors.NewHTTPError(http.StatusBadGateway, result.Error, "UPSTREAM_UNREACHABLE")
	}
	return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// Login godoc
// @Summary Log in to the portal
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	store, err := sessionStore(c)
	if err != nil {
		return err
	}
	result := store.Login(c.Request().Context(), req.Identifier, req.Secret, req.Remember)
	if !result.Success {
		return loginFailure(c, result)
	}

	return c.JSON(http.StatusOK, sessionResponse(store.Snapshot()))
}

// Register godoc
// @Summary Register an academy account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	store, err := sessionStore(c)
	if err != nil {
		return err
	}
	result := store.Register(c.Request().Context(), upstream.RegistrationPayload{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
		Role:        model.Role(req.Role),
		TeamID:      req.TeamID,
		PlayerID:    req.PlayerID,
	})
	if !result.Success {
		return loginFailure(c, result)
	}

	return c.JSON(http.StatusCreated, sessionResponse(store.Snapshot()))
}

// Logout godoc
// @Summary Log out of the portal
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /portal/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	store, err := sessionStore(c)
	if err != nil {
		return err
	}
	store.Logout(c.Request().Context())

	// Drop the in-memory store so the next request with this cookie starts
	// from wiped storage.
	h.registry.Evict(auth.SessionID(c))

	return c.JSON(http.StatusOK, map[string]string{
		"message":  "logged out",
		"redirect": guard.LoginRoute,
	})
}

// Session godoc
// @Summary Current session state
// @Tags auth
// @Produce json
// @Success 200 {object} SessionResponse
// @Router /portal/auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	store, err := sessionStore(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	store.Initialize(ctx)
	store.MaybeRefresh(ctx)

	return c.JSON(http.StatusOK, sessionResponse(store.Snapshot()))
}

// UpdateProfile godoc
// @Summary Update the logged-in user's profile
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ProfileRequest true "Profile fields"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/profile [put]
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	store, err := sessionStore(c)
	if err != nil {
		return err
	}
	result := store.UpdateProfile(c.Request().Context(), upstream.ProfileUpdate{
		DisplayName: req.DisplayName,
		Email:       req.Email,
	})
	if !result.Success {
		httpErr := errors.NewHTTPError(http.StatusUnauthorized, result.Error, "PROFILE_UPDATE_FAILED")
		if result.Transport {
			httpErr = errors.NewHTTPError(http.StatusBadGateway, result.Error, "UPSTREAM_UNREACHABLE")
		}
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, sessionResponse(store.Snapshot()))
}
