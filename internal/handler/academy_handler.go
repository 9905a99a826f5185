package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"academyhub/internal/auth"
	"academyhub/internal/errors"
	"academyhub/internal/session"
	"academyhub/internal/upstream"
)

// AcademyAPI is the slice of the academy API the resource handlers proxy.
type AcademyAPI interface {
	Dashboard(ctx context.Context, token string) (json.RawMessage, error)
	Roster(ctx context.Context, token, teamID string) ([]upstream.Player, error)
	Attendance(ctx context.Context, token, teamID, date string) ([]upstream.AttendanceRecord, error)
	MarkAttendance(ctx context.Context, token string, mark upstream.AttendanceMark) (*upstream.AttendanceRecord, error)
	Invoices(ctx context.Context, token string) ([]upstream.Invoice, error)
	MatchStats(ctx context.Context, token, matchID string) (*upstream.MatchStatistics, error)
	CheckinQR(ctx context.Context, token, code string) (*upstream.CheckinResult, error)
	AdminOverview(ctx context.Context, token string) (json.RawMessage, error)
}

var _ AcademyAPI = (*upstream.Client)(nil)

// AcademyHandler proxies academy data endpoints for the logged-in user. Guards
// have already decided access by the time these handlers run; the handlers
// attach the bearer token and translate upstream failures.
type AcademyHandler struct {
	api AcademyAPI
}

// NewAcademyHandler creates a new academy data handler.
func NewAcademyHandler(api AcademyAPI) *AcademyHandler {
	return &AcademyHandler{api: api}
}

// MarkAttendanceRequest marks one player present or absent.
type MarkAttendanceRequest struct {
	TrainingID string `json:"trainingId" validate:"required"`
	PlayerID   string `json:"playerId" validate:"required"`
	Present    bool   `json:"present"`
}

// CheckinRequest submits a scanned QR code.
type CheckinRequest struct {
	Code string `json:"code" validate:"required"`
}

// upstreamError maps an academy API failure onto the portal response. A 401
// also clears the session, so the next guarded request redirects to login.
func upstreamError(c echo.Context, store *session.Store, err error) error {
	if stderrors.Is(err, upstream.ErrUnauthorized) {
		store.HandleUnauthorized(c.Request().Context())
		httpErr := errors.MapErrorToHTTP(errors.ErrSessionExpired)
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	var apiErr *upstream.APIError
	if stderrors.As(err, &apiErr) {
		status := apiErr.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		httpErr := errors.NewHTTPError(status, apiErr.Error(), "UPSTREAM_REJECTED")
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	httpErr := errors.MapErrorToHTTP(errors.ErrUpstreamUnreachable)
	return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// token returns the session store and its current bearer token, failing loudly
// when a route was wired without the session middleware chain.
func token(c echo.Context) (*session.Store, string, error) {
	store := auth.SessionStore(c)
	if store == nil {
		return nil, "", echo.NewHTTPError(http.StatusInternalServerError, "session store not attached")
	}
	return store, store.Snapshot().Token, nil
}

// Dashboard godoc
// @Summary Role-specific dashboard summary
// @Tags academy
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/dashboard [get]
func (h *AcademyHandler) Dashboard(c echo.Context) error {
	store, tok, err := token(c)
	if err != nil {
		return err
	}
	summary, err := h.api.Dashboard(c.Request().Context(), tok)
	if err != nil {
		return upstreamError(c, store, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"summary": summary})
}

// Roster godoc
// @Summary Team roster
// @Tags academy
// @Produce json
// @Param id path string true "Team id"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/teams/{id}/roster [get]
func (h *AcademyHandler) Roster(c echo.Context) error {
	store, tok, err := token(c)
	if err != nil {
		return err
	}
	players, err := h.api.Roster(c.Request().Context(), tok, c.Param("id"))
	if err != nil {
		return upstreamError(c, store, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"players": players})
}

// Attendance godoc
// @Summary Attendance records for a team and date
// @Tags academy
// @Produce json
// @Param teamId query string false "Team id, defaults to the coach's own team"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/attendance [get]
func (h *AcademyHandler) Attendance(c echo.Context) error {
	store, tok, err := token(c)
	if err != nil {
		return err
	}

	teamID := c.QueryParam("teamId")
	if teamID == "" {
		if user := store.Snapshot().User; user != nil {
			teamID = user.TeamID
		}
	}

	records, err := h.api.Attendance(c.Request().Context(), tok, teamID, c.QueryParam("date"))
	if err != nil {
		return upstreamError(c, store, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"records": records})
}

// MarkAttendance godoc
// @Summary Mark a player present or absent
// @Tags academy
// @Accept json
// @Produce json
// @Param request body MarkAttendanceRequest true "Attendance mark"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/attendance [post]
func (h *AcademyHandler) MarkAttendance(c echo.Context) error {
	var req MarkAttendanceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	store, tok, err := token(c)
	if err != nil {
		return err
	}
	record, err := h.api.MarkAttendance(c.Request().Context(), tok, upstream.AttendanceMark{
		TrainingID: req.TrainingID,
		PlayerID:   req.PlayerID,
		Present:    req.Present,
	})
	if err != nil {
		return upstreamError(c, store, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"record": record})
}

// Invoices godoc
// @Summary Billing lines visible to the current user
// @Tags academy
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/billing/invoices [get]
func (h *AcademyHandler) Invoices(c echo.Context) error {
	store, tok, err := token(c)
	if err != nil {
		return err
	}
	invoices, err := h.api.Invoices(c.Request().Context(), tok)
	if err != nil {
		return upstreamError(c, store, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"invoices": invoices})
}

// MatchStats godoc
// @Summary Statistics of a finished match
// @Tags academy
// @Produce json
// @Param id path string true "Match id"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/matches/{id}/statistics [get]
func (h *AcademyHandler) MatchStats(c echo.Context) error {
	store, tok, err := token(c)
	if err != nil {
		return err
	}
	stats, err := h.api.MatchStats(c.Request().Context(), tok, c.Param("id"))
	if err != nil {
		return upstreamError(c, store, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"statistics": stats})
}

// CheckinQR godoc
// @Summary Check a player in by QR code
// @Tags academy
// @Accept json
// @Produce json
// @Param request body CheckinRequest true "Scanned code"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/checkin/qr [post]
func (h *AcademyHandler) CheckinQR(c echo.Context) error {
	var req CheckinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	store, tok, err := token(c)
	if err != nil {
		return err
	}
	result, err := h.api.CheckinQR(c.Request().Context(), tok, req.Code)
	if err != nil {
		return upstreamError(c, store, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"checkin": result})
}

// AdminOverview godoc
// @Summary Admin panel aggregate
// @Tags academy
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /portal/admin/overview [get]
func (h *AcademyHandler) AdminOverview(c echo.Context) error {
	store, tok, err := token(c)
	if err != nil {
		return err
	}
	overview, err := h.api.AdminOverview(c.Request().Context(), tok)
	if err != nil {
		return upstreamError(c, store, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"overview": overview})
}
