package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"academyhub/internal/auth"
	"academyhub/internal/authz"
	"academyhub/internal/guard"
	"academyhub/internal/handler"
	"academyhub/internal/model"
)

// Register wires routes and middleware. Every /portal route runs behind the
// session cookie chain; the guarded subset additionally declares its access
// rules as guard descriptors.
func Register(
	e *echo.Echo,
	cookies *auth.CookieService,
	registry *auth.Registry,
	authHandler *handler.AuthHandler,
	academyHandler *handler.AcademyHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Login target for guard redirects. The portal is API-first; the actual
	// form is rendered client-side.
	e.GET(guard.LoginRoute, func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"login": "/portal/auth/login",
			"next":  c.QueryParam("next"),
		})
	})

	portal := e.Group("/portal", cookies.JWTMiddleware(), auth.Attach(cookies, registry))

	// Public routes
	portal.POST("/auth/login", authHandler.Login)
	portal.POST("/auth/register", authHandler.Register)
	portal.POST("/auth/logout", authHandler.Logout)
	portal.GET("/auth/session", authHandler.Session)

	// Guarded routes
	portal.GET("/dashboard", academyHandler.Dashboard,
		guard.Require(guard.Descriptor{RequireAuth: true, Capability: authz.CapDashboard}))

	portal.GET("/teams/:id/roster", academyHandler.Roster,
		guard.Require(guard.Descriptor{
			RequireAuth: true,
			Capability:  authz.CapRoster,
			Resource:    &guard.ResourceCheck{Kind: authz.ResourceTeam, Param: "id"},
		}))

	portal.GET("/attendance", academyHandler.Attendance,
		guard.Require(guard.Descriptor{RequireAuth: true, Capability: authz.CapAttendance}))
	portal.POST("/attendance", academyHandler.MarkAttendance,
		guard.Require(guard.Descriptor{RequireAuth: true, Capability: authz.CapAttendance}))

	portal.GET("/billing/invoices", academyHandler.Invoices,
		guard.Require(guard.Descriptor{RequireAuth: true, Capability: authz.CapBilling}))

	portal.GET("/matches/:id/statistics", academyHandler.MatchStats,
		guard.Require(guard.Descriptor{RequireAuth: true, Capability: authz.CapStatistics}))

	portal.POST("/checkin/qr", academyHandler.CheckinQR,
		guard.Require(guard.Descriptor{RequireAuth: true, Capability: authz.CapQRCheckin}))

	portal.GET("/admin/overview", academyHandler.AdminOverview,
		guard.Require(guard.Descriptor{
			RequireAuth:  true,
			RequireRoles: []model.Role{model.RoleAdmin},
			Capability:   authz.CapAdminPanel,
		}))

	portal.PUT("/profile", authHandler.UpdateProfile,
		guard.Require(guard.Descriptor{RequireAuth: true, Capability: authz.CapProfile}))
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
