package guard

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"academyhub/internal/auth"
	"academyhub/internal/errors"
)

// LoginRoute is where unauthenticated browsers are redirected.
const LoginRoute = "/login"

// Require turns a Descriptor into route middleware. It triggers session
// hydration on first touch, refreshes a near-expiry token, and maps the
// guard outcome onto HTTP: redirect for missing authentication, 403 panels
// for denied role or resource, and a retryable 503 while the session is
// still settling.
func Require(d Descriptor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			store := auth.SessionStore(c)
			if store == nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "session store not attached")
			}

			ctx := c.Request().Context()
			store.Initialize(ctx)
			store.MaybeRefresh(ctx)

			resourceID := ""
			if d.Resource != nil {
				resourceID = c.Param(d.Resource.Param)
			}

			switch Evaluate(store.Snapshot(), d, resourceID) {
			case OutcomeLoading:
				c.Response().Header().Set("Retry-After", "1")
				httpErr := errors.NewHTTPError(http.StatusServiceUnavailable,
					"session is still initializing", "SESSION_INITIALIZING")
				return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
			case OutcomeRedirectLogin:
				target := LoginRoute + "?next=" + url.QueryEscape(c.Request().URL.RequestURI())
				return c.Redirect(http.StatusSeeOther, target)
			case OutcomeDeniedRole:
				httpErr := errors.MapErrorToHTTP(errors.ErrRoleDenied)
				return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
			case OutcomeDeniedResource:
				httpErr := errors.MapErrorToHTTP(errors.ErrResourceDenied)
				return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
			}
			return next(c)
		}
	}
}
