package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"academyhub/internal/session"
)

const (
	storeContextKey = "portal_session_store"
	sidContextKey   = "portal_session_id"
)

// Attach resolves the browser's session store and stashes it on the request
// context, minting a cookie when the browser does not have a valid one yet.
// It expects JWTMiddleware to have run first.
func Attach(cookies *CookieService, registry *Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid := sidFromToken(c)
			if sid == "" {
				var signed string
				var err error
				sid, signed, err = cookies.Issue()
				if err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "issue session cookie")
				}
				c.SetCookie(&http.Cookie{
					Name:     SessionCookieName,
					Value:    signed,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					Expires:  time.Now().Add(CookieLifetime),
				})
			}
			c.Set(sidContextKey, sid)
			WithStore(c, registry.Lookup(sid))
			return next(c)
		}
	}
}

func sidFromToken(c echo.Context) string {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return ""
	}
	return claims.SID
}

// WithStore attaches a session store to the request context. Exposed for
// handler tests; production wiring goes through Attach.
func WithStore(c echo.Context, store *session.Store) {
	c.Set(storeContextKey, store)
}

// WithSessionID attaches a browser-session id to the request context. Exposed
// for handler tests; production wiring goes through Attach.
func WithSessionID(c echo.Context, sid string) {
	c.Set(sidContextKey, sid)
}

// SessionStore returns the store attached to the request, or nil when the
// middleware chain was not set up.
func SessionStore(c echo.Context) *session.Store {
	store, _ := c.Get(storeContextKey).(*session.Store)
	return store
}

// SessionID returns the browser-session id attached to the request.
func SessionID(c echo.Context) string {
	sid, _ := c.Get(sidContextKey).(string)
	return sid
}
