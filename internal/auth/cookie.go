// Package auth binds browsers to their server-side session stores via a
// signed cookie, and resolves the store for each request.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	// SessionCookieName carries the signed browser-session identifier.
	SessionCookieName = "academy_sid"
	// CookieLifetime outlives the access token so a remembered login can
	// rehydrate after the portal restarts.
	CookieLifetime = 30 * 24 * time.Hour
)

// SessionClaims is the payload of the portal session cookie.
type SessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// CookieService mints and validates the signed session cookie. The cookie
// carries no identity, only the opaque session id the registry resolves.
type CookieService struct {
	secret []byte
}

// NewCookieService creates a cookie service with the given signing secret.
func NewCookieService(secret string) *CookieService {
	return &CookieService{secret: []byte(secret)}
}

// Issue mints a fresh browser-session id and its signed cookie value.
func (s *CookieService) Issue() (sid, signed string, err error) {
	sid = uuid.New().String()
	claims := &SessionClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(CookieLifetime)),
		},
	}
	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return sid, signed, err
}

// Parse validates a signed cookie value and returns its session id.
func (s *CookieService) Parse(value string) (string, error) {
	token, err := jwt.ParseWithClaims(value, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SID == "" {
		return "", errors.New("invalid session cookie")
	}
	return claims.SID, nil
}

// JWTMiddleware validates the session cookie when present but lets requests
// without one continue, so brand new browsers can still be served and issued
// a cookie by Attach.
func (s *CookieService) JWTMiddleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  s.secret,
		TokenLookup: "cookie:" + SessionCookieName,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(SessionClaims)
		},
		ContinueOnIgnoredError: true,
		ErrorHandler: func(c echo.Context, err error) error {
			// Missing or invalid cookie: treat as a new browser.
			return nil
		},
	})
}
