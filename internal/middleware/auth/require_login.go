package authmw

import (
	"github.com/labstack/echo/v4"

	"github.com/Frusadev/frusablog-backend/internal/apperr"
	"github.com/Frusadev/frusablog-backend/internal/auth"
	"github.com/Frusadev/frusablog-backend/internal/models"
)

const userContextKey = "current_user"

type SessionAuth struct {
	Auth *auth.Service
}

func NewSessionAuth(svc *auth.Service) *SessionAuth {
	return &SessionAuth{Auth: svc}
}

func cookieToken(c echo.Context) string {
	ck, err := c.Cookie(auth.SessionCookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}

// RequireLogin resolves the session cookie to a user and stores it in the
// echo context. Requests without a valid, unexpired session get 401.
func (m *SessionAuth) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := m.Auth.ResolveCurrentUser(c.Request().Context(), cookieToken(c))
		if err != nil {
			return echo.NewHTTPError(apperr.HTTPStatus(err), "not authenticated")
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

// OptionalLogin resolves the session if one is presented but lets
// anonymous requests through. Endpoints use it when only the view
// changes with authentication.
func (m *SessionAuth) OptionalLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if token := cookieToken(c); token != "" {
			if user, err := m.Auth.ResolveCurrentUser(c.Request().Context(), token); err == nil {
				c.Set(userContextKey, user)
			}
		}
		return next(c)
	}
}

// CurrentUser returns the authenticated user, or nil on anonymous
// requests that passed OptionalLogin.
func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get(userContextKey).(*models.User); ok {
		return u
	}
	return nil
}
