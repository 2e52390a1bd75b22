package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Frusadev/frusablog-backend/internal/auth"
	authmw "github.com/Frusadev/frusablog-backend/internal/middleware/auth"
	"github.com/Frusadev/frusablog-backend/internal/mykafka"
)

type AuthHandler struct {
	Auth     *auth.Service
	Producer *mykafka.Producer
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email          string `json:"email"`
		Username       string `json:"username"`
		DisplayName    string `json:"display_name"`
		Password       string `json:"password"`
		PasswordRepeat string `json:"password_repeat"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	err := h.Auth.Register(c.Request().Context(), auth.RegisterInput{
		Email:          req.Email,
		Username:       req.Username,
		DisplayName:    req.DisplayName,
		Password:       req.Password,
		PasswordRepeat: req.PasswordRepeat,
	})
	if err != nil {
		return httpError(err)
	}

	publish(c, h.Producer, mykafka.TopicUserEvents, req.Username, map[string]any{
		"type":     "user_registered",
		"username": req.Username,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"username": req.Username,
		"message":  "verification email sent",
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, session, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	c.SetCookie(auth.CreateCookie(auth.SessionCookieName, session.ID, "/", session.ExpiresAt))

	publish(c, h.Producer, mykafka.TopicUserEvents, user.Username, map[string]any{
		"type":     "user_logged_in",
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, user)
}

// Verify consumes the emailed token and bounces the browser to the login
// page.
func (h *AuthHandler) Verify(c echo.Context) error {
	token := c.QueryParam("token")
	redirect, err := h.Auth.VerifyAuthSession(c.Request().Context(), token)
	if err != nil {
		return httpError(err)
	}
	return c.Redirect(http.StatusFound, redirect)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	token := ""
	if ck, err := c.Cookie(auth.SessionCookieName); err == nil {
		token = ck.Value
	}

	if err := h.Auth.Logout(c.Request().Context(), token); err != nil {
		return httpError(err)
	}

	c.SetCookie(auth.DeleteCookie(auth.SessionCookieName, "/"))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, authmw.CurrentUser(c))
}
