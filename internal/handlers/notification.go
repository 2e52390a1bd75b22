package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/apperr"
	authmw "github.com/Frusadev/frusablog-backend/internal/middleware/auth"
	"github.com/Frusadev/frusablog-backend/internal/models"
	"github.com/Frusadev/frusablog-backend/internal/util"
)

type NotificationHandler struct {
	DB *gorm.DB
}

// GetNotifications lists the caller's unread notifications, newest first.
// ?all=true includes the read ones.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	user := authmw.CurrentUser(c)
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	query := h.DB.Where("username = ?", user.Username)
	if c.QueryParam("all") != "true" {
		query = query.Where("read = ?", false)
	}

	var notifications []models.Notification
	err := query.Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) getOwned(c echo.Context) (*models.Notification, error) {
	user := authmw.CurrentUser(c)

	var notification models.Notification
	if err := h.DB.Where("id = ?", c.Param("id")).First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if notification.Username != user.Username {
		return nil, apperr.ErrForbidden
	}
	return &notification, nil
}

func (h *NotificationHandler) GetNotification(c echo.Context) error {
	notification, err := h.getOwned(c)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notification)
}

// MarkRead flags the notification as read, removing it from the unread feed.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	notification, err := h.getOwned(c)
	if err != nil {
		return httpError(err)
	}

	notification.Read = true
	if err := h.DB.Save(notification).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notification)
}
