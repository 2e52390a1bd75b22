package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/apperr"
	"github.com/Frusadev/frusablog-backend/internal/authz"
	authmw "github.com/Frusadev/frusablog-backend/internal/middleware/auth"
	"github.com/Frusadev/frusablog-backend/internal/models"
	"github.com/Frusadev/frusablog-backend/internal/storage"
)

// MaxUploadSize caps a single media upload at 5 MiB.
const MaxUploadSize = 5 << 20

var allowedMediaTypes = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

type MediaHandler struct {
	DB      *gorm.DB
	Storage storage.Storage
}

// Upload stores the file bytes and the media row in one unit: the row is
// only committed after the object is written, and the object is removed
// again if the commit fails.
func (h *MediaHandler) Upload(c echo.Context) error {
	user := authmw.CurrentUser(c)

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if file.Size > MaxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds 5MiB")
	}

	mediaType := file.Header.Get("Content-Type")
	if !allowedMediaTypes[strings.ToLower(mediaType)] {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported media type")
	}

	src, err := file.Open()
	if err != nil {
		return httpError(err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
	if err != nil {
		return httpError(err)
	}
	if len(data) > MaxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds 5MiB")
	}

	media := models.Media{
		ID:               uuid.NewString(),
		Name:             file.Filename,
		MediaType:        mediaType,
		Description:      c.FormValue("description"),
		Protected:        c.FormValue("protected") == "true",
		UploaderUsername: user.Username,
	}

	ctx := c.Request().Context()
	if err := h.Storage.Save(ctx, media.ID, data); err != nil {
		return httpError(err)
	}

	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&media).Error; err != nil {
			return err
		}
		_, err := authz.CreatePermission(tx, user.RoleID, authz.ResourceMedia, media.ID, authz.ActionCrud)
		return err
	})
	if err != nil {
		_ = h.Storage.Delete(ctx, media.ID)
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, media)
}

// Get streams the media bytes. Protected media needs an authenticated
// caller holding the instance crud grant or a bypass role.
func (h *MediaHandler) Get(c echo.Context) error {
	var media models.Media
	if err := h.DB.Where("id = ?", c.Param("id")).First(&media).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpError(apperr.ErrNotFound)
		}
		return httpError(err)
	}

	if media.Protected {
		user := authmw.CurrentUser(c)
		if user == nil {
			return httpError(apperr.ErrUnauthenticated)
		}
		ok, err := authz.HasCrudPermission(h.DB, user.RoleID, true, authz.ResourceMedia, media.ID)
		if err != nil {
			return httpError(err)
		}
		if !ok {
			return httpError(apperr.ErrForbidden)
		}
	}

	data, err := h.Storage.Load(c.Request().Context(), media.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return httpError(apperr.ErrNotFound)
		}
		return httpError(err)
	}
	return c.Blob(http.StatusOK, media.MediaType, data)
}

// GetInfo returns the media row without the bytes.
func (h *MediaHandler) GetInfo(c echo.Context) error {
	var media models.Media
	if err := h.DB.Where("id = ?", c.Param("id")).First(&media).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpError(apperr.ErrNotFound)
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, media)
}

func (h *MediaHandler) Delete(c echo.Context) error {
	user := authmw.CurrentUser(c)

	var media models.Media
	if err := h.DB.Where("id = ?", c.Param("id")).First(&media).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpError(apperr.ErrNotFound)
		}
		return httpError(err)
	}

	ok, err := authz.CanManage(h.DB, user.RoleID, true, authz.ResourceMedia, media.ID, authz.ActionDelete)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(apperr.ErrForbidden)
	}

	ctx := c.Request().Context()
	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.PostMedia{}, "media_id = ?", media.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Media{}, "id = ?", media.ID).Error
	})
	if err != nil {
		return httpError(err)
	}

	if err := h.Storage.Delete(ctx, media.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
