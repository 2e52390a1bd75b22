package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/apperr"
	"github.com/Frusadev/frusablog-backend/internal/models"
	"github.com/Frusadev/frusablog-backend/internal/util"
)

type TagHandler struct {
	DB *gorm.DB
}

type TagDTO struct {
	models.Tag
	PostCount int64 `json:"post_count"`
}

// GetTags lists every tag with its published-post count.
func (h *TagHandler) GetTags(c echo.Context) error {
	var tags []models.Tag
	if err := h.DB.Order("name").Find(&tags).Error; err != nil {
		return httpError(err)
	}

	dtos := make([]TagDTO, 0, len(tags))
	for _, tag := range tags {
		dto := TagDTO{Tag: tag}
		err := h.DB.Model(&models.Post{}).
			Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Where("post_tags.tag_id = ? AND posts.published = ?", tag.ID, true).
			Count(&dto.PostCount).Error
		if err != nil {
			return httpError(err)
		}
		dtos = append(dtos, dto)
	}
	return c.JSON(http.StatusOK, dtos)
}

// GetTagPosts lists published posts carrying the named tag.
func (h *TagHandler) GetTagPosts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var tag models.Tag
	if err := h.DB.Where("name = ?", c.Param("name")).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpError(apperr.ErrNotFound)
		}
		return httpError(err)
	}

	var posts []models.Post
	err := h.DB.Model(&models.Post{}).
		Joins("JOIN post_tags ON post_tags.post_id = posts.id").
		Where("post_tags.tag_id = ? AND posts.published = ?", tag.ID, true).
		Order("posts.created_at DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, posts)
}
