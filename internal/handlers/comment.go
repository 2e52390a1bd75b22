package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/apperr"
	"github.com/Frusadev/frusablog-backend/internal/authz"
	authmw "github.com/Frusadev/frusablog-backend/internal/middleware/auth"
	"github.com/Frusadev/frusablog-backend/internal/models"
	"github.com/Frusadev/frusablog-backend/internal/mykafka"
	"github.com/Frusadev/frusablog-backend/internal/util"
)

type CommentHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

type CommentDTO struct {
	models.Comment
	LikeCount int64 `json:"like_count"`
}

func (h *CommentHandler) commentDTO(comment *models.Comment) (*CommentDTO, error) {
	dto := CommentDTO{Comment: *comment}
	err := h.DB.Model(&models.CommentLike{}).
		Where("comment_id = ?", comment.ID).
		Count(&dto.LikeCount).Error
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

func (h *CommentHandler) getComment(id string) (*models.Comment, error) {
	var comment models.Comment
	if err := h.DB.Where("id = ?", id).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &comment, nil
}

func (h *CommentHandler) GetComment(c echo.Context) error {
	comment, err := h.getComment(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	dto, err := h.commentDTO(comment)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto)
}

// GetPostComments lists a post's comments, newest first.
func (h *CommentHandler) GetPostComments(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var post models.Post
	if err := h.DB.Where("id = ?", c.Param("id")).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpError(apperr.ErrNotFound)
		}
		return httpError(err)
	}

	var comments []models.Comment
	err := h.DB.Where("post_id = ?", post.ID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&comments).Error
	if err != nil {
		return httpError(err)
	}

	dtos := make([]*CommentDTO, 0, len(comments))
	for i := range comments {
		dto, err := h.commentDTO(&comments[i])
		if err != nil {
			return httpError(err)
		}
		dtos = append(dtos, dto)
	}
	return c.JSON(http.StatusOK, dtos)
}

// CreateComment inserts the comment, grants the author instance crud and
// notifies the post author, all in one transaction.
func (h *CommentHandler) CreateComment(c echo.Context) error {
	user := authmw.CurrentUser(c)

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	var post models.Post
	if err := h.DB.Where("id = ?", c.Param("id")).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpError(apperr.ErrNotFound)
		}
		return httpError(err)
	}

	now := time.Now().UTC()
	comment := models.Comment{
		ID:             uuid.NewString(),
		PostID:         post.ID,
		AuthorUsername: user.Username,
		Content:        req.Content,
		CreatedAt:      now,
		LastModified:   now,
	}

	err := h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		if _, err := authz.CreatePermission(tx, user.RoleID, authz.ResourceComment, comment.ID, authz.ActionCrud); err != nil {
			return err
		}
		return notify(tx, post.AuthorUsername, user.Username,
			user.DisplayName+" commented on your post", "post_commented")
	})
	if err != nil {
		return httpError(err)
	}

	publish(c, h.Producer, mykafka.TopicCommentEvents, comment.ID, map[string]any{
		"type":       "comment_created",
		"comment_id": comment.ID,
		"post_id":    post.ID,
		"author":     comment.AuthorUsername,
	})

	dto, err := h.commentDTO(&comment)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *CommentHandler) UpdateComment(c echo.Context) error {
	user := authmw.CurrentUser(c)
	comment, err := h.getComment(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	ok, err := authz.CanManage(h.DB, user.RoleID, false, authz.ResourceComment, comment.ID, authz.ActionUpdate)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(apperr.ErrForbidden)
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	comment.Content = req.Content
	comment.Modified = true
	comment.LastModified = time.Now().UTC()
	if err := h.DB.Save(comment).Error; err != nil {
		return httpError(err)
	}

	dto, err := h.commentDTO(comment)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *CommentHandler) DeleteComment(c echo.Context) error {
	user := authmw.CurrentUser(c)
	comment, err := h.getComment(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	ok, err := authz.CanManage(h.DB, user.RoleID, true, authz.ResourceComment, comment.ID, authz.ActionDelete)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(apperr.ErrForbidden)
	}

	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.CommentLike{}, "comment_id = ?", comment.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Comment{}, "id = ?", comment.ID).Error
	})
	if err != nil {
		return httpError(err)
	}

	publish(c, h.Producer, mykafka.TopicCommentEvents, comment.ID, map[string]any{
		"type":       "comment_deleted",
		"comment_id": comment.ID,
		"post_id":    comment.PostID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *CommentHandler) LikeComment(c echo.Context) error {
	user := authmw.CurrentUser(c)
	comment, err := h.getComment(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	var count int64
	if err := h.DB.Model(&models.CommentLike{}).
		Where("comment_id = ? AND username = ?", comment.ID, user.Username).
		Count(&count).Error; err != nil {
		return httpError(err)
	}
	if count > 0 {
		return c.JSON(http.StatusOK, echo.Map{"message": "comment already liked"})
	}

	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.CommentLike{CommentID: comment.ID, Username: user.Username}).Error; err != nil {
			return err
		}
		return notify(tx, comment.AuthorUsername, user.Username,
			user.DisplayName+" liked your comment", "comment_liked")
	})
	if err != nil {
		return httpError(err)
	}

	var likes int64
	h.DB.Model(&models.CommentLike{}).Where("comment_id = ?", comment.ID).Count(&likes)
	return c.JSON(http.StatusOK, echo.Map{"likes_count": likes})
}

func (h *CommentHandler) UnlikeComment(c echo.Context) error {
	user := authmw.CurrentUser(c)
	comment, err := h.getComment(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	result := h.DB.Delete(&models.CommentLike{}, "comment_id = ? AND username = ?", comment.ID, user.Username)
	if result.Error != nil {
		return httpError(result.Error)
	}
	if result.RowsAffected == 0 {
		return httpError(apperr.ErrNotFound)
	}

	var likes int64
	h.DB.Model(&models.CommentLike{}).Where("comment_id = ?", comment.ID).Count(&likes)
	return c.JSON(http.StatusOK, echo.Map{"likes_count": likes})
}
