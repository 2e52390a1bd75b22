package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/apperr"
	"github.com/Frusadev/frusablog-backend/internal/authz"
	"github.com/Frusadev/frusablog-backend/internal/logging"
	authmw "github.com/Frusadev/frusablog-backend/internal/middleware/auth"
	"github.com/Frusadev/frusablog-backend/internal/models"
	"github.com/Frusadev/frusablog-backend/internal/mykafka"
	"github.com/Frusadev/frusablog-backend/internal/service/search"
	"github.com/Frusadev/frusablog-backend/internal/util"
)

type PostHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	ESIndex  string
}

type PostDTO struct {
	models.Post
	LikeCount     int64              `json:"like_count"`
	CommentsCount int64              `json:"comments_count"`
	Tags          []models.Tag       `json:"tags"`
	Medias        []models.PostMedia `json:"medias"`
}

func (h *PostHandler) postDTO(post *models.Post) (*PostDTO, error) {
	dto := PostDTO{Post: *post}

	if err := h.DB.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&dto.LikeCount).Error; err != nil {
		return nil, err
	}
	if err := h.DB.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&dto.CommentsCount).Error; err != nil {
		return nil, err
	}
	if err := h.DB.Model(&models.Tag{}).
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id = ?", post.ID).
		Find(&dto.Tags).Error; err != nil {
		return nil, err
	}
	if err := h.DB.Where("post_id = ?", post.ID).Find(&dto.Medias).Error; err != nil {
		return nil, err
	}
	return &dto, nil
}

func (h *PostHandler) tagNames(postID string) []string {
	var names []string
	h.DB.Model(&models.Tag{}).
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id = ?", postID).
		Pluck("tags.name", &names)
	return names
}

func (h *PostHandler) indexPost(c echo.Context, post *models.Post) {
	if h.ES == nil {
		return
	}
	doc := search.DocFromPost(post, h.tagNames(post.ID))
	if err := search.IndexPost(c.Request().Context(), h.ES, h.ESIndex, doc); err != nil {
		logging.FromContext(c.Request().Context()).Error("post index failed", "post_id", post.ID, "error", err)
	}
}

func (h *PostHandler) getPost(id string) (*models.Post, error) {
	var post models.Post
	if err := h.DB.Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// GetPosts lists posts, optionally filtered by author or tag. Anonymous
// callers see published posts only; an authenticated caller also sees
// their own drafts, and a bypass role sees everything.
func (h *PostHandler) GetPosts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	query := h.DB.Model(&models.Post{})
	switch user := authmw.CurrentUser(c); {
	case user == nil:
		query = query.Where("published = ?", true)
	case user.Role.Bypass:
		// No visibility filter.
	default:
		query = query.Where("published = ? OR author_username = ?", true, user.Username)
	}
	if author := c.QueryParam("author"); author != "" {
		query = query.Where("author_username = ?", author)
	}
	if tag := c.QueryParam("tag"); tag != "" {
		query = query.
			Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name = ?", tag)
	}

	var posts []models.Post
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error; err != nil {
		return httpError(err)
	}

	dtos := make([]*PostDTO, 0, len(posts))
	for i := range posts {
		dto, err := h.postDTO(&posts[i])
		if err != nil {
			return httpError(err)
		}
		dtos = append(dtos, dto)
	}
	return c.JSON(http.StatusOK, dtos)
}

// GetPost returns one post. Drafts are only visible to a caller holding
// the instance crud grant (the author) or a bypass role.
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.getPost(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	if !post.Published {
		user := authmw.CurrentUser(c)
		if user == nil {
			return httpError(apperr.ErrForbidden)
		}
		ok, err := authz.HasCrudPermission(h.DB, user.RoleID, true, authz.ResourcePost, post.ID)
		if err != nil {
			return httpError(err)
		}
		if !ok {
			return httpError(apperr.ErrForbidden)
		}
	}

	dto, err := h.postDTO(post)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto)
}

// CreatePost inserts the post, upserts its tags and grants the author
// instance crud, all in one transaction.
func (h *PostHandler) CreatePost(c echo.Context) error {
	user := authmw.CurrentUser(c)

	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Content     string   `json:"content"`
		Published   bool     `json:"published"`
		Tags        []string `json:"tags"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	now := time.Now().UTC()
	post := models.Post{
		ID:             uuid.NewString(),
		AuthorUsername: user.Username,
		Title:          req.Title,
		Description:    req.Description,
		Content:        req.Content,
		Published:      req.Published,
		CreatedAt:      now,
		LastModified:   now,
	}

	err := h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		if err := linkTags(tx, post.ID, req.Tags); err != nil {
			return err
		}
		_, err := authz.CreatePermission(tx, user.RoleID, authz.ResourcePost, post.ID, authz.ActionCrud)
		return err
	})
	if err != nil {
		return httpError(err)
	}

	h.indexPost(c, &post)
	publish(c, h.Producer, mykafka.TopicPostEvents, post.ID, map[string]any{
		"type":    "post_created",
		"post_id": post.ID,
		"author":  post.AuthorUsername,
	})

	dto, err := h.postDTO(&post)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *PostHandler) UpdatePost(c echo.Context) error {
	user := authmw.CurrentUser(c)
	post, err := h.getPost(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	ok, err := authz.CanManage(h.DB, user.RoleID, false, authz.ResourcePost, post.ID, authz.ActionUpdate)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(apperr.ErrForbidden)
	}

	var req struct {
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		Content     *string   `json:"content"`
		Published   *bool     `json:"published"`
		Tags        *[]string `json:"tags"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Title != nil {
		post.Title = *req.Title
	}
	if req.Description != nil {
		post.Description = *req.Description
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.Published != nil {
		post.Published = *req.Published
	}
	post.Modified = true
	post.LastModified = time.Now().UTC()

	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(post).Error; err != nil {
			return err
		}
		if req.Tags != nil {
			if err := tx.Delete(&models.PostTag{}, "post_id = ?", post.ID).Error; err != nil {
				return err
			}
			return linkTags(tx, post.ID, *req.Tags)
		}
		return nil
	})
	if err != nil {
		return httpError(err)
	}

	h.indexPost(c, post)
	publish(c, h.Producer, mykafka.TopicPostEvents, post.ID, map[string]any{
		"type":    "post_updated",
		"post_id": post.ID,
		"author":  post.AuthorUsername,
	})

	dto, err := h.postDTO(post)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *PostHandler) DeletePost(c echo.Context) error {
	user := authmw.CurrentUser(c)
	post, err := h.getPost(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	ok, err := authz.CanManage(h.DB, user.RoleID, true, authz.ResourcePost, post.ID, authz.ActionDelete)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(apperr.ErrForbidden)
	}

	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		var commentIDs []string
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", post.ID).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Delete(&models.CommentLike{}, "comment_id IN ?", commentIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Comment{}, "post_id = ?", post.ID).Error; err != nil {
				return err
			}
		}
		for _, model := range []any{&models.PostTag{}, &models.PostLike{}, &models.PostMedia{}} {
			if err := tx.Delete(model, "post_id = ?", post.ID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Post{}, "id = ?", post.ID).Error
	})
	if err != nil {
		return httpError(err)
	}

	if h.ES != nil {
		if err := search.DeletePost(c.Request().Context(), h.ES, h.ESIndex, post.ID); err != nil {
			logging.FromContext(c.Request().Context()).Error("post unindex failed", "post_id", post.ID, "error", err)
		}
	}
	publish(c, h.Producer, mykafka.TopicPostEvents, post.ID, map[string]any{
		"type":    "post_deleted",
		"post_id": post.ID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *PostHandler) LikePost(c echo.Context) error {
	user := authmw.CurrentUser(c)
	post, err := h.getPost(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	var count int64
	if err := h.DB.Model(&models.PostLike{}).
		Where("post_id = ? AND username = ?", post.ID, user.Username).
		Count(&count).Error; err != nil {
		return httpError(err)
	}
	if count > 0 {
		return c.JSON(http.StatusOK, echo.Map{"message": "post already liked"})
	}

	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.PostLike{PostID: post.ID, Username: user.Username}).Error; err != nil {
			return err
		}
		return notify(tx, post.AuthorUsername, user.Username,
			user.DisplayName+" liked your post", "post_liked")
	})
	if err != nil {
		return httpError(err)
	}

	var likes int64
	h.DB.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&likes)
	return c.JSON(http.StatusOK, echo.Map{"likes_count": likes})
}

func (h *PostHandler) UnlikePost(c echo.Context) error {
	user := authmw.CurrentUser(c)
	post, err := h.getPost(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	result := h.DB.Delete(&models.PostLike{}, "post_id = ? AND username = ?", post.ID, user.Username)
	if result.Error != nil {
		return httpError(result.Error)
	}
	if result.RowsAffected == 0 {
		return httpError(apperr.ErrNotFound)
	}

	var likes int64
	h.DB.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&likes)
	return c.JSON(http.StatusOK, echo.Map{"likes_count": likes})
}

func (h *PostHandler) HasLikedPost(c echo.Context) error {
	user := authmw.CurrentUser(c)
	post, err := h.getPost(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	var count int64
	if err := h.DB.Model(&models.PostLike{}).
		Where("post_id = ? AND username = ?", post.ID, user.Username).
		Count(&count).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"liked": count > 0})
}

// AttachMedia links an uploaded media object to the post. Marking it as
// cover demotes any previous cover.
func (h *PostHandler) AttachMedia(c echo.Context) error {
	user := authmw.CurrentUser(c)
	post, err := h.getPost(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	ok, err := authz.CanManage(h.DB, user.RoleID, false, authz.ResourcePost, post.ID, authz.ActionUpdate)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(apperr.ErrForbidden)
	}

	var req struct {
		MediaID    string `json:"media_id"`
		CoverImage bool   `json:"cover_image"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var media models.Media
	if err := h.DB.Where("id = ?", req.MediaID).First(&media).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httpError(apperr.ErrNotFound)
		}
		return httpError(err)
	}

	// A media object attaches to one post at a time.
	var attached int64
	if err := h.DB.Model(&models.PostMedia{}).Where("media_id = ?", media.ID).Count(&attached).Error; err != nil {
		return httpError(err)
	}
	if attached > 0 {
		return httpError(fmt.Errorf("%w: media %s already attached", apperr.ErrConflict, media.ID))
	}

	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if req.CoverImage {
			if err := tx.Model(&models.PostMedia{}).
				Where("post_id = ? AND cover_image = ?", post.ID, true).
				Update("cover_image", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&models.PostMedia{
			MediaID:    media.ID,
			PostID:     post.ID,
			CoverImage: req.CoverImage,
		}).Error
	})
	if err != nil {
		return httpError(err)
	}

	dto, err := h.postDTO(post)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *PostHandler) DetachMedia(c echo.Context) error {
	user := authmw.CurrentUser(c)
	post, err := h.getPost(c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	ok, err := authz.CanManage(h.DB, user.RoleID, false, authz.ResourcePost, post.ID, authz.ActionUpdate)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(apperr.ErrForbidden)
	}

	result := h.DB.Delete(&models.PostMedia{}, "post_id = ? AND media_id = ?", post.ID, c.Param("mediaID"))
	if result.Error != nil {
		return httpError(result.Error)
	}
	if result.RowsAffected == 0 {
		return httpError(apperr.ErrNotFound)
	}

	dto, err := h.postDTO(post)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, dto)
}

// linkTags upserts tags by name and links them to the post.
func linkTags(tx *gorm.DB, postID string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		var tag models.Tag
		err := tx.Where("name = ?", name).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = models.Tag{ID: uuid.NewString(), Name: name}
			err = tx.Create(&tag).Error
		}
		if err != nil {
			return err
		}
		if err := tx.Create(&models.PostTag{PostID: postID, TagID: tag.ID}).Error; err != nil {
			return err
		}
	}
	return nil
}

// notify writes a notification row, skipping self-notifications.
func notify(tx *gorm.DB, toUsername, fromUsername, content, action string) error {
	if toUsername == fromUsername {
		return nil
	}
	return tx.Create(&models.Notification{
		ID:        uuid.NewString(),
		Username:  toUsername,
		Content:   content,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}).Error
}
