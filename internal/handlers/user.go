package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/apperr"
	"github.com/Frusadev/frusablog-backend/internal/auth"
	"github.com/Frusadev/frusablog-backend/internal/authz"
	authmw "github.com/Frusadev/frusablog-backend/internal/middleware/auth"
	"github.com/Frusadev/frusablog-backend/internal/models"
	"github.com/Frusadev/frusablog-backend/internal/mykafka"
)

type UserHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// PublicProfile is the subset of a user visible without a grant.
type PublicProfile struct {
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	Bio          string `json:"bio,omitempty"`
	Location     string `json:"location,omitempty"`
	WorkIndustry string `json:"work_industry,omitempty"`
	WorkTitle    string `json:"work_title,omitempty"`
}

func (h *UserHandler) getUser(username string) (*models.User, error) {
	var user models.User
	if err := h.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	user, err := h.getUser(c.Param("username"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, PublicProfile{
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		AvatarURL:    user.AvatarURL,
		Bio:          user.Bio,
		Location:     user.Location,
		WorkIndustry: user.WorkIndustry,
		WorkTitle:    user.WorkTitle,
	})
}

// GetEmail exposes a user's email only to callers holding that user's
// instance crud grant or a bypass role.
func (h *UserHandler) GetEmail(c echo.Context) error {
	caller := authmw.CurrentUser(c)
	user, err := h.getUser(c.Param("username"))
	if err != nil {
		return httpError(err)
	}

	ok, err := authz.HasCrudPermission(h.DB, caller.RoleID, true, authz.ResourceUser, user.Username)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(apperr.ErrForbidden)
	}
	return c.JSON(http.StatusOK, echo.Map{"email": user.Email})
}

// UpdateProfile mutates profile fields, guarded by the target user's
// instance crud grant.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	caller := authmw.CurrentUser(c)
	user, err := h.getUser(c.Param("username"))
	if err != nil {
		return httpError(err)
	}

	ok, err := authz.HasCrudPermission(h.DB, caller.RoleID, false, authz.ResourceUser, user.Username)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(apperr.ErrForbidden)
	}

	var req struct {
		DisplayName  *string `json:"display_name"`
		AvatarURL    *string `json:"avatar_url"`
		Bio          *string `json:"bio"`
		Location     *string `json:"location"`
		WorkIndustry *string `json:"work_industry"`
		WorkTitle    *string `json:"work_title"`
		InNewsletter *bool   `json:"in_newsletter"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.DisplayName != nil {
		if *req.DisplayName == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "display_name cannot be empty")
		}
		user.DisplayName = *req.DisplayName
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Location != nil {
		user.Location = *req.Location
	}
	if req.WorkIndustry != nil {
		user.WorkIndustry = *req.WorkIndustry
	}
	if req.WorkTitle != nil {
		user.WorkTitle = *req.WorkTitle
	}
	if req.InNewsletter != nil {
		user.InNewsletter = *req.InNewsletter
	}

	if err := h.DB.Save(user).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Unsubscribe deletes the caller's own account and every dependent row.
func (h *UserHandler) Unsubscribe(c echo.Context) error {
	caller := authmw.CurrentUser(c)

	if err := h.deleteUser(c, caller, false); err != nil {
		return httpError(err)
	}
	c.SetCookie(auth.DeleteCookie(auth.SessionCookieName, "/"))

	publish(c, h.Producer, mykafka.TopicUserEvents, caller.Username, map[string]any{
		"type":     "user_unsubscribed",
		"username": caller.Username,
	})
	return c.NoContent(http.StatusNoContent)
}

// AdminDelete removes another account. Requires the global user admin
// action; whitelist=true additionally blocks the email from re-registering.
func (h *UserHandler) AdminDelete(c echo.Context) error {
	caller := authmw.CurrentUser(c)

	ok, err := authz.HasGlobalPermission(h.DB, caller.RoleID, true, authz.ResourceUser, authz.ActionAdmin)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return httpError(apperr.ErrForbidden)
	}

	user, err := h.getUser(c.Param("username"))
	if err != nil {
		return httpError(err)
	}

	whitelist := c.QueryParam("whitelist") == "true"
	if err := h.deleteUser(c, user, whitelist); err != nil {
		return httpError(err)
	}

	publish(c, h.Producer, mykafka.TopicUserEvents, user.Username, map[string]any{
		"type":        "user_deleted",
		"username":    user.Username,
		"whitelisted": whitelist,
	})
	return c.NoContent(http.StatusNoContent)
}

// deleteUser removes the account and everything hanging off it: sessions,
// notifications, likes, authored comments and posts (with their dependent
// rows), uploaded media rows, the role and its grants.
func (h *UserHandler) deleteUser(c echo.Context, user *models.User, whitelist bool) error {
	return h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.LoginSession{}, &models.AuthSession{}, &models.Notification{}} {
			if err := tx.Delete(model, "username = ?", user.Username).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.PostLike{}, "username = ?", user.Username).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.CommentLike{}, "username = ?", user.Username).Error; err != nil {
			return err
		}

		var commentIDs []string
		if err := tx.Model(&models.Comment{}).Where("author_username = ?", user.Username).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if len(commentIDs) > 0 {
			if err := tx.Delete(&models.CommentLike{}, "comment_id IN ?", commentIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Comment{}, "author_username = ?", user.Username).Error; err != nil {
				return err
			}
		}

		var postIDs []string
		if err := tx.Model(&models.Post{}).Where("author_username = ?", user.Username).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if len(postIDs) > 0 {
			var postCommentIDs []string
			if err := tx.Model(&models.Comment{}).Where("post_id IN ?", postIDs).Pluck("id", &postCommentIDs).Error; err != nil {
				return err
			}
			if len(postCommentIDs) > 0 {
				if err := tx.Delete(&models.CommentLike{}, "comment_id IN ?", postCommentIDs).Error; err != nil {
					return err
				}
				if err := tx.Delete(&models.Comment{}, "post_id IN ?", postIDs).Error; err != nil {
					return err
				}
			}
			for _, model := range []any{&models.PostTag{}, &models.PostLike{}, &models.PostMedia{}} {
				if err := tx.Delete(model, "post_id IN ?", postIDs).Error; err != nil {
					return err
				}
			}
			if err := tx.Delete(&models.Post{}, "id IN ?", postIDs).Error; err != nil {
				return err
			}
		}

		var mediaIDs []string
		if err := tx.Model(&models.Media{}).Where("uploader_username = ?", user.Username).Pluck("id", &mediaIDs).Error; err != nil {
			return err
		}
		if len(mediaIDs) > 0 {
			if err := tx.Delete(&models.PostMedia{}, "media_id IN ?", mediaIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Media{}, "uploader_username = ?", user.Username).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&models.User{}, "username = ?", user.Username).Error; err != nil {
			return err
		}
		// Role rows cascade their permissions.
		if err := tx.Delete(&models.Permission{}, "role_id = ?", user.RoleID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Role{}, "id = ?", user.RoleID).Error; err != nil {
			return err
		}
		if whitelist {
			return tx.Create(&models.WhitelistedEmail{Email: user.Email}).Error
		}
		return nil
	})
}
