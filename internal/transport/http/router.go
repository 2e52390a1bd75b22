package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/handlers"
	authmw "github.com/Frusadev/frusablog-backend/internal/middleware/auth"
	"github.com/Frusadev/frusablog-backend/internal/middleware/csrf"
)

type Deps struct {
	DB                  *gorm.DB
	Session             *authmw.SessionAuth
	AuthHandler         *handlers.AuthHandler
	PostHandler         *handlers.PostHandler
	CommentHandler      *handlers.CommentHandler
	TagHandler          *handlers.TagHandler
	MediaHandler        *handlers.MediaHandler
	NotificationHandler *handlers.NotificationHandler
	UserHandler         *handlers.UserHandler
	SearchHandler       *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.SkipPaths = []string{"/api/v1/register", "/api/v1/login"}

	v1 := e.Group("/api/v1", csrf.Middleware(csrfCfg))

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.GET("/verify", d.AuthHandler.Verify)
	v1.POST("/logout", d.AuthHandler.Logout, d.Session.RequireLogin)
	v1.GET("/me", d.AuthHandler.Me, d.Session.RequireLogin)

	v1.GET("/search", d.SearchHandler.Search)

	posts := v1.Group("/posts")
	posts.GET("", d.PostHandler.GetPosts, d.Session.OptionalLogin)
	posts.GET("/:id", d.PostHandler.GetPost, d.Session.OptionalLogin)
	posts.POST("", d.PostHandler.CreatePost, d.Session.RequireLogin)
	posts.PATCH("/:id", d.PostHandler.UpdatePost, d.Session.RequireLogin)
	posts.DELETE("/:id", d.PostHandler.DeletePost, d.Session.RequireLogin)
	posts.POST("/:id/like", d.PostHandler.LikePost, d.Session.RequireLogin)
	posts.DELETE("/:id/like", d.PostHandler.UnlikePost, d.Session.RequireLogin)
	posts.GET("/:id/like", d.PostHandler.HasLikedPost, d.Session.RequireLogin)
	posts.POST("/:id/media", d.PostHandler.AttachMedia, d.Session.RequireLogin)
	posts.DELETE("/:id/media/:mediaID", d.PostHandler.DetachMedia, d.Session.RequireLogin)
	posts.GET("/:id/comments", d.CommentHandler.GetPostComments)
	posts.POST("/:id/comments", d.CommentHandler.CreateComment, d.Session.RequireLogin)

	comments := v1.Group("/comments")
	comments.GET("/:id", d.CommentHandler.GetComment)
	comments.PATCH("/:id", d.CommentHandler.UpdateComment, d.Session.RequireLogin)
	comments.DELETE("/:id", d.CommentHandler.DeleteComment, d.Session.RequireLogin)
	comments.POST("/:id/like", d.CommentHandler.LikeComment, d.Session.RequireLogin)
	comments.DELETE("/:id/like", d.CommentHandler.UnlikeComment, d.Session.RequireLogin)

	tags := v1.Group("/tags")
	tags.GET("", d.TagHandler.GetTags)
	tags.GET("/:name/posts", d.TagHandler.GetTagPosts)

	media := v1.Group("/media")
	media.POST("", d.MediaHandler.Upload, d.Session.RequireLogin)
	media.GET("/:id", d.MediaHandler.Get, d.Session.OptionalLogin)
	media.GET("/:id/info", d.MediaHandler.GetInfo)
	media.DELETE("/:id", d.MediaHandler.Delete, d.Session.RequireLogin)

	notifications := v1.Group("/notifications", d.Session.RequireLogin)
	notifications.GET("", d.NotificationHandler.GetNotifications)
	notifications.GET("/:id", d.NotificationHandler.GetNotification)
	notifications.POST("/:id/read", d.NotificationHandler.MarkRead)

	users := v1.Group("/users")
	users.GET("/:username", d.UserHandler.GetProfile)
	users.GET("/:username/email", d.UserHandler.GetEmail, d.Session.RequireLogin)
	users.PATCH("/:username", d.UserHandler.UpdateProfile, d.Session.RequireLogin)
	users.DELETE("/me", d.UserHandler.Unsubscribe, d.Session.RequireLogin)
	users.DELETE("/:username", d.UserHandler.AdminDelete, d.Session.RequireLogin)
}
