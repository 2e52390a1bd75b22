package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/authz"
	"github.com/Frusadev/frusablog-backend/internal/models"
)

type testEnv struct {
	DB *gorm.DB
	e  *echo.Echo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	return &testEnv{DB: db, e: echo.New()}
}

// createUser inserts a verified user with its own role, optionally
// bypass-capable.
func (env *testEnv) createUser(t *testing.T, username string, bypass bool) *models.User {
	t.Helper()

	roleType := models.RoleUser
	if bypass {
		roleType = models.RoleAdmin
	}
	role := models.NewRole(roleType)
	require.NoError(t, env.DB.Create(&role).Error)

	user := models.User{
		Username:        username,
		Email:           username + "@test.local",
		DisplayName:     username,
		HashedPassword:  "x",
		RoleID:          role.ID,
		AccountVerified: true,
		LastLogin:       time.Now().UTC(),
	}
	require.NoError(t, env.DB.Create(&user).Error)

	user.Role = role
	return &user
}

// createPost inserts a post and grants the author instance crud, the
// same shape CreatePost produces.
func (env *testEnv) createPost(t *testing.T, author *models.User, published bool) *models.Post {
	t.Helper()

	now := time.Now().UTC()
	post := models.Post{
		ID:             uuid.NewString(),
		AuthorUsername: author.Username,
		Title:          "a post",
		Content:        "content",
		Published:      published,
		CreatedAt:      now,
		LastModified:   now,
	}
	require.NoError(t, env.DB.Create(&post).Error)
	_, err := authz.CreatePermission(env.DB, author.RoleID, authz.ResourcePost, post.ID, authz.ActionCrud)
	require.NoError(t, err)
	return &post
}

// request builds a JSON request context. user nil means anonymous;
// params come in name/value pairs.
func (env *testEnv) request(t *testing.T, method, path string, body any, user *models.User, params ...string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	if user != nil {
		c.Set("current_user", user)
	}
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return rec, c
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	return he.Code
}
