package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Frusadev/frusablog-backend/internal/authz"
	"github.com/Frusadev/frusablog-backend/internal/models"
)

func TestCreatePost_GrantsOwnership(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}
	alice := env.createUser(t, "alice", false)

	body := map[string]any{
		"title":     "hello",
		"content":   "first post",
		"published": true,
		"tags":      []string{"go", "intro"},
	}
	rec, c := env.request(t, http.MethodPost, "/api/v1/posts", body, alice)
	require.NoError(t, h.CreatePost(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var dto PostDTO
	decodeBody(t, rec, &dto)
	assert.Equal(t, "hello", dto.Title)
	assert.Equal(t, "alice", dto.AuthorUsername)
	assert.Len(t, dto.Tags, 2)

	ok, err := authz.HasCrudPermission(env.DB, alice.RoleID, false, authz.ResourcePost, dto.ID)
	require.NoError(t, err)
	assert.True(t, ok, "author should own the new post")

	// Reusing a tag name links the existing row instead of duplicating it.
	rec2, c2 := env.request(t, http.MethodPost, "/api/v1/posts", body, alice)
	require.NoError(t, h.CreatePost(c2))
	require.Equal(t, http.StatusCreated, rec2.Code)

	var tagCount int64
	env.DB.Model(&models.Tag{}).Count(&tagCount)
	assert.EqualValues(t, 2, tagCount)
}

func TestCreatePost_TitleRequired(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}
	alice := env.createUser(t, "alice", false)

	_, c := env.request(t, http.MethodPost, "/api/v1/posts", map[string]any{"content": "x"}, alice)
	err := h.CreatePost(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))
}

func TestGetPost_DraftVisibility(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	bob := env.createUser(t, "bob", false)
	admin := env.createUser(t, "admin", true)
	draft := env.createPost(t, alice, false)

	// Anonymous and other users are refused.
	_, c := env.request(t, http.MethodGet, "/api/v1/posts/"+draft.ID, nil, nil, "id", draft.ID)
	assert.Equal(t, http.StatusForbidden, httpCode(t, h.GetPost(c)))

	_, c = env.request(t, http.MethodGet, "/api/v1/posts/"+draft.ID, nil, bob, "id", draft.ID)
	assert.Equal(t, http.StatusForbidden, httpCode(t, h.GetPost(c)))

	// Owner and bypass role see the draft.
	rec, c := env.request(t, http.MethodGet, "/api/v1/posts/"+draft.ID, nil, alice, "id", draft.ID)
	require.NoError(t, h.GetPost(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, c = env.request(t, http.MethodGet, "/api/v1/posts/"+draft.ID, nil, admin, "id", draft.ID)
	require.NoError(t, h.GetPost(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetPosts_PublishedOnlyWithFilters(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	bob := env.createUser(t, "bob", false)
	env.createPost(t, alice, true)
	env.createPost(t, alice, false)
	env.createPost(t, bob, true)

	rec, c := env.request(t, http.MethodGet, "/api/v1/posts", nil, nil)
	require.NoError(t, h.GetPosts(c))

	var all []PostDTO
	decodeBody(t, rec, &all)
	assert.Len(t, all, 2, "drafts stay out of the listing")

	rec, c = env.request(t, http.MethodGet, "/api/v1/posts?author=alice", nil, nil)
	require.NoError(t, h.GetPosts(c))

	var byAuthor []PostDTO
	decodeBody(t, rec, &byAuthor)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, "alice", byAuthor[0].AuthorUsername)
}

func TestGetPosts_DraftListing(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	bob := env.createUser(t, "bob", false)
	admin := env.createUser(t, "admin", true)
	env.createPost(t, alice, true)
	draft := env.createPost(t, alice, false)
	env.createPost(t, bob, false)

	// The author sees their own drafts alongside published posts,
	// but nobody else's.
	rec, c := env.request(t, http.MethodGet, "/api/v1/posts", nil, alice)
	require.NoError(t, h.GetPosts(c))

	var list []PostDTO
	decodeBody(t, rec, &list)
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.Contains(t, ids, draft.ID)

	// Another non-bypass user gets published posts only.
	rec, c = env.request(t, http.MethodGet, "/api/v1/posts", nil, bob)
	require.NoError(t, h.GetPosts(c))
	decodeBody(t, rec, &list)
	for _, dto := range list {
		if !dto.Published {
			assert.Equal(t, "bob", dto.AuthorUsername)
		}
	}
	require.Len(t, list, 2)

	// Bypass roles see everything.
	rec, c = env.request(t, http.MethodGet, "/api/v1/posts", nil, admin)
	require.NoError(t, h.GetPosts(c))
	decodeBody(t, rec, &list)
	assert.Len(t, list, 3)
}

func TestUpdatePost_PermissionGate(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	bob := env.createUser(t, "bob", false)
	admin := env.createUser(t, "admin", true)
	post := env.createPost(t, alice, true)

	body := map[string]any{"title": "edited"}

	_, c := env.request(t, http.MethodPatch, "/api/v1/posts/"+post.ID, body, bob, "id", post.ID)
	assert.Equal(t, http.StatusForbidden, httpCode(t, h.UpdatePost(c)))

	// Updates are owner-only; bypass does not cover them.
	_, c = env.request(t, http.MethodPatch, "/api/v1/posts/"+post.ID, body, admin, "id", post.ID)
	assert.Equal(t, http.StatusForbidden, httpCode(t, h.UpdatePost(c)))

	rec, c := env.request(t, http.MethodPatch, "/api/v1/posts/"+post.ID, body, alice, "id", post.ID)
	require.NoError(t, h.UpdatePost(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var dto PostDTO
	decodeBody(t, rec, &dto)
	assert.Equal(t, "edited", dto.Title)
	assert.True(t, dto.Modified)
}

func TestDeletePost_BypassAllowed(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	bob := env.createUser(t, "bob", false)
	admin := env.createUser(t, "admin", true)

	post := env.createPost(t, alice, true)
	_, c := env.request(t, http.MethodDelete, "/api/v1/posts/"+post.ID, nil, bob, "id", post.ID)
	assert.Equal(t, http.StatusForbidden, httpCode(t, h.DeletePost(c)))

	rec, c := env.request(t, http.MethodDelete, "/api/v1/posts/"+post.ID, nil, admin, "id", post.ID)
	require.NoError(t, h.DeletePost(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	env.DB.Model(&models.Post{}).Where("id = ?", post.ID).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestLikePost(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	bob := env.createUser(t, "bob", false)
	post := env.createPost(t, alice, true)

	rec, c := env.request(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/like", nil, bob, "id", post.ID)
	require.NoError(t, h.LikePost(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	decodeBody(t, rec, &resp)
	assert.EqualValues(t, 1, resp["likes_count"])

	// Liking notifies the author.
	var notifications int64
	env.DB.Model(&models.Notification{}).Where("username = ?", "alice").Count(&notifications)
	assert.EqualValues(t, 1, notifications)

	// Liking twice is a no-op, not an error.
	rec, c = env.request(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/like", nil, bob, "id", post.ID)
	require.NoError(t, h.LikePost(c))
	var likes int64
	env.DB.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&likes)
	assert.EqualValues(t, 1, likes)

	// Unlike removes the row; unliking again is NotFound.
	rec, c = env.request(t, http.MethodDelete, "/api/v1/posts/"+post.ID+"/like", nil, bob, "id", post.ID)
	require.NoError(t, h.UnlikePost(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, c = env.request(t, http.MethodDelete, "/api/v1/posts/"+post.ID+"/like", nil, bob, "id", post.ID)
	assert.Equal(t, http.StatusNotFound, httpCode(t, h.UnlikePost(c)))
}

func TestLikeOwnPost_NoSelfNotification(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	post := env.createPost(t, alice, true)

	_, c := env.request(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/like", nil, alice, "id", post.ID)
	require.NoError(t, h.LikePost(c))

	var notifications int64
	env.DB.Model(&models.Notification{}).Count(&notifications)
	assert.EqualValues(t, 0, notifications)
}

func TestAttachMedia_CoverIsExclusive(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	post := env.createPost(t, alice, true)

	first := models.Media{ID: "m1", Name: "a.png", MediaType: "image/png", UploaderUsername: "alice"}
	second := models.Media{ID: "m2", Name: "b.png", MediaType: "image/png", UploaderUsername: "alice"}
	require.NoError(t, env.DB.Create(&first).Error)
	require.NoError(t, env.DB.Create(&second).Error)

	_, c := env.request(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/media",
		map[string]any{"media_id": "m1", "cover_image": true}, alice, "id", post.ID)
	require.NoError(t, h.AttachMedia(c))

	_, c = env.request(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/media",
		map[string]any{"media_id": "m2", "cover_image": true}, alice, "id", post.ID)
	require.NoError(t, h.AttachMedia(c))

	var covers int64
	env.DB.Model(&models.PostMedia{}).Where("post_id = ? AND cover_image = ?", post.ID, true).Count(&covers)
	assert.EqualValues(t, 1, covers)

	var cover models.PostMedia
	require.NoError(t, env.DB.Where("post_id = ? AND cover_image = ?", post.ID, true).First(&cover).Error)
	assert.Equal(t, "m2", cover.MediaID)
}

func TestAttachMedia_DuplicateIsConflict(t *testing.T) {
	env := newTestEnv(t)
	h := &PostHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	post := env.createPost(t, alice, true)
	other := env.createPost(t, alice, true)

	media := models.Media{ID: "m1", Name: "a.png", MediaType: "image/png", UploaderUsername: "alice"}
	require.NoError(t, env.DB.Create(&media).Error)

	body := map[string]any{"media_id": "m1"}
	_, c := env.request(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/media", body, alice, "id", post.ID)
	require.NoError(t, h.AttachMedia(c))

	// Same post or a different one: the second attach is refused.
	_, c = env.request(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/media", body, alice, "id", post.ID)
	assert.Equal(t, http.StatusConflict, httpCode(t, h.AttachMedia(c)))

	_, c = env.request(t, http.MethodPost, "/api/v1/posts/"+other.ID+"/media", body, alice, "id", other.ID)
	assert.Equal(t, http.StatusConflict, httpCode(t, h.AttachMedia(c)))
}
