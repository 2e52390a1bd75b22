package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Frusadev/frusablog-backend/internal/authz"
	"github.com/Frusadev/frusablog-backend/internal/models"
	"github.com/Frusadev/frusablog-backend/internal/storage"
)

func newMediaHandler(t *testing.T, env *testEnv) *MediaHandler {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return &MediaHandler{DB: env.DB, Storage: store}
}

func multipartUpload(t *testing.T, env *testEnv, user *models.User, filename, contentType string, data []byte, fields map[string]string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/media", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	if user != nil {
		c.Set("current_user", user)
	}
	return rec, c
}

func TestUploadMedia_StoresBytesAndGrantsOwnership(t *testing.T) {
	env := newTestEnv(t)
	h := newMediaHandler(t, env)
	alice := env.createUser(t, "alice", false)

	rec, c := multipartUpload(t, env, alice, "pic.png", "image/png", []byte("png-bytes"), nil)
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var media models.Media
	decodeBody(t, rec, &media)
	assert.Equal(t, "pic.png", media.Name)
	assert.Equal(t, "image/png", media.MediaType)
	assert.Equal(t, "alice", media.UploaderUsername)

	ok, err := authz.HasCrudPermission(env.DB, alice.RoleID, false, authz.ResourceMedia, media.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// The bytes come back through Get.
	getRec, getC := env.request(t, http.MethodGet, "/api/v1/media/"+media.ID, nil, nil, "id", media.ID)
	require.NoError(t, h.Get(getC))
	assert.Equal(t, http.StatusOK, getRec.Code)
	assert.Equal(t, "png-bytes", getRec.Body.String())
}

func TestUploadMedia_RejectsUnknownContentType(t *testing.T) {
	env := newTestEnv(t)
	h := newMediaHandler(t, env)
	alice := env.createUser(t, "alice", false)

	_, c := multipartUpload(t, env, alice, "evil.sh", "application/x-sh", []byte("#!/bin/sh"), nil)
	assert.Equal(t, http.StatusBadRequest, httpCode(t, h.Upload(c)))
}

func TestGetMedia_ProtectedNeedsGrant(t *testing.T) {
	env := newTestEnv(t)
	h := newMediaHandler(t, env)

	alice := env.createUser(t, "alice", false)
	bob := env.createUser(t, "bob", false)

	rec, c := multipartUpload(t, env, alice, "secret.png", "image/png", []byte("hidden"), map[string]string{"protected": "true"})
	require.NoError(t, h.Upload(c))

	var media models.Media
	decodeBody(t, rec, &media)
	require.True(t, media.Protected)

	_, c = env.request(t, http.MethodGet, "/api/v1/media/"+media.ID, nil, nil, "id", media.ID)
	assert.Equal(t, http.StatusUnauthorized, httpCode(t, h.Get(c)))

	_, c = env.request(t, http.MethodGet, "/api/v1/media/"+media.ID, nil, bob, "id", media.ID)
	assert.Equal(t, http.StatusForbidden, httpCode(t, h.Get(c)))

	getRec, getC := env.request(t, http.MethodGet, "/api/v1/media/"+media.ID, nil, alice, "id", media.ID)
	require.NoError(t, h.Get(getC))
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestDeleteMedia_RemovesRowAndObject(t *testing.T) {
	env := newTestEnv(t)
	h := newMediaHandler(t, env)
	alice := env.createUser(t, "alice", false)

	rec, c := multipartUpload(t, env, alice, "gone.png", "image/png", []byte("bye"), nil)
	require.NoError(t, h.Upload(c))

	var media models.Media
	decodeBody(t, rec, &media)

	delRec, delC := env.request(t, http.MethodDelete, "/api/v1/media/"+media.ID, nil, alice, "id", media.ID)
	require.NoError(t, h.Delete(delC))
	assert.Equal(t, http.StatusNoContent, delRec.Code)

	var count int64
	env.DB.Model(&models.Media{}).Where("id = ?", media.ID).Count(&count)
	assert.EqualValues(t, 0, count)
}
