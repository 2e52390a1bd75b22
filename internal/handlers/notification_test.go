package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Frusadev/frusablog-backend/internal/models"
)

func seedNotification(t *testing.T, env *testEnv, username string, read bool) *models.Notification {
	t.Helper()

	n := models.Notification{
		ID:        uuid.NewString(),
		Username:  username,
		Content:   "something happened",
		Action:    "post_liked",
		Read:      read,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, env.DB.Create(&n).Error)
	return &n
}

func TestGetNotifications_UnreadOnly(t *testing.T) {
	env := newTestEnv(t)
	h := &NotificationHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	env.createUser(t, "bob", false)

	seedNotification(t, env, "alice", false)
	seedNotification(t, env, "alice", true)
	seedNotification(t, env, "bob", false)

	rec, c := env.request(t, http.MethodGet, "/api/v1/notifications", nil, alice)
	require.NoError(t, h.GetNotifications(c))

	var list []models.Notification
	decodeBody(t, rec, &list)
	require.Len(t, list, 1, "read and foreign notifications stay out")
	assert.Equal(t, "alice", list[0].Username)
	assert.False(t, list[0].Read)

	// ?all=true brings the read ones back, still only alice's.
	rec, c = env.request(t, http.MethodGet, "/api/v1/notifications?all=true", nil, alice)
	require.NoError(t, h.GetNotifications(c))
	decodeBody(t, rec, &list)
	assert.Len(t, list, 2)
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)
	h := &NotificationHandler{DB: env.DB}

	alice := env.createUser(t, "alice", false)
	bob := env.createUser(t, "bob", false)
	n := seedNotification(t, env, "alice", false)

	// Only the recipient can touch it.
	_, c := env.request(t, http.MethodPost, "/api/v1/notifications/"+n.ID+"/read", nil, bob, "id", n.ID)
	assert.Equal(t, http.StatusForbidden, httpCode(t, h.MarkRead(c)))

	rec, c := env.request(t, http.MethodPost, "/api/v1/notifications/"+n.ID+"/read", nil, alice, "id", n.ID)
	require.NoError(t, h.MarkRead(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.Notification
	require.NoError(t, env.DB.Where("id = ?", n.ID).First(&stored).Error)
	assert.True(t, stored.Read)

	// Gone from the unread feed.
	listRec, listC := env.request(t, http.MethodGet, "/api/v1/notifications", nil, alice)
	require.NoError(t, h.GetNotifications(listC))
	var list []models.Notification
	decodeBody(t, listRec, &list)
	assert.Empty(t, list)
}
