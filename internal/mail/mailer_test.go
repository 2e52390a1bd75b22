package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_KnownTemplate(t *testing.T) {
	m, err := NewSMTPMailer("smtp.test.local", "587", "user", "pass", "noreply@test.local")
	require.NoError(t, err)

	body, contentType := m.render(context.Background(), "verification", map[string]any{
		"user_name":         "Alice",
		"verification_link": "http://localhost/verify?token=abc",
		"expiry_minutes":    30,
		"contact_email":     "noreply@test.local",
	}, "fallback text")

	assert.Equal(t, "text/html", contentType)
	assert.True(t, strings.Contains(body, "Alice"))
	assert.True(t, strings.Contains(body, "http://localhost/verify?token=abc"))
}

func TestRender_MissingTemplateFallsBack(t *testing.T) {
	m, err := NewSMTPMailer("smtp.test.local", "587", "user", "pass", "noreply@test.local")
	require.NoError(t, err)

	body, contentType := m.render(context.Background(), "no-such-template", nil, "plain fallback")

	assert.Equal(t, "text/plain", contentType)
	assert.Equal(t, "plain fallback", body)
}

func TestLogMailer_RecordsMail(t *testing.T) {
	m := &LogMailer{}

	err := m.Send(context.Background(), "a@test.local", "Hi", "welcome", map[string]any{"user_name": "A"}, "fb")
	require.NoError(t, err)

	require.Len(t, m.Sent, 1)
	assert.Equal(t, "a@test.local", m.Sent[0].Email)
	assert.Equal(t, "welcome", m.Sent[0].Template)
}
