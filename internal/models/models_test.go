package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRole_BypassTiedToAdmin(t *testing.T) {
	admin := NewRole(RoleAdmin)
	assert.Equal(t, RoleAdmin, admin.Type)
	assert.True(t, admin.Bypass)
	assert.NotEmpty(t, admin.ID)

	for _, roleType := range []RoleType{RoleModerator, RoleUser} {
		role := NewRole(roleType)
		assert.Equal(t, roleType, role.Type)
		assert.False(t, role.Bypass)
	}
}
