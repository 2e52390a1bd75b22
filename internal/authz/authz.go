// Package authz implements the resource-scoped permission model. Grants
// are rows keyed by "resource:action" (global) or
// "resource:resource_id:action" (one instance). There is no wildcard or
// hierarchy matching: "crud" is one discrete action value, not a bundle
// of create/read/update/delete.
package authz

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/apperr"
	"github.com/Frusadev/frusablog-backend/internal/models"
)

const (
	ResourcePost    = "post"
	ResourceComment = "comment"
	ResourceUser    = "user"
	ResourceMedia   = "media"
	ResourceTag     = "tag"

	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionCrud   = "crud"
	ActionAdmin  = "admin_action"
)

func instanceKey(resource, resourceID, action string) string {
	return fmt.Sprintf("%s:%s:%s", resource, resourceID, action)
}

func globalKey(resource, action string) string {
	return fmt.Sprintf("%s:%s", resource, action)
}

// Every function takes the caller's *gorm.DB so grants can batch inside a
// larger transaction; nothing here commits on its own.

func getRole(db *gorm.DB, roleID string) (*models.Role, error) {
	var role models.Role
	if err := db.Where("id = ?", roleID).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: role %s", apperr.ErrNotFound, roleID)
		}
		return nil, err
	}
	return &role, nil
}

func createGrant(db *gorm.DB, roleID, name string) (*models.Permission, error) {
	if _, err := getRole(db, roleID); err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&models.Permission{}).
		Where("role_id = ? AND name = ?", roleID, name).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		// Re-granting is an error, not a no-op.
		return nil, fmt.Errorf("%w: permission %q already granted", apperr.ErrConflict, name)
	}

	permission := models.Permission{
		ID:     uuid.NewString(),
		Name:   name,
		RoleID: roleID,
	}
	if err := db.Create(&permission).Error; err != nil {
		return nil, err
	}
	return &permission, nil
}

// CreatePermission grants an instance-scoped permission to a role.
func CreatePermission(db *gorm.DB, roleID, resource, resourceID, action string) (*models.Permission, error) {
	return createGrant(db, roleID, instanceKey(resource, resourceID, action))
}

// CreateGlobalPermission grants a resource-class-wide permission.
func CreateGlobalPermission(db *gorm.DB, roleID, resource, action string) (*models.Permission, error) {
	return createGrant(db, roleID, globalKey(resource, action))
}

func hasGrant(db *gorm.DB, roleID string, allowBypass bool, name string) (bool, error) {
	role, err := getRole(db, roleID)
	if err != nil {
		return false, err
	}
	// Bypass wins before any row lookup.
	if allowBypass && role.Bypass {
		return true, nil
	}

	var count int64
	if err := db.Model(&models.Permission{}).
		Where("role_id = ? AND name = ?", roleID, name).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasPermission reports whether the role holds the exact instance-scoped
// grant. With allowBypass, a bypass-capable role passes without any rows.
func HasPermission(db *gorm.DB, roleID string, allowBypass bool, resource, resourceID, action string) (bool, error) {
	return hasGrant(db, roleID, allowBypass, instanceKey(resource, resourceID, action))
}

// HasCrudPermission checks the discrete "crud" action on one instance —
// the "owns this resource" grant given to creators.
func HasCrudPermission(db *gorm.DB, roleID string, allowBypass bool, resource, resourceID string) (bool, error) {
	return HasPermission(db, roleID, allowBypass, resource, resourceID, ActionCrud)
}

// HasGlobalPermission checks a resource-class-wide grant.
func HasGlobalPermission(db *gorm.DB, roleID string, allowBypass bool, resource, action string) (bool, error) {
	return hasGrant(db, roleID, allowBypass, globalKey(resource, action))
}

// HasGlobalCrudPermission checks the class-wide "crud" grant.
func HasGlobalCrudPermission(db *gorm.DB, roleID string, allowBypass bool, resource string) (bool, error) {
	return HasGlobalPermission(db, roleID, allowBypass, resource, ActionCrud)
}

// CanManage is the ownership check the resource handlers share: the exact
// action on the instance, or the instance-wide crud grant. Bypass-capable
// roles pass either way.
func CanManage(db *gorm.DB, roleID string, allowBypass bool, resource, resourceID, action string) (bool, error) {
	ok, err := HasPermission(db, roleID, allowBypass, resource, resourceID, action)
	if err != nil || ok {
		return ok, err
	}
	return HasCrudPermission(db, roleID, allowBypass, resource, resourceID)
}
