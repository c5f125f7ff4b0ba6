package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleOwner, PermissionSquareManage))
	assert.False(t, HasPermission(RoleManager, PermissionSquareManage))
	assert.True(t, HasPermission(RoleManager, PermissionMappingManage))
	assert.False(t, HasPermission(RoleEmployee, PermissionSquareView))
	assert.False(t, HasPermission(Role("unknown"), PermissionSquareView))
}
