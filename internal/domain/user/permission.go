package user

type Permission string

const (
	// Square integration
	PermissionSquareView    Permission = "square.view"
	PermissionSquareManage  Permission = "square.manage"
	PermissionSquareSync    Permission = "square.sync"
	PermissionMappingManage Permission = "square.mapping_manage"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		PermissionSquareView,
		PermissionSquareManage,
		PermissionSquareSync,
		PermissionMappingManage,
	},
	RoleManager: {
		PermissionSquareView,
		PermissionSquareSync,
		PermissionMappingManage,
	},
	RoleEmployee: {},
	RolePending:  {},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
