package user

type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Can manage integrations and confirm mappings
	RoleEmployee Role = "employee" // Regular employee
	RolePending  Role = "pending"  // Still in onboarding
)

// IsManager reports whether role is manager or owner.
func (r Role) IsManager() bool {
	return r == RoleManager || r == RoleOwner
}
