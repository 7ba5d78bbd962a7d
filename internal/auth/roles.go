package auth

// Admin role constants.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// AllAdminRoles returns all valid admin roles.
func AllAdminRoles() []string {
	return []string{RoleViewer, RoleOperator, RoleAdmin}
}

// TriggerRoles returns the admin roles allowed to start a settlement pass.
func TriggerRoles() []string {
	return []string{RoleOperator, RoleAdmin}
}

// ValidRole reports whether role is a known admin role.
func ValidRole(role string) bool {
	for _, r := range AllAdminRoles() {
		if r == role {
			return true
		}
	}
	return false
}
