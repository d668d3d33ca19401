package rbac

// Role names carried in access tokens.
const (
	RoleMember     = "member"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
