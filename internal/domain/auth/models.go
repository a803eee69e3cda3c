package auth

// UserContext is the authenticated caller carried on the request context.
type UserContext struct {
	UserID     string
	TenantID   string
	EmployeeID string
	RoleName   string
}

func (u UserContext) IsAdmin() bool {
	return u.RoleName == RoleAdmin
}

type AuthUser struct {
	ID         string
	TenantID   string
	EmployeeID string
	RoleName   string
	Password   string
}

type Session struct {
	Token string
	User  AuthUser
}
