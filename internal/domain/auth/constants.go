package auth

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

const UserStatusActive = "active"
