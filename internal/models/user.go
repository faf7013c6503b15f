package models

import "time"

type RoleName string

const (
	RoleUser       RoleName = "USER"
	RoleAdmin      RoleName = "ADMIN"
	RoleSuperAdmin RoleName = "SUPERADMIN"
)

type Permission string

const (
	PermissionCreatePlayer Permission = "CREATE_PLAYER"
	PermissionEditPlayer   Permission = "EDIT_PLAYER"
	PermissionDeletePlayer Permission = "DELETE_PLAYER"
	PermissionManageTeam   Permission = "MANAGE_TEAM"
	PermissionCreateUser   Permission = "CREATE_USER"
	PermissionEditUser     Permission = "EDIT_USER"
	PermissionDeleteUser   Permission = "DELETE_USER"
)

// Role decides privilege and whether login goes through a second factor.
type Role struct {
	ID                int64
	Name              RoleName
	RequiresTwoFactor bool
	Permissions       []Permission
}

func (r *Role) HasPermission(p Permission) bool {
	if r == nil {
		return false
	}
	for _, granted := range r.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

type User struct {
	ID                int64
	Email             string
	FirstName         string
	LastName          string
	PasswordHash      []byte
	IsVerified        bool
	RefreshTokenHash  *string
	Role              *Role
	TwoFactorCodeHash []byte
	TwoFactorExpiry   *time.Time
	TwoFactorAttempts int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (u User) RoleName() RoleName {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

func (u User) RequiresTwoFactor() bool {
	return u.Role != nil && u.Role.RequiresTwoFactor
}

func (u User) HasPendingTwoFactor() bool {
	return len(u.TwoFactorCodeHash) > 0 && u.TwoFactorExpiry != nil
}

// SignupAttempt is an append-only registration record used for per-address throttling.
type SignupAttempt struct {
	ID        int64
	IP        string
	CreatedAt time.Time
}
