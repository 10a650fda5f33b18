package models

import (
	"time"
)

// User represents a stored account, minus secret material.
type User struct {
	ID                     string     `json:"id"`
	Username               string     `json:"username"`
	Role                   string     `json:"role"`
	Email                  string     `json:"email,omitempty"`
	Permissions            []string   `json:"permissions,omitempty"`
	AccountLocked          bool       `json:"account_locked"`
	FailedAttempts         int        `json:"failed_attempts"`
	RequiresPasswordChange bool       `json:"requires_password_change"`
	CreatedAt              time.Time  `json:"created_at"`
	LastLogin              *time.Time `json:"last_login,omitempty"`
}

// DefaultPermissions returns the permission set granted to a role when the
// caller does not supply one.
func DefaultPermissions(role string) []string {
	switch role {
	case "admin":
		return []string{
			"user_management", "system_settings", "view_logs",
			"unlock_accounts", "create_users", "delete_users", "modify_roles",
		}
	case "moderator":
		return []string{
			"session_access", "personal_settings", "moderate_activity",
			"view_user_activity", "temporary_user_restrictions",
		}
	default:
		return []string{"session_access", "personal_settings"}
	}
}
